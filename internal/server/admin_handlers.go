package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/quietriver/sage/internal/model"
	"github.com/quietriver/sage/internal/store"
)

// GET /api/v1/admin/memories?scope=&subject_id=&q=&subject=&pinned=&limit=
func (s *Server) handleSearchMemories(c echo.Context) error {
	find := store.FindMemory{
		Scope:         model.Scope(c.QueryParam("scope")),
		SubjectID:     c.QueryParam("subject_id"),
		ContentSearch: c.QueryParam("q"),
		SubjectSearch: c.QueryParam("subject"),
	}
	if find.Scope != "" && !find.Scope.Valid() {
		return writeError(c, errors.Wrapf(model.ErrInvalidArgument, "unknown scope %q", find.Scope))
	}
	if v := c.QueryParam("pinned"); v != "" {
		pinned := v == "true"
		find.Pinned = &pinned
	}
	find.Limit, _ = strconv.Atoi(c.QueryParam("limit"))

	memories, err := s.admin.Search(c.Request().Context(), find)
	if err != nil {
		return writeError(c, err)
	}
	if memories == nil {
		memories = []model.Memory{}
	}
	return c.JSON(http.StatusOK, memories)
}

type createGlobalRequest struct {
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

// POST /api/v1/admin/memories
func (s *Server) handleCreateGlobal(c echo.Context) error {
	var req createGlobalRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, errors.Wrap(model.ErrInvalidArgument, "malformed request body"))
	}
	m, err := s.admin.CreateGlobal(c.Request().Context(), actorID(c), req.Content, req.Tags)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

type patchMemoryRequest struct {
	Content *string `json:"content,omitempty"`
	Pinned  *bool   `json:"pinned,omitempty"`
}

// PATCH /api/v1/admin/memories/:id — edit content and/or flip the pin.
func (s *Server) handlePatchMemory(c echo.Context) error {
	var req patchMemoryRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, errors.Wrap(model.ErrInvalidArgument, "malformed request body"))
	}
	if req.Content == nil && req.Pinned == nil {
		return writeError(c, errors.Wrap(model.ErrInvalidArgument, "nothing to patch"))
	}

	ctx := c.Request().Context()
	id := c.Param("id")
	actor := actorID(c)

	var m *model.Memory
	var err error
	if req.Content != nil {
		if m, err = s.admin.EditContent(ctx, actor, id, *req.Content); err != nil {
			return writeError(c, err)
		}
	}
	if req.Pinned != nil {
		if *req.Pinned {
			m, err = s.admin.Pin(ctx, actor, id)
		} else {
			m, err = s.admin.Unpin(ctx, actor, id)
		}
		if err != nil {
			return writeError(c, err)
		}
	}
	return c.JSON(http.StatusOK, m)
}

// DELETE /api/v1/admin/memories/:id
func (s *Server) handleDeleteMemory(c echo.Context) error {
	if err := s.admin.Delete(c.Request().Context(), actorID(c), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

type forgetRequest struct {
	IncludePinned bool `json:"include_pinned"`
}

// POST /api/v1/admin/subjects/:id/forget
func (s *Server) handleForgetSubject(c echo.Context) error {
	var req forgetRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, errors.Wrap(model.ErrInvalidArgument, "malformed request body"))
	}
	n, err := s.admin.ForgetSubject(c.Request().Context(), actorID(c), c.Param("id"), req.IncludePinned)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int64{"deleted": n})
}

// GET /api/v1/admin/subjects?q=&limit=
func (s *Server) handleListSubjects(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	subjects, err := s.store.ListSubjects(c.Request().Context(), c.QueryParam("q"), limit)
	if err != nil {
		return writeError(c, err)
	}
	if subjects == nil {
		subjects = []model.Subject{}
	}
	return c.JSON(http.StatusOK, subjects)
}

// POST /api/v1/admin/subjects
func (s *Server) handleUpsertSubject(c echo.Context) error {
	var subject model.Subject
	if err := c.Bind(&subject); err != nil {
		return writeError(c, errors.Wrap(model.ErrInvalidArgument, "malformed request body"))
	}
	got, err := s.store.UpsertSubject(c.Request().Context(), &subject)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, got)
}

// GET /api/v1/admin/retention
func (s *Server) handleGetRetention(c echo.Context) error {
	p, err := s.admin.GetPolicy(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

type retentionRequest struct {
	RetentionDays  *int `json:"retention_days,omitempty"`
	SubjectCeiling *int `json:"subject_ceiling,omitempty"`
	GlobalCeiling  *int `json:"global_ceiling,omitempty"`
}

// PUT /api/v1/admin/retention
func (s *Server) handleSetRetention(c echo.Context) error {
	var req retentionRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, errors.Wrap(model.ErrInvalidArgument, "malformed request body"))
	}
	p, err := s.admin.SetPolicy(c.Request().Context(), actorID(c), store.UpdateRetentionPolicyParams{
		RetentionDays:  req.RetentionDays,
		SubjectCeiling: req.SubjectCeiling,
		GlobalCeiling:  req.GlobalCeiling,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// GET /api/v1/admin/audit?subject_id=&limit=
func (s *Server) handleListAudit(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	events, err := s.admin.RecentAudit(c.Request().Context(), store.FindAuditEvent{
		TargetSubjectID: c.QueryParam("subject_id"),
		Limit:           limit,
	})
	if err != nil {
		return writeError(c, err)
	}
	if events == nil {
		events = []model.AuditEvent{}
	}
	return c.JSON(http.StatusOK, events)
}

func actorID(c echo.Context) string {
	return c.Request().Header.Get(actorHeader)
}
