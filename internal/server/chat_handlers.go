package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/quietriver/sage/internal/model"
)

type chatRequest struct {
	SubjectID string `json:"subject_id"`
	Message   string `json:"message"`
}

// POST /api/v1/chat
func (s *Server) handleChat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, errors.Wrap(model.ErrInvalidArgument, "malformed request body"))
	}
	reply, err := s.pipeline.Respond(c.Request().Context(), req.SubjectID, req.Message)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, reply)
}

// GET /api/v1/chat/history?subject_id=
func (s *Server) handleChatHistory(c echo.Context) error {
	subjectID := c.QueryParam("subject_id")
	if subjectID == "" {
		return writeError(c, errors.Wrap(model.ErrInvalidArgument, "subject_id is required"))
	}
	history, err := s.pipeline.History(c.Request().Context(), subjectID)
	if err != nil {
		return writeError(c, err)
	}
	if history == nil {
		history = []model.ChatMessage{}
	}
	return c.JSON(http.StatusOK, history)
}

// DELETE /api/v1/chat?subject_id=&clear_memory=
func (s *Server) handleChatClear(c echo.Context) error {
	subjectID := c.QueryParam("subject_id")
	if subjectID == "" {
		return writeError(c, errors.Wrap(model.ErrInvalidArgument, "subject_id is required"))
	}
	clearMemory := c.QueryParam("clear_memory") == "true"
	if err := s.pipeline.ClearHistory(c.Request().Context(), subjectID, clearMemory); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// GET /api/v1/context?subject_id=&limit=
func (s *Server) handleContext(c echo.Context) error {
	subjectID := c.QueryParam("subject_id")
	if subjectID == "" {
		return writeError(c, errors.Wrap(model.ErrInvalidArgument, "subject_id is required"))
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	bundle, err := s.engine.Context(c.Request().Context(), subjectID, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, bundle)
}
