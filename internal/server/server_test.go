package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/quietriver/sage/internal/ai"
	"github.com/quietriver/sage/internal/chat"
	"github.com/quietriver/sage/internal/engine"
	"github.com/quietriver/sage/internal/model"
	"github.com/quietriver/sage/internal/profile"
	"github.com/quietriver/sage/internal/store"
)

type staticGenerator struct{ reply string }

func (g staticGenerator) Chat(context.Context, []ai.Message) (string, error) {
	return g.reply, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	eng := engine.New(s)
	admin := engine.NewAdmin(s)
	pipeline := chat.NewPipeline(s, eng, staticGenerator{reply: "Try a short walk."})
	return New(&profile.Profile{Mode: "dev"}, s, eng, admin, pipeline)
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set(actorHeader, "op-1")
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	return rec
}

func TestChatEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/chat", `{"subject_id":"s1","message":"I am anxious about work."}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var reply model.ChatMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	require.Equal(t, "assistant", reply.Role)
	require.Equal(t, "Try a short walk.", reply.Content)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/chat/history?subject_id=s1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []model.ChatMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 2)
}

func TestChatEndpoint_Validation(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/chat", `{"subject_id":"","message":"hi"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContextEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/chat", `{"subject_id":"s1","message":"I want inner peace."}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/context?subject_id=s1&limit=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var bundle store.MemoryContext
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
	require.Equal(t, []string{"I want inner peace."}, bundle.Subject)
}

func TestAdminMemoryLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/admin/memories", `{"content":"Sessions always open with breathing"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var m model.Memory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	require.Equal(t, model.ScopeGlobal, m.Scope)

	rec = doJSON(t, srv, http.MethodPatch, "/api/v1/admin/memories/"+m.ID, `{"pinned":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/admin/memories?pinned=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []model.Memory
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = doJSON(t, srv, http.MethodDelete, "/api/v1/admin/memories/"+m.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodDelete, "/api/v1/admin/memories/"+m.ID, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/admin/audit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var events []model.AuditEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	// create + pin + delete; the failed delete writes nothing.
	require.Len(t, events, 3)
	require.Equal(t, "op-1", events[0].ActorID)
}

func TestRetentionEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPut, "/api/v1/admin/retention", `{"retention_days":400}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/v1/admin/retention", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var p model.RetentionPolicy
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.Equal(t, model.DefaultRetentionDays, p.RetentionDays)

	rec = doJSON(t, srv, http.MethodPut, "/api/v1/admin/retention", `{"retention_days":30}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestForgetEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/chat", `{"subject_id":"s1","message":"I want calm. I need rest."}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/v1/admin/subjects/s1/forget", `{"include_pinned":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.EqualValues(t, 2, resp["deleted"])
}
