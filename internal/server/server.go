// Package server exposes the chat pipeline and admin control plane over
// HTTP. Authentication sits in front of this surface; handlers trust the
// subject and actor identifiers the caller provides.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/quietriver/sage/internal/chat"
	"github.com/quietriver/sage/internal/engine"
	"github.com/quietriver/sage/internal/model"
	"github.com/quietriver/sage/internal/profile"
	"github.com/quietriver/sage/internal/store"
)

// actorHeader identifies the operator behind admin calls.
const actorHeader = "X-Actor-ID"

const echoShutdownTimeout = 10 * time.Second

// Server hosts the HTTP API.
type Server struct {
	e        *echo.Echo
	profile  *profile.Profile
	store    *store.Store
	engine   *engine.Engine
	admin    *engine.Admin
	pipeline *chat.Pipeline
}

// New assembles the server and registers routes.
func New(p *profile.Profile, s *store.Store, eng *engine.Engine, admin *engine.Admin, pipeline *chat.Pipeline) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	srv := &Server{
		e:        e,
		profile:  p,
		store:    s,
		engine:   eng,
		admin:    admin,
		pipeline: pipeline,
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) registerRoutes() {
	api := s.e.Group("/api/v1")

	api.POST("/chat", s.handleChat)
	api.GET("/chat/history", s.handleChatHistory)
	api.DELETE("/chat", s.handleChatClear)
	api.GET("/context", s.handleContext)

	admin := api.Group("/admin")
	admin.GET("/memories", s.handleSearchMemories)
	admin.POST("/memories", s.handleCreateGlobal)
	admin.PATCH("/memories/:id", s.handlePatchMemory)
	admin.DELETE("/memories/:id", s.handleDeleteMemory)
	admin.POST("/subjects/:id/forget", s.handleForgetSubject)
	admin.GET("/subjects", s.handleListSubjects)
	admin.POST("/subjects", s.handleUpsertSubject)
	admin.GET("/retention", s.handleGetRetention)
	admin.PUT("/retention", s.handleSetRetention)
	admin.GET("/audit", s.handleListAudit)
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.e.Start(addr)
	}()
	slog.Info("server started", "addr", addr, "mode", s.profile.Mode)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), echoShutdownTimeout)
		defer cancel()
		return s.e.Shutdown(shutdownCtx)
	}
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.e
}

// writeError maps the engine's error taxonomy onto HTTP statuses.
func writeError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrStorageUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, model.ErrConstraintViolation):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
