// Package engine wires the extractor, store, and retention rules into the
// two surfaces the rest of the system calls: the chat path (Engine) and the
// admin control plane (Admin).
package engine

import (
	"context"
	"log/slog"

	"github.com/quietriver/sage/internal/memory"
	"github.com/quietriver/sage/internal/model"
	"github.com/quietriver/sage/internal/store"
)

// Engine is the chat-path entry point. Memory content is advisory context:
// a failed write degrades personalization, never the conversation.
type Engine struct {
	store *store.Store
}

// New creates an Engine over the given store.
func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// OnUserTurn extracts candidate memories from one chat turn and upserts
// them. Each upsert ends with a capacity check inside the store, so a turn
// can never grow a subject's scope past its ceiling. Individual upsert
// failures are logged and skipped; the turn itself never fails on them.
func (e *Engine) OnUserTurn(ctx context.Context, subjectID, text string) error {
	if subjectID == "" {
		return model.ErrInvalidArgument
	}
	for _, candidate := range memory.Extract(text) {
		_, err := e.store.UpsertMemory(ctx, store.UpsertMemoryParams{
			Scope:     model.ScopeSubject,
			SubjectID: subjectID,
			Content:   candidate,
			Source:    "chat",
		})
		if err != nil {
			slog.Warn("memory upsert failed", "subject", subjectID, "error", err)
		}
	}
	return nil
}

// Context returns the ranked memory bundle for a subject, purging expired
// records opportunistically first. Bounded by limit on both sides; safe to
// call on every chat turn.
func (e *Engine) Context(ctx context.Context, subjectID string, limit int) (*store.MemoryContext, error) {
	if _, err := e.store.PurgeExpired(ctx); err != nil {
		slog.Warn("expiry purge failed", "error", err)
	}
	return e.store.Context(ctx, subjectID, limit)
}

// ForgetOnClear removes a subject's non-pinned memories when the subject
// clears their own history. System-originated, so the audit event carries
// no actor.
func (e *Engine) ForgetOnClear(ctx context.Context, subjectID string) error {
	n, err := e.store.DeleteSubjectMemories(ctx, subjectID, false)
	if err != nil {
		return err
	}
	_, err = e.store.CreateAuditEvent(ctx, &model.AuditEvent{
		Action:          model.ActionForgetSubject,
		TargetSubjectID: subjectID,
		Details:         map[string]any{"deleted": n, "include_pinned": false, "trigger": "history_clear"},
	})
	return err
}
