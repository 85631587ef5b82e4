package engine

import (
	"context"

	"github.com/pkg/errors"

	"github.com/quietriver/sage/internal/memory"
	"github.com/quietriver/sage/internal/model"
	"github.com/quietriver/sage/internal/store"
)

// MinGlobalContentLength filters out throwaway operator entries; a global
// memory shorter than this after normalization is rejected.
const MinGlobalContentLength = 15

// Admin is the management surface over the memory store. Every successful
// mutation writes exactly one audit event; a failed mutation writes none,
// so the audit log reflects only state that actually changed.
type Admin struct {
	store *store.Store
}

// NewAdmin creates the admin control plane over the given store.
func NewAdmin(s *store.Store) *Admin {
	return &Admin{store: s}
}

// Search lists memories by scope, content substring, and subject identity
// substring, most recently updated first. Expired records are purged
// opportunistically before the read.
func (a *Admin) Search(ctx context.Context, find store.FindMemory) ([]model.Memory, error) {
	a.store.PurgeExpired(ctx)
	return a.store.ListMemories(ctx, find)
}

// Pin marks a memory exempt from capacity eviction and bulk forget.
func (a *Admin) Pin(ctx context.Context, actorID, id string) (*model.Memory, error) {
	return a.setPinned(ctx, actorID, id, true, model.ActionPin)
}

// Unpin returns a memory to normal retention rules.
func (a *Admin) Unpin(ctx context.Context, actorID, id string) (*model.Memory, error) {
	return a.setPinned(ctx, actorID, id, false, model.ActionUnpin)
}

func (a *Admin) setPinned(ctx context.Context, actorID, id string, pinned bool, action model.Action) (*model.Memory, error) {
	m, err := a.store.UpdateMemory(ctx, store.UpdateMemoryParams{ID: id, Pinned: &pinned})
	if err != nil {
		return nil, err
	}
	_, err = a.store.CreateAuditEvent(ctx, &model.AuditEvent{
		Action:          action,
		ActorID:         actorID,
		TargetSubjectID: m.SubjectID,
		Details:         map[string]any{"memory_id": m.ID},
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// EditContent rewrites a memory's content. The audit event carries both the
// old and new content so the edit can be reconstructed.
func (a *Admin) EditContent(ctx context.Context, actorID, id, content string) (*model.Memory, error) {
	before, err := a.store.GetMemory(ctx, id)
	if err != nil {
		return nil, err
	}
	m, err := a.store.UpdateMemory(ctx, store.UpdateMemoryParams{ID: id, Content: &content})
	if err != nil {
		return nil, err
	}
	_, err = a.store.CreateAuditEvent(ctx, &model.AuditEvent{
		Action:          model.ActionEdit,
		ActorID:         actorID,
		TargetSubjectID: m.SubjectID,
		Details: map[string]any{
			"memory_id": m.ID,
			"before":    before.Content,
			"after":     m.Content,
		},
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Delete removes one memory by id.
func (a *Admin) Delete(ctx context.Context, actorID, id string) error {
	m, err := a.store.DeleteMemory(ctx, id)
	if err != nil {
		return err
	}
	_, err = a.store.CreateAuditEvent(ctx, &model.AuditEvent{
		Action:          model.ActionDelete,
		ActorID:         actorID,
		TargetSubjectID: m.SubjectID,
		Details:         map[string]any{"memory_id": m.ID, "content": m.Content},
	})
	return err
}

// ForgetSubject removes all of a subject's memories; pinned records survive
// unless includePinned is set. Confirmation belongs to the client, not here.
func (a *Admin) ForgetSubject(ctx context.Context, actorID, subjectID string, includePinned bool) (int64, error) {
	n, err := a.store.DeleteSubjectMemories(ctx, subjectID, includePinned)
	if err != nil {
		return 0, err
	}
	_, err = a.store.CreateAuditEvent(ctx, &model.AuditEvent{
		Action:          model.ActionForgetSubject,
		ActorID:         actorID,
		TargetSubjectID: subjectID,
		Details:         map[string]any{"deleted": n, "include_pinned": includePinned},
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// CreateGlobal stores an operator-entered memory that applies to every
// conversation. Short entries are rejected rather than silently dropped.
func (a *Admin) CreateGlobal(ctx context.Context, actorID, content string, tags []string) (*model.Memory, error) {
	norm := memory.Normalize(content)
	if len(norm) < MinGlobalContentLength {
		return nil, errors.Wrapf(model.ErrInvalidArgument,
			"global memory needs at least %d characters", MinGlobalContentLength)
	}
	m, err := a.store.UpsertMemory(ctx, store.UpsertMemoryParams{
		Scope:   model.ScopeGlobal,
		Content: norm,
		Source:  "admin",
		Tags:    tags,
	})
	if err != nil {
		return nil, err
	}
	_, err = a.store.CreateAuditEvent(ctx, &model.AuditEvent{
		Action:  model.ActionCreateGlobal,
		ActorID: actorID,
		Details: map[string]any{"memory_id": m.ID, "content": m.Content},
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetPolicy reads the retention policy.
func (a *Admin) GetPolicy(ctx context.Context) (*model.RetentionPolicy, error) {
	return a.store.GetRetentionPolicy(ctx)
}

// SetPolicy validates and applies a retention policy patch. Out-of-bound
// values fail with InvalidArgument and write no audit event.
func (a *Admin) SetPolicy(ctx context.Context, actorID string, patch store.UpdateRetentionPolicyParams) (*model.RetentionPolicy, error) {
	before, err := a.store.GetRetentionPolicy(ctx)
	if err != nil {
		return nil, err
	}
	p, err := a.store.UpdateRetentionPolicy(ctx, patch)
	if err != nil {
		return nil, err
	}
	_, err = a.store.CreateAuditEvent(ctx, &model.AuditEvent{
		Action:  model.ActionSetRetention,
		ActorID: actorID,
		Details: map[string]any{
			"before": map[string]any{"retention_days": before.RetentionDays, "subject_ceiling": before.SubjectCeiling, "global_ceiling": before.GlobalCeiling},
			"after":  map[string]any{"retention_days": p.RetentionDays, "subject_ceiling": p.SubjectCeiling, "global_ceiling": p.GlobalCeiling},
		},
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// RecentAudit lists recent audit events, newest first.
func (a *Admin) RecentAudit(ctx context.Context, find store.FindAuditEvent) ([]model.AuditEvent, error) {
	return a.store.ListAuditEvents(ctx, find)
}
