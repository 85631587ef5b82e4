package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/quietriver/sage/internal/model"
	"github.com/quietriver/sage/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *Admin, *store.Store) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s), NewAdmin(s), s
}

func TestOnUserTurn_ExtractsAndStores(t *testing.T) {
	ctx := context.Background()
	e, _, s := newTestEngine(t)

	err := e.OnUserTurn(ctx, "s1", "I am anxious about work. The weather is nice. I want inner peace.")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}

	list, err := s.ListMemories(ctx, store.FindMemory{Scope: model.ScopeSubject, SubjectID: "s1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 extracted memories, got %d", len(list))
	}
	for _, m := range list {
		if m.Source != "chat" {
			t.Errorf("expected source chat, got %q", m.Source)
		}
		if m.Scope != model.ScopeSubject {
			t.Errorf("chat extraction must be subject-scoped, got %v", m.Scope)
		}
	}
}

func TestOnUserTurn_NoMarkersNoWrites(t *testing.T) {
	ctx := context.Background()
	e, _, s := newTestEngine(t)

	if err := e.OnUserTurn(ctx, "s1", "The weather is nice today."); err != nil {
		t.Fatalf("turn: %v", err)
	}
	list, _ := s.ListMemories(ctx, store.FindMemory{Scope: model.ScopeSubject, SubjectID: "s1"})
	if len(list) != 0 {
		t.Errorf("expected no memories, got %d", len(list))
	}
}

func TestOnUserTurn_RepeatTurnIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e, _, s := newTestEngine(t)

	for i := 0; i < 2; i++ {
		if err := e.OnUserTurn(ctx, "s1", "I want inner peace."); err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
	}
	list, _ := s.ListMemories(ctx, store.FindMemory{Scope: model.ScopeSubject, SubjectID: "s1"})
	if len(list) != 1 {
		t.Errorf("expected 1 record after repeated turns, got %d", len(list))
	}
}

func TestContext_BundlesBothScopes(t *testing.T) {
	ctx := context.Background()
	e, admin, _ := newTestEngine(t)

	if _, err := admin.CreateGlobal(ctx, "op-1", "Sessions always open with breathing", nil); err != nil {
		t.Fatalf("create global: %v", err)
	}
	if err := e.OnUserTurn(ctx, "s1", "I struggle with mornings."); err != nil {
		t.Fatalf("turn: %v", err)
	}

	bundle, err := e.Context(ctx, "s1", 3)
	if err != nil {
		t.Fatalf("context: %v", err)
	}
	if len(bundle.Global) != 1 || bundle.Global[0] != "Sessions always open with breathing" {
		t.Errorf("unexpected global side: %v", bundle.Global)
	}
	if len(bundle.Subject) != 1 || bundle.Subject[0] != "I struggle with mornings." {
		t.Errorf("unexpected subject side: %v", bundle.Subject)
	}
}

func TestForgetOnClear_KeepsPinnedAndAudits(t *testing.T) {
	ctx := context.Background()
	e, admin, s := newTestEngine(t)

	if err := e.OnUserTurn(ctx, "s1", "I want calm. I need sleep."); err != nil {
		t.Fatalf("turn: %v", err)
	}
	list, _ := s.ListMemories(ctx, store.FindMemory{Scope: model.ScopeSubject, SubjectID: "s1"})
	if _, err := admin.Pin(ctx, "op-1", list[0].ID); err != nil {
		t.Fatalf("pin: %v", err)
	}

	if err := e.ForgetOnClear(ctx, "s1"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	left, _ := s.ListMemories(ctx, store.FindMemory{Scope: model.ScopeSubject, SubjectID: "s1"})
	if len(left) != 1 || !left[0].Pinned {
		t.Fatalf("expected only the pinned record, got %v", left)
	}

	events, _ := s.ListAuditEvents(ctx, store.FindAuditEvent{})
	var forget *model.AuditEvent
	for i := range events {
		if events[i].Action == model.ActionForgetSubject {
			forget = &events[i]
		}
	}
	if forget == nil {
		t.Fatal("expected a FORGET_SUBJECT audit event")
	}
	if forget.ActorID != "" {
		t.Errorf("system-originated event must have no actor, got %q", forget.ActorID)
	}
}
