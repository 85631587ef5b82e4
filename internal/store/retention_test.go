package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/quietriver/sage/internal/model"
)

func setCeilings(t *testing.T, s *Store, subject, global int) {
	t.Helper()
	_, err := s.UpdateRetentionPolicy(context.Background(), UpdateRetentionPolicyParams{
		SubjectCeiling: &subject,
		GlobalCeiling:  &global,
	})
	if err != nil {
		t.Fatalf("set ceilings: %v", err)
	}
}

func TestRetentionPolicy_Defaults(t *testing.T) {
	s := newTestStore(t)
	p, err := s.GetRetentionPolicy(context.Background())
	if err != nil {
		t.Fatalf("get policy: %v", err)
	}
	if p.RetentionDays != model.DefaultRetentionDays {
		t.Errorf("expected default retention days, got %d", p.RetentionDays)
	}
	if p.SubjectCeiling != model.DefaultSubjectCeiling || p.GlobalCeiling != model.DefaultGlobalCeiling {
		t.Errorf("unexpected default ceilings: %d/%d", p.SubjectCeiling, p.GlobalCeiling)
	}
}

func TestRetentionPolicy_RejectsOutOfRange(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	days := 400
	if _, err := s.UpdateRetentionPolicy(ctx, UpdateRetentionPolicyParams{RetentionDays: &days}); !errors.Is(err, model.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}

	// Existing value untouched by the failed update.
	p, _ := s.GetRetentionPolicy(ctx)
	if p.RetentionDays != model.DefaultRetentionDays {
		t.Errorf("failed update must not change policy, got %d", p.RetentionDays)
	}

	days = 3
	if _, err := s.UpdateRetentionPolicy(ctx, UpdateRetentionPolicyParams{RetentionDays: &days}); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument below lower bound, got %v", err)
	}
}

func TestRetentionPolicy_Update(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	days := 30
	p, err := s.UpdateRetentionPolicy(ctx, UpdateRetentionPolicyParams{RetentionDays: &days})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.RetentionDays != 30 {
		t.Errorf("expected 30, got %d", p.RetentionDays)
	}
	got, _ := s.GetRetentionPolicy(ctx)
	if got.RetentionDays != 30 {
		t.Errorf("expected persisted 30, got %d", got.RetentionDays)
	}
}

func TestEnforceCapacity_EvictsOldestNonPinned(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	setCeilings(t, s, 5, 100)

	// 7 upserts in strictly increasing updated_at order.
	for i := 0; i < 7; i++ {
		mustUpsert(t, s, subjectParams("s1", fmt.Sprintf("I want memory number %d", i)))
	}

	left, err := s.ListMemories(ctx, FindMemory{Scope: model.ScopeSubject, SubjectID: "s1", Limit: 100})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(left) != 5 {
		t.Fatalf("expected 5 survivors, got %d", len(left))
	}
	surviving := map[string]bool{}
	for _, m := range left {
		surviving[m.Content] = true
	}
	// Exactly the 2 oldest are gone.
	for i := 0; i < 2; i++ {
		if surviving[fmt.Sprintf("I want memory number %d", i)] {
			t.Errorf("expected memory %d to be evicted", i)
		}
	}
	for i := 2; i < 7; i++ {
		if !surviving[fmt.Sprintf("I want memory number %d", i)] {
			t.Errorf("expected memory %d to survive", i)
		}
	}
}

func TestEnforceCapacity_PinnedExempt(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	setCeilings(t, s, 3, 100)

	pin := true
	for i := 0; i < 3; i++ {
		m := mustUpsert(t, s, subjectParams("s1", fmt.Sprintf("I prefer pinned fact %d", i)))
		if _, err := s.UpdateMemory(ctx, UpdateMemoryParams{ID: m.ID, Pinned: &pin}); err != nil {
			t.Fatalf("pin: %v", err)
		}
	}
	for i := 0; i < 5; i++ {
		mustUpsert(t, s, subjectParams("s1", fmt.Sprintf("I want unpinned fact %d", i)))
	}

	left, _ := s.ListMemories(ctx, FindMemory{Scope: model.ScopeSubject, SubjectID: "s1", Limit: 100})
	var pinned, unpinned int
	for _, m := range left {
		if m.Pinned {
			pinned++
		} else {
			unpinned++
		}
	}
	// All pinned survive past the ceiling; non-pinned trimmed to ceiling.
	if pinned != 3 {
		t.Errorf("expected 3 pinned survivors, got %d", pinned)
	}
	if unpinned != 3 {
		t.Errorf("expected 3 unpinned survivors, got %d", unpinned)
	}
}

func TestEnforceCapacity_ScopesIndependent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	setCeilings(t, s, 2, 100)

	for i := 0; i < 4; i++ {
		mustUpsert(t, s, subjectParams("s1", fmt.Sprintf("I want s1 fact %d", i)))
	}
	mustUpsert(t, s, subjectParams("s2", "I want my own fact"))

	s1, _ := s.ListMemories(ctx, FindMemory{Scope: model.ScopeSubject, SubjectID: "s1", Limit: 100})
	s2, _ := s.ListMemories(ctx, FindMemory{Scope: model.ScopeSubject, SubjectID: "s2", Limit: 100})
	if len(s1) != 2 {
		t.Errorf("expected s1 trimmed to 2, got %d", len(s1))
	}
	if len(s2) != 1 {
		t.Errorf("expected s2 untouched, got %d", len(s2))
	}
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	keep := mustUpsert(t, s, subjectParams("s1", "I want to stay"))
	gone := mustUpsert(t, s, subjectParams("s1", "I am only passing through"))
	past := time.Now().Add(-time.Minute)
	if _, err := s.UpdateMemory(ctx, UpdateMemoryParams{ID: gone.ID, ExpiresAt: &past}); err != nil {
		t.Fatalf("expire: %v", err)
	}

	n, err := s.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged, got %d", n)
	}
	if _, err := s.GetMemory(ctx, gone.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected expired record deleted, got %v", err)
	}
	if _, err := s.GetMemory(ctx, keep.ID); err != nil {
		t.Errorf("expected unexpired record kept, got %v", err)
	}
}

func TestPurgeExpired_RetentionHorizon(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	stale := mustUpsert(t, s, subjectParams("s1", "I am ancient history"))
	pinnedStale := mustUpsert(t, s, subjectParams("s1", "I am pinned history"))
	pin := true
	if _, err := s.UpdateMemory(ctx, UpdateMemoryParams{ID: pinnedStale.ID, Pinned: &pin}); err != nil {
		t.Fatalf("pin: %v", err)
	}

	// Backdate both past the default horizon.
	old := formatTime(time.Now().AddDate(0, 0, -model.DefaultRetentionDays-1))
	for _, id := range []string{stale.ID, pinnedStale.ID} {
		if _, err := s.db.ExecContext(ctx, `UPDATE memory SET updated_at = ? WHERE id = ?`, old, id); err != nil {
			t.Fatalf("backdate: %v", err)
		}
	}

	if _, err := s.PurgeExpired(ctx); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, err := s.GetMemory(ctx, stale.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected stale record purged, got %v", err)
	}
	if _, err := s.GetMemory(ctx, pinnedStale.ID); err != nil {
		t.Errorf("expected pinned record to survive the horizon, got %v", err)
	}
}
