package store

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/quietriver/sage/internal/model"
)

// UpdateRetentionPolicyParams patches the retention policy. Nil fields are
// left untouched.
type UpdateRetentionPolicyParams struct {
	RetentionDays  *int
	SubjectCeiling *int
	GlobalCeiling  *int
}

// GetRetentionPolicy reads the single policy row, seeding defaults on first
// use. Slightly stale reads by concurrent capacity checks are acceptable.
func (s *Store) GetRetentionPolicy(ctx context.Context) (*model.RetentionPolicy, error) {
	def := model.DefaultRetentionPolicy()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO retention_policy (id, retention_days, subject_ceiling, global_ceiling, updated_at)
		 VALUES (1, ?, ?, ?, ?)`,
		def.RetentionDays, def.SubjectCeiling, def.GlobalCeiling, formatTime(time.Now()))
	if err != nil {
		return nil, errors.Wrap(err, "seed retention policy")
	}

	var p model.RetentionPolicy
	var updatedAt string
	err = s.db.QueryRowContext(ctx,
		`SELECT retention_days, subject_ceiling, global_ceiling, updated_at FROM retention_policy WHERE id = 1`).
		Scan(&p.RetentionDays, &p.SubjectCeiling, &p.GlobalCeiling, &updatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "read retention policy")
	}
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// UpdateRetentionPolicy validates and persists a policy patch. Out-of-range
// values are rejected with InvalidArgument and the stored policy is left
// unchanged. Existing records are not re-evicted here; capacity is
// re-evaluated lazily on the next write.
func (s *Store) UpdateRetentionPolicy(ctx context.Context, p UpdateRetentionPolicyParams) (*model.RetentionPolicy, error) {
	current, err := s.GetRetentionPolicy(ctx)
	if err != nil {
		return nil, err
	}

	if p.RetentionDays != nil {
		if *p.RetentionDays < model.MinRetentionDays || *p.RetentionDays > model.MaxRetentionDays {
			return nil, errors.Wrapf(model.ErrInvalidArgument,
				"retention days %d outside [%d,%d]", *p.RetentionDays, model.MinRetentionDays, model.MaxRetentionDays)
		}
		current.RetentionDays = *p.RetentionDays
	}
	if p.SubjectCeiling != nil {
		if *p.SubjectCeiling < 1 {
			return nil, errors.Wrap(model.ErrInvalidArgument, "subject ceiling must be positive")
		}
		current.SubjectCeiling = *p.SubjectCeiling
	}
	if p.GlobalCeiling != nil {
		if *p.GlobalCeiling < 1 {
			return nil, errors.Wrap(model.ErrInvalidArgument, "global ceiling must be positive")
		}
		current.GlobalCeiling = *p.GlobalCeiling
	}

	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		`UPDATE retention_policy SET retention_days = ?, subject_ceiling = ?, global_ceiling = ?, updated_at = ? WHERE id = 1`,
		current.RetentionDays, current.SubjectCeiling, current.GlobalCeiling, formatTime(now))
	if err != nil {
		return nil, errors.Wrap(err, "update retention policy")
	}
	current.UpdatedAt = now
	return current, nil
}

// EnforceCapacity deletes the excess oldest-by-updated_at non-pinned,
// non-expired records in the target scope until the count is at or under
// the configured ceiling. Pinned records are never touched, no matter how
// far over ceiling the scope is; unbounded pinned growth is deliberate.
func (s *Store) EnforceCapacity(ctx context.Context, scope model.Scope, subjectID string) error {
	policy, err := s.GetRetentionPolicy(ctx)
	if err != nil {
		return err
	}
	ceiling := policy.GlobalCeiling
	if scope == model.ScopeSubject {
		ceiling = policy.SubjectCeiling
	}

	now := formatTime(time.Now())
	var count int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memory
		 WHERE scope = ? AND ifnull(subject_id, '') = ? AND pinned = 0
		   AND (expires_at IS NULL OR expires_at > ?)`,
		string(scope), subjectID, now).Scan(&count)
	if err != nil {
		return errors.Wrap(err, "count memories")
	}
	if count <= ceiling {
		return nil
	}

	_, err = s.db.ExecContext(ctx,
		`DELETE FROM memory WHERE id IN (
			SELECT id FROM memory
			WHERE scope = ? AND ifnull(subject_id, '') = ? AND pinned = 0
			  AND (expires_at IS NULL OR expires_at > ?)
			ORDER BY updated_at ASC, created_at ASC
			LIMIT ?
		)`,
		string(scope), subjectID, now, count-ceiling)
	return errors.Wrap(err, "evict memories")
}

// PurgeExpired deletes every record whose expires_at has passed and every
// non-pinned record untouched for longer than the retention horizon.
// Callers invoke it opportunistically before reads; there is no background
// scheduler, because memory content is advisory.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	policy, err := s.GetRetentionPolicy(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memory WHERE expires_at IS NOT NULL AND expires_at <= ?`, formatTime(now))
	if err != nil {
		return 0, errors.Wrap(err, "purge expired")
	}
	purged, _ := res.RowsAffected()

	horizon := now.AddDate(0, 0, -policy.RetentionDays)
	res, err = s.db.ExecContext(ctx,
		`DELETE FROM memory WHERE pinned = 0 AND updated_at < ?`, formatTime(horizon))
	if err != nil {
		return purged, errors.Wrap(err, "purge stale")
	}
	stale, _ := res.RowsAffected()
	return purged + stale, nil
}
