package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/quietriver/sage/internal/model"
)

// CreateAuditEvent appends one audit event. Events are written in the same
// logical operation as the mutation they describe, never deferred.
func (s *Store) CreateAuditEvent(ctx context.Context, event *model.AuditEvent) (*model.AuditEvent, error) {
	if event.Action == "" {
		return nil, errors.Wrap(model.ErrInvalidArgument, "audit action is required")
	}

	event.ID = s.newID()
	event.CreatedAt = time.Now()

	var details *string
	if len(event.Details) > 0 {
		b, err := json.Marshal(event.Details)
		if err != nil {
			return nil, errors.Wrap(err, "marshal audit details")
		}
		d := string(b)
		details = &d
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_event (id, action, actor_id, target_subject_id, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID, string(event.Action), nullable(event.ActorID),
		nullable(event.TargetSubjectID), details, formatTime(event.CreatedAt))
	if err != nil {
		return nil, errors.Wrap(err, "insert audit event")
	}
	return event, nil
}

// FindAuditEvent filters the audit log.
type FindAuditEvent struct {
	TargetSubjectID string
	Limit           int
}

// ListAuditEvents returns recent audit events, newest first.
func (s *Store) ListAuditEvents(ctx context.Context, find FindAuditEvent) ([]model.AuditEvent, error) {
	limit := find.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, action, actor_id, target_subject_id, details, created_at FROM audit_event`
	var args []any
	if find.TargetSubjectID != "" {
		query += ` WHERE target_subject_id = ?`
		args = append(args, find.TargetSubjectID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list audit events")
	}
	defer rows.Close()

	var out []model.AuditEvent
	for rows.Next() {
		var e model.AuditEvent
		var action string
		var actor, target, details sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &action, &actor, &target, &details, &createdAt); err != nil {
			return nil, err
		}
		e.Action = model.Action(action)
		if actor.Valid {
			e.ActorID = actor.String
		}
		if target.Valid {
			e.TargetSubjectID = target.String
		}
		if details.Valid {
			json.Unmarshal([]byte(details.String), &e.Details)
		}
		e.CreatedAt = parseTime(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
