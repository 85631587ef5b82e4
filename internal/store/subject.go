package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/quietriver/sage/internal/model"
)

// UpsertSubject creates or refreshes a subject row. The row exists so the
// admin surface can search by name/email and the chat pipeline can
// personalize on the goal; identity itself is established by the caller.
func (s *Store) UpsertSubject(ctx context.Context, subject *model.Subject) (*model.Subject, error) {
	if subject.ID == "" {
		return nil, errors.Wrap(model.ErrInvalidArgument, "subject id is required")
	}
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subject (id, name, email, goal, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email, goal = excluded.goal`,
		subject.ID, nullable(subject.Name), nullable(subject.Email), nullable(subject.Goal),
		formatTime(subject.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errors.Wrapf(model.ErrConstraintViolation, "email %s already registered", subject.Email)
		}
		return nil, errors.Wrap(err, "upsert subject")
	}
	return subject, nil
}

// GetSubject retrieves one subject by id.
func (s *Store) GetSubject(ctx context.Context, id string) (*model.Subject, error) {
	var sub model.Subject
	var name, email, goal sql.NullString
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, goal, created_at FROM subject WHERE id = ?`, id).
		Scan(&sub.ID, &name, &email, &goal, &createdAt)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(model.ErrNotFound, "subject %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get subject")
	}
	if name.Valid {
		sub.Name = name.String
	}
	if email.Valid {
		sub.Email = email.String
	}
	if goal.Valid {
		sub.Goal = goal.String
	}
	sub.CreatedAt = parseTime(createdAt)
	return &sub, nil
}

// ListSubjects returns subjects, newest first, optionally filtered by an
// id/name/email substring.
func (s *Store) ListSubjects(ctx context.Context, search string, limit int) ([]model.Subject, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, name, email, goal, created_at FROM subject`
	var args []any
	if search != "" {
		query += ` WHERE id LIKE ? OR name LIKE ? OR email LIKE ?`
		q := "%" + search + "%"
		args = append(args, q, q, q)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list subjects")
	}
	defer rows.Close()

	var out []model.Subject
	for rows.Next() {
		var sub model.Subject
		var name, email, goal sql.NullString
		var createdAt string
		if err := rows.Scan(&sub.ID, &name, &email, &goal, &createdAt); err != nil {
			return nil, err
		}
		if name.Valid {
			sub.Name = name.String
		}
		if email.Valid {
			sub.Email = email.String
		}
		if goal.Valid {
			sub.Goal = goal.String
		}
		sub.CreatedAt = parseTime(createdAt)
		out = append(out, sub)
	}
	return out, rows.Err()
}
