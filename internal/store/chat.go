package store

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/quietriver/sage/internal/model"
)

// CreateChatMessage appends one transcript turn for a subject.
func (s *Store) CreateChatMessage(ctx context.Context, subjectID, role, content string) (*model.ChatMessage, error) {
	if subjectID == "" || role == "" || content == "" {
		return nil, errors.Wrap(model.ErrInvalidArgument, "subject id, role, and content are required")
	}

	msg := &model.ChatMessage{
		ID:        s.newID(),
		SubjectID: subjectID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_message (id, subject_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.SubjectID, msg.Role, msg.Content, formatTime(msg.CreatedAt))
	if err != nil {
		return nil, errors.Wrap(err, "insert chat message")
	}
	return msg, nil
}

// ListChatMessages returns the most recent limit turns for a subject in
// chronological order.
func (s *Store) ListChatMessages(ctx context.Context, subjectID string, limit int) ([]model.ChatMessage, error) {
	if limit <= 0 {
		limit = 120
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subject_id, role, content, created_at FROM (
			SELECT id, subject_id, role, content, created_at FROM chat_message
			WHERE subject_id = ? ORDER BY created_at DESC LIMIT ?
		) ORDER BY created_at ASC`,
		subjectID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list chat messages")
	}
	defer rows.Close()

	var out []model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		var createdAt string
		if err := rows.Scan(&m.ID, &m.SubjectID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt = parseTime(createdAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteChatMessages wipes a subject's transcript.
func (s *Store) DeleteChatMessages(ctx context.Context, subjectID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_message WHERE subject_id = ?`, subjectID)
	if err != nil {
		return 0, errors.Wrap(err, "delete chat messages")
	}
	n, _ := res.RowsAffected()
	return n, nil
}
