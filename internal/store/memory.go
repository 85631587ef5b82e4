package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/quietriver/sage/internal/memory"
	"github.com/quietriver/sage/internal/model"
)

// UpsertMemoryParams holds parameters for storing a memory.
type UpsertMemoryParams struct {
	Scope      model.Scope
	SubjectID  string // required iff Scope == ScopeSubject
	Content    string
	Source     string
	Tags       []string
	Confidence float64 // 0 means model.DefaultConfidence
	ExpiresAt  *time.Time
}

// FindMemory holds filters for listing memories.
type FindMemory struct {
	Scope          model.Scope // optional
	SubjectID      string      // optional
	ContentSearch  string      // substring on content
	SubjectSearch  string      // substring on subject id, name, or email
	Pinned         *bool
	IncludeExpired bool
	Limit          int
}

// UpdateMemoryParams patches a memory. Nil fields are left untouched.
type UpdateMemoryParams struct {
	ID         string
	Content    *string
	Pinned     *bool
	Tags       []string
	Confidence *float64
	ExpiresAt  *time.Time
}

// MemoryContext is the ranked bundle injected into a generation prompt.
type MemoryContext struct {
	Global  []string `json:"global"`
	Subject []string `json:"subject"`
}

// UpsertMemory deduplicates then writes. A candidate matching an existing
// record under the scope's matcher becomes a refresh-touch returning the
// existing record; otherwise a new record is inserted. Either way the
// operation ends with a capacity check for the affected scope.
func (s *Store) UpsertMemory(ctx context.Context, p UpsertMemoryParams) (*model.Memory, error) {
	if !p.Scope.Valid() {
		return nil, errors.Wrapf(model.ErrInvalidArgument, "unknown scope %q", p.Scope)
	}
	if (p.Scope == model.ScopeSubject) != (p.SubjectID != "") {
		return nil, errors.Wrap(model.ErrInvalidArgument, "subject id is set iff scope is SUBJECT")
	}
	content := memory.Normalize(p.Content)
	if content == "" {
		return nil, errors.Wrap(model.ErrInvalidArgument, "content is empty after normalization")
	}
	confidence := p.Confidence
	if confidence == 0 {
		confidence = model.DefaultConfidence
	}
	if confidence < 0 || confidence > 1 {
		return nil, errors.Wrapf(model.ErrInvalidArgument, "confidence %v outside [0,1]", confidence)
	}

	if existing, err := s.findDuplicate(ctx, p.Scope, p.SubjectID, content); err != nil {
		return nil, err
	} else if existing != nil {
		return s.refreshTouch(ctx, existing, p)
	}

	now := time.Now()
	m := &model.Memory{
		ID:         s.newID(),
		Scope:      p.Scope,
		SubjectID:  p.SubjectID,
		Content:    content,
		Source:     p.Source,
		Tags:       p.Tags,
		Confidence: confidence,
		ExpiresAt:  p.ExpiresAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if m.Source == "" {
		m.Source = "chat"
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memory (id, scope, subject_id, content, source, tags, confidence, pinned, expires_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		m.ID, string(m.Scope), nullable(m.SubjectID), m.Content, m.Source, tagsJSON(m.Tags),
		m.Confidence, nullableTime(m.ExpiresAt), formatTime(now), formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			// Lost a concurrent race to the same content. Treat the
			// winner's row as the duplicate and refresh it.
			existing, lookupErr := s.findDuplicate(ctx, p.Scope, p.SubjectID, content)
			if lookupErr == nil && existing != nil {
				return s.refreshTouch(ctx, existing, p)
			}
			return nil, errors.Wrap(model.ErrConstraintViolation, err.Error())
		}
		return nil, errors.Wrap(err, "insert memory")
	}

	if err := s.EnforceCapacity(ctx, p.Scope, p.SubjectID); err != nil {
		return nil, err
	}
	return m, nil
}

// findDuplicate scans the scope's rows through its matcher. Row counts are
// ceiling-bounded, so matching in process is cheap.
func (s *Store) findDuplicate(ctx context.Context, scope model.Scope, subjectID, content string) (*model.Memory, error) {
	matcher := s.subjectMatcher
	if scope == model.ScopeGlobal {
		matcher = s.globalMatcher
	}

	rows, err := s.db.QueryContext(ctx,
		selectMemory+` WHERE scope = ? AND ifnull(subject_id, '') = ? ORDER BY updated_at DESC`,
		string(scope), subjectID)
	if err != nil {
		return nil, errors.Wrap(err, "find duplicate")
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		if matcher.Match(m.Content, content) {
			return &m, nil
		}
	}
	return nil, rows.Err()
}

// refreshTouch bumps updated_at on an existing record instead of inserting
// a duplicate, optionally refreshing source and tags metadata.
func (s *Store) refreshTouch(ctx context.Context, existing *model.Memory, p UpsertMemoryParams) (*model.Memory, error) {
	now := time.Now()
	source := existing.Source
	if p.Source != "" {
		source = p.Source
	}
	tags := existing.Tags
	if len(p.Tags) > 0 {
		tags = p.Tags
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE memory SET updated_at = ?, source = ?, tags = ? WHERE id = ?`,
		formatTime(now), source, tagsJSON(tags), existing.ID)
	if err != nil {
		return nil, errors.Wrap(err, "refresh touch")
	}

	existing.UpdatedAt = now
	existing.Source = source
	existing.Tags = tags
	return existing, nil
}

// GetMemory retrieves one memory by id.
func (s *Store) GetMemory(ctx context.Context, id string) (*model.Memory, error) {
	row := s.db.QueryRowContext(ctx, selectMemory+` WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(model.ErrNotFound, "memory %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMemories lists memories matching the given filters, most recently
// updated first. Expired rows are excluded unless IncludeExpired is set.
func (s *Store) ListMemories(ctx context.Context, find FindMemory) ([]model.Memory, error) {
	limit := find.Limit
	if limit <= 0 {
		limit = 50
	}

	where := []string{"1 = 1"}
	var args []any

	if !find.IncludeExpired {
		where = append(where, "(m.expires_at IS NULL OR m.expires_at > ?)")
		args = append(args, formatTime(time.Now()))
	}
	if find.Scope != "" {
		where = append(where, "m.scope = ?")
		args = append(args, string(find.Scope))
	}
	if find.SubjectID != "" {
		where = append(where, "m.subject_id = ?")
		args = append(args, find.SubjectID)
	}
	if find.ContentSearch != "" {
		where = append(where, "m.content LIKE ?")
		args = append(args, "%"+find.ContentSearch+"%")
	}
	if find.SubjectSearch != "" {
		where = append(where, "(m.subject_id LIKE ? OR s.name LIKE ? OR s.email LIKE ?)")
		q := "%" + find.SubjectSearch + "%"
		args = append(args, q, q, q)
	}
	if find.Pinned != nil {
		where = append(where, "m.pinned = ?")
		args = append(args, boolInt(*find.Pinned))
	}

	query := `SELECT m.id, m.scope, m.subject_id, m.content, m.source, m.tags, m.confidence, m.pinned, m.expires_at, m.created_at, m.updated_at
		FROM memory m
		LEFT JOIN subject s ON s.id = m.subject_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY m.updated_at DESC
		LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list memories")
	}
	defer rows.Close()

	var out []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateMemory applies a patch to one memory. Content is re-normalized; a
// pinned flip has no side effect beyond the flag. A missing id is NotFound
// with no partial write.
func (s *Store) UpdateMemory(ctx context.Context, p UpdateMemoryParams) (*model.Memory, error) {
	m, err := s.GetMemory(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	if p.Content != nil {
		content := memory.Normalize(*p.Content)
		if content == "" {
			return nil, errors.Wrap(model.ErrInvalidArgument, "content is empty after normalization")
		}
		m.Content = content
	}
	if p.Pinned != nil {
		m.Pinned = *p.Pinned
	}
	if p.Tags != nil {
		m.Tags = p.Tags
	}
	if p.Confidence != nil {
		if *p.Confidence < 0 || *p.Confidence > 1 {
			return nil, errors.Wrapf(model.ErrInvalidArgument, "confidence %v outside [0,1]", *p.Confidence)
		}
		m.Confidence = *p.Confidence
	}
	if p.ExpiresAt != nil {
		m.ExpiresAt = p.ExpiresAt
	}

	// updated_at advances only on content touches; a pin flip must not
	// change the record's position in eviction order.
	updatedAt := m.UpdatedAt
	if p.Content != nil {
		updatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE memory SET content = ?, pinned = ?, tags = ?, confidence = ?, expires_at = ?, updated_at = ? WHERE id = ?`,
		m.Content, boolInt(m.Pinned), tagsJSON(m.Tags), m.Confidence, nullableTime(m.ExpiresAt), formatTime(updatedAt), m.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errors.Wrapf(model.ErrConstraintViolation, "content duplicates another memory")
		}
		return nil, errors.Wrap(err, "update memory")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, errors.Wrapf(model.ErrNotFound, "memory %s", p.ID)
	}
	m.UpdatedAt = updatedAt

	if err := s.EnforceCapacity(ctx, m.Scope, m.SubjectID); err != nil {
		return nil, err
	}
	return m, nil
}

// DeleteMemory removes exactly one memory by id. A missing id reports
// NotFound; repeating the delete is a no-op error, not a crash.
func (s *Store) DeleteMemory(ctx context.Context, id string) (*model.Memory, error) {
	m, err := s.GetMemory(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memory WHERE id = ?`, id); err != nil {
		return nil, errors.Wrap(err, "delete memory")
	}
	return m, nil
}

// DeleteSubjectMemories removes the subject's SUBJECT-scoped memories in a
// single statement, so interleaved readers see all qualifying rows gone or
// none. Pinned rows survive unless includePinned is set.
func (s *Store) DeleteSubjectMemories(ctx context.Context, subjectID string, includePinned bool) (int64, error) {
	if subjectID == "" {
		return 0, errors.Wrap(model.ErrInvalidArgument, "subject id is required")
	}
	query := `DELETE FROM memory WHERE scope = ? AND subject_id = ?`
	args := []any{string(model.ScopeSubject), subjectID}
	if !includePinned {
		query += ` AND pinned = 0`
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "delete subject memories")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Context returns the limit most recently updated GLOBAL and SUBJECT
// memories as content strings, most recent first. Expired rows are
// excluded; empty sides come back as empty slices, never an error.
func (s *Store) Context(ctx context.Context, subjectID string, limit int) (*MemoryContext, error) {
	if limit <= 0 {
		limit = 8
	}
	now := formatTime(time.Now())

	global, err := s.contextSide(ctx,
		`SELECT content FROM memory
		 WHERE scope = ? AND (expires_at IS NULL OR expires_at > ?)
		 ORDER BY updated_at DESC LIMIT ?`,
		string(model.ScopeGlobal), now, limit)
	if err != nil {
		return nil, err
	}

	subject, err := s.contextSide(ctx,
		`SELECT content FROM memory
		 WHERE scope = ? AND subject_id = ? AND (expires_at IS NULL OR expires_at > ?)
		 ORDER BY updated_at DESC LIMIT ?`,
		string(model.ScopeSubject), subjectID, now, limit)
	if err != nil {
		return nil, err
	}

	return &MemoryContext{Global: global, Subject: subject}, nil
}

func (s *Store) contextSide(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "read context")
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, err
		}
		out = append(out, content)
	}
	return out, rows.Err()
}

const selectMemory = `SELECT id, scope, subject_id, content, source, tags, confidence, pinned, expires_at, created_at, updated_at FROM memory`

type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(row scanner) (model.Memory, error) {
	var m model.Memory
	var scope string
	var subjectID, tags, expiresAt sql.NullString
	var pinned int
	var createdAt, updatedAt string

	err := row.Scan(&m.ID, &scope, &subjectID, &m.Content, &m.Source, &tags,
		&m.Confidence, &pinned, &expiresAt, &createdAt, &updatedAt)
	if err != nil {
		return m, err
	}

	m.Scope = model.Scope(scope)
	if subjectID.Valid {
		m.SubjectID = subjectID.String
	}
	if tags.Valid {
		json.Unmarshal([]byte(tags.String), &m.Tags)
	}
	m.Pinned = pinned != 0
	if expiresAt.Valid {
		t := parseTime(expiresAt.String)
		m.ExpiresAt = &t
	}
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	return m, nil
}

func tagsJSON(tags []string) *string {
	if len(tags) == 0 {
		return nil
	}
	b, _ := json.Marshal(tags)
	s := string(b)
	return &s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
