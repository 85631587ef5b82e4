// Package store provides SQLite persistence for memories, audit events,
// retention policy, subjects, and chat transcripts.
package store

import (
	"database/sql"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/quietriver/sage/internal/memory"
)

// timeFormat is fixed-width UTC so string comparison in SQL orders
// chronologically at nanosecond precision.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Store wraps the database connection. All operations are short,
// self-contained units of work; there are no long-lived locks.
type Store struct {
	db      *sql.DB
	entropy *rand.Rand

	// Duplicate-matching strategies per scope, injected so the upsert
	// control flow never changes when a strategy is swapped.
	subjectMatcher memory.Matcher
	globalMatcher  memory.Matcher
}

// Option configures a Store.
type Option func(*Store)

// WithSubjectMatcher overrides the duplicate matcher for SUBJECT memories.
func WithSubjectMatcher(m memory.Matcher) Option {
	return func(s *Store) { s.subjectMatcher = m }
}

// WithGlobalMatcher overrides the duplicate matcher for GLOBAL memories.
func WithGlobalMatcher(m memory.Matcher) Option {
	return func(s *Store) { s.globalMatcher = m }
}

// New opens or creates the SQLite database at dbPath and runs migrations.
func New(dbPath string, opts ...Option) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create db dir")
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, errors.Wrap(err, "open db")
	}

	// SQLite is single-writer. One shared connection lets database/sql
	// serialize callers instead of having them fight for the write lock.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{
		db:             db,
		entropy:        rand.New(rand.NewSource(time.Now().UnixNano())),
		subjectMatcher: memory.ExactMatcher{},
		globalMatcher:  memory.PrefixMatcher{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate")
	}

	return s, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeFormat, s)
	return t
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memory (
		id          TEXT PRIMARY KEY,
		scope       TEXT NOT NULL,
		subject_id  TEXT,
		content     TEXT NOT NULL,
		source      TEXT NOT NULL DEFAULT 'chat',
		tags        TEXT,
		confidence  REAL NOT NULL DEFAULT 0.6,
		pinned      INTEGER NOT NULL DEFAULT 0,
		expires_at  TEXT,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_memory_dedupe
		ON memory(scope, ifnull(subject_id, ''), content);
	CREATE INDEX IF NOT EXISTS idx_memory_recency ON memory(scope, subject_id, updated_at DESC);
	CREATE INDEX IF NOT EXISTS idx_memory_expires ON memory(expires_at);

	CREATE TABLE IF NOT EXISTS audit_event (
		id                TEXT PRIMARY KEY,
		action            TEXT NOT NULL,
		actor_id          TEXT,
		target_subject_id TEXT,
		details           TEXT,
		created_at        TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_event(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_subject ON audit_event(target_subject_id);

	CREATE TABLE IF NOT EXISTS retention_policy (
		id              INTEGER PRIMARY KEY CHECK (id = 1),
		retention_days  INTEGER NOT NULL,
		subject_ceiling INTEGER NOT NULL,
		global_ceiling  INTEGER NOT NULL,
		updated_at      TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS subject (
		id         TEXT PRIMARY KEY,
		name       TEXT,
		email      TEXT UNIQUE,
		goal       TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_message (
		id         TEXT PRIMARY KEY,
		subject_id TEXT NOT NULL,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_subject_created ON chat_message(subject_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}
