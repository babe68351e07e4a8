// Package store provides a SQLite-backed query log for cottagebot. Every
// question answered through the server, the CLI or MCP can be appended with
// its answer and the records that were retrieved, and replayed later with
// `cottagebot history`.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Entry is one logged question and its outcome.
type Entry struct {
	// ID is assigned by the store on append.
	ID int64 `json:"id"`
	// Question is the guest question as received.
	Question string `json:"question"`
	// Answer is the generated response; empty when Err is set.
	Answer string `json:"answer,omitempty"`
	// RecordIDs lists the retrieved record ids, best match first.
	RecordIDs []string `json:"record_ids"`
	// TopK is the number of records requested.
	TopK int `json:"top_k"`
	// Latency is the end-to-end time to answer.
	Latency time.Duration `json:"latency_ns"`
	// Err is the failure message, if answering failed.
	Err string `json:"error,omitempty"`
	// Source names the surface that received the question (http, cli, mcp).
	Source string `json:"source"`
	// CreatedAt is when the entry was logged. Zero means now.
	CreatedAt time.Time `json:"created_at"`
}

// QueryLog persists and retrieves answered questions. Implementations must
// be safe for concurrent use.
type QueryLog interface {
	// Append persists a single entry.
	Append(ctx context.Context, e Entry) error
	// Recent returns the most recent n entries, newest first.
	Recent(ctx context.Context, n int) ([]Entry, error)
	// Close releases any resources held by the log.
	Close() error
}

// SQLiteStore is a QueryLog backed by a local SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultDBPath returns ~/.cottagebot/queries.db, creating the directory if
// needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".cottagebot")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "queries.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Single writer; also keeps ":memory:" to one shared database.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS queries (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    question    TEXT    NOT NULL,
    answer      TEXT    NOT NULL DEFAULT '',
    record_ids  TEXT    NOT NULL DEFAULT '',
    top_k       INTEGER NOT NULL DEFAULT 0,
    latency_ms  INTEGER NOT NULL DEFAULT 0,
    error       TEXT    NOT NULL DEFAULT '',
    source      TEXT    NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL  -- Unix milliseconds
);
CREATE INDEX IF NOT EXISTS idx_queries_created ON queries (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append persists a single entry.
func (s *SQLiteStore) Append(ctx context.Context, e Entry) error {
	created := e.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	const q = `INSERT INTO queries (question, answer, record_ids, top_k, latency_ms, error, source, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		e.Question, e.Answer, strings.Join(e.RecordIDs, ","), e.TopK,
		e.Latency.Milliseconds(), e.Err, e.Source, created.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// Recent returns the most recent n entries, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Entry, error) {
	const q = `
SELECT id, question, answer, record_ids, top_k, latency_ms, error, source, created_at
FROM   queries
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			ids       string
			latencyMS int64
			ts        int64
		)
		if err := rows.Scan(&e.ID, &e.Question, &e.Answer, &ids, &e.TopK, &latencyMS, &e.Err, &e.Source, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		if ids != "" {
			e.RecordIDs = strings.Split(ids, ",")
		}
		e.Latency = time.Duration(latencyMS) * time.Millisecond
		e.CreatedAt = time.UnixMilli(ts)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return out, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
