// Package history provides a SQLite-backed transcript store for chat
// sessions. Each websocket session has its own thread of question/answer
// turns, persisted when the session ends so conversations survive restarts
// and stay available for review.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/adotb/adotb-go/internal/rag"
)

// Store persists and retrieves chat transcripts keyed by session ID.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append persists the turns of one session, in order. userID may be
	// empty for anonymous sessions.
	Append(ctx context.Context, sessionID, userID string, turns []rag.ChatTurn) error
	// Recent returns the most recent n turns for the session, oldest-first.
	// If fewer than n turns exist, all are returned.
	Recent(ctx context.Context, sessionID string, n int) ([]rag.ChatTurn, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a Store backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// DefaultDBPath returns the default path for the transcript database.
// It resolves to ~/.adotb/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("history: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".adotb")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("history: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS transcripts (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id   TEXT    NOT NULL,
    user_id      TEXT    NOT NULL DEFAULT '',
    question     TEXT    NOT NULL,
    answer       TEXT    NOT NULL,
    created_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_transcripts_session_created
    ON transcripts (session_id, created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Append persists the turns of one session inside a single transaction.
func (s *SQLiteStore) Append(ctx context.Context, sessionID, userID string, turns []rag.ChatTurn) error {
	if len(turns) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin: %w", err)
	}
	defer tx.Rollback()

	const q = `INSERT INTO transcripts (session_id, user_id, question, answer, created_at) VALUES (?, ?, ?, ?, ?)`
	now := time.Now().Unix()
	for _, turn := range turns {
		if _, err := tx.ExecContext(ctx, q, sessionID, userID, turn.Question, turn.Answer, now); err != nil {
			return fmt.Errorf("history: append: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: commit: %w", err)
	}
	return nil
}

// Recent returns the most recent n turns for the session, oldest-first.
// Uses a subquery to select the tail then re-order for replay.
func (s *SQLiteStore) Recent(ctx context.Context, sessionID string, n int) ([]rag.ChatTurn, error) {
	const q = `
SELECT question, answer FROM (
    SELECT id, question, answer
    FROM   transcripts
    WHERE  session_id = ?
    ORDER  BY created_at DESC, id DESC
    LIMIT  ?
) ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, q, sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	var turns []rag.ChatTurn
	for rows.Next() {
		var t rag.ChatTurn
		if err := rows.Scan(&t.Question, &t.Answer); err != nil {
			return nil, fmt.Errorf("history: recent scan: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: recent rows: %w", err)
	}
	return turns, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
