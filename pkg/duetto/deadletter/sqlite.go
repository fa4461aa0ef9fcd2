package deadletter

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists entries to SQLite, keeping at most maxRows of the
// newest entries.
type SQLiteStore struct {
	db      *sql.DB
	maxRows int
	mu      sync.RWMutex
	closed  bool
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the store at path. The path is a file
// path (e.g., "./deadletters.db") or ":memory:" for testing. A
// non-positive maxRows uses DefaultMaxSize.
func NewSQLiteStore(path string, maxRows int) (*SQLiteStore, error) {
	if maxRows < 1 {
		maxRows = DefaultMaxSize
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: ":memory:" databases are per connection, and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS dead_letters (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			event_id TEXT NOT NULL,
			source TEXT NOT NULL,
			channel TEXT NOT NULL,
			phase TEXT NOT NULL,
			error TEXT NOT NULL,
			body BLOB,
			failed_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteStore{db: db, maxRows: maxRows}, nil
}

// Record implements Store.
func (s *SQLiteStore) Record(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	e = normalize(e)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO dead_letters (id, event_id, source, channel, phase, error, body, failed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.EventID, e.Source, e.Channel, e.Phase, e.Error, e.Body,
		e.FailedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("record dead letter: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM dead_letters
		WHERE seq <= (SELECT MAX(seq) FROM dead_letters) - ?
	`, s.maxRows); err != nil {
		return fmt.Errorf("prune dead letters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if limit <= 0 {
		limit = -1 // no limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, source, channel, phase, error, body, failed_at
		FROM dead_letters
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var failedAt string
		if err := rows.Scan(&e.ID, &e.EventID, &e.Source, &e.Channel, &e.Phase, &e.Error, &e.Body, &failedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		e.FailedAt, _ = time.Parse(time.RFC3339Nano, failedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dead letters: %w", err)
	}
	return entries, nil
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letters`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count dead letters: %w", err)
	}
	return n, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
