package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"querygraph/domain"
)

// SQLiteStore implements Store using SQLite. The snapshot is persisted as
// a single JSON document per thread; status and timestamps are mirrored
// into columns for listing and sweeping.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS threads (
			thread_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			snapshot TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_threads_status ON threads(status, updated_at)`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload TEXT,
			FOREIGN KEY (thread_id) REFERENCES threads(thread_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_thread ON events(thread_id, ts)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSnapshot inserts a snapshot for a new thread. A concurrent create
// against the same id loses with ErrAlreadyExists.
func (s *SQLiteStore) CreateSnapshot(ctx context.Context, snap *domain.ExecutionSnapshot) error {
	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO threads (thread_id, status, snapshot, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		snap.ThreadID, string(snap.Status), string(doc), snap.CreatedAt, snap.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

// PutSnapshot overwrites the snapshot for an existing thread.
func (s *SQLiteStore) PutSnapshot(ctx context.Context, snap *domain.ExecutionSnapshot) error {
	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE threads SET status = ?, snapshot = ?, updated_at = ? WHERE thread_id = ?`,
		string(snap.Status), string(doc), snap.UpdatedAt, snap.ThreadID)
	return err
}

// GetSnapshot retrieves a thread's snapshot, or (nil, nil) when unknown.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, threadID string) (*domain.ExecutionSnapshot, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM threads WHERE thread_id = ?`, threadID).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snap domain.ExecutionSnapshot
	if err := json.Unmarshal([]byte(doc), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// ListThreads returns thread summaries, newest first, optionally filtered
// by status.
func (s *SQLiteStore) ListThreads(ctx context.Context, status domain.ThreadStatus, limit int) ([]domain.ThreadSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT thread_id, status, snapshot, created_at, updated_at FROM threads`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY updated_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threads []domain.ThreadSummary
	for rows.Next() {
		var t domain.ThreadSummary
		var st, doc string
		if err := rows.Scan(&t.ThreadID, &st, &doc, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		t.Status = domain.ThreadStatus(st)
		var snap domain.ExecutionSnapshot
		if err := json.Unmarshal([]byte(doc), &snap); err == nil {
			t.Messages = len(snap.Messages)
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

// ListSuspendedBefore returns ids of threads that have been suspended
// since before the cutoff, oldest first. Used by the interrupt sweeper.
func (s *SQLiteStore) ListSuspendedBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT thread_id FROM threads WHERE status = ? AND updated_at < ? ORDER BY updated_at ASC LIMIT ?`,
		string(domain.ThreadStatusSuspended), cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AppendEvent records a step event.
func (s *SQLiteStore) AppendEvent(ctx context.Context, event *domain.Event) error {
	payload := "null"
	if event.Payload != nil {
		payload = string(event.Payload)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (event_id, thread_id, ts, type, payload) VALUES (?, ?, ?, ?, ?)`,
		event.EventID, event.ThreadID, event.Ts, string(event.Type), payload)
	return err
}

// GetEvents returns events for a thread after the given timestamp.
func (s *SQLiteStore) GetEvents(ctx context.Context, threadID string, afterTs int64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, thread_id, ts, type, payload FROM events WHERE thread_id = ? AND ts > ? ORDER BY ts ASC LIMIT ?`,
		threadID, afterTs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		var typ, payload string
		if err := rows.Scan(&e.EventID, &e.ThreadID, &e.Ts, &typ, &payload); err != nil {
			return nil, err
		}
		e.Type = domain.EventType(typ)
		if payload != "" && payload != "null" {
			e.Payload = json.RawMessage(payload)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
