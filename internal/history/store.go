// Package history provides optional persistent storage of render outcomes.
package history

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Entry records one render attempt.
type Entry struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	WaitMS     int64     `json:"waitMs"`
	DurationMS int64     `json:"durationMs"`
	Status     string    `json:"status"` // "ok" | "error"
	Error      string    `json:"error,omitempty"`
	Bytes      int       `json:"bytes"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Store is a SQLite-backed render log.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore opens (or creates) the render history database at dbPath.
// Use ":memory:" for an in-memory database.
func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	var connStr string
	if dbPath == ":memory:" {
		connStr = "file::memory:?cache=shared&_timeout=5000&_busy_timeout=5000"
	} else {
		dir := filepath.Dir(dbPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create directory: %w", err)
			}
		}
		connStr = dbPath + "?_journal=WAL&_timeout=5000&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("render history store initialized", "path", dbPath)
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS renders (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		wait_ms INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		bytes INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_renders_created_at ON renders(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record inserts a render entry.
func (s *Store) Record(e *Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
	INSERT INTO renders (id, url, wait_ms, duration_ms, status, error, bytes, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.URL, e.WaitMS, e.DurationMS, e.Status, e.Error, e.Bytes,
		e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to record render: %w", err)
	}

	s.logger.Debug("render recorded", "id", e.ID, "status", e.Status)
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	rows, err := s.db.Query(`
	SELECT id, url, wait_ms, duration_ms, status, error, bytes, created_at
	FROM renders ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query renders: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.URL, &e.WaitMS, &e.DurationMS, &e.Status, &e.Error, &e.Bytes, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan render row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
