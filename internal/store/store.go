// Package store persists the history of harvest runs.
package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusOK          = "ok"
	StatusNoCandidate = "no-candidate"
	StatusFailed      = "failed"
)

// Run is one recorded harvest invocation.
type Run struct {
	ID              int64
	LoginURL        string
	StartedAt       time.Time
	FinishedAt      time.Time
	Status          string
	CandidateSource string
	CandidateName   string
	SnapshotPath    string
	ConfigPath      string
	Error           string
}

// Store handles all database operations
type Store struct {
	db *sql.DB
}

// New creates a new Store with SQLite backend
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		login_url TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		status TEXT NOT NULL,
		candidate_source TEXT,
		candidate_name TEXT,
		snapshot_path TEXT,
		config_path TEXT,
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordRun inserts a run and returns its ID.
func (s *Store) RecordRun(r Run) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO runs (login_url, started_at, finished_at, status,
			candidate_source, candidate_name, snapshot_path, config_path, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.LoginURL, r.StartedAt.UTC(), r.FinishedAt.UTC(), r.Status,
		r.CandidateSource, r.CandidateName, r.SnapshotPath, r.ConfigPath, r.Error,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecentRuns returns up to limit runs, most recent first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT id, login_url, started_at, finished_at, status,
			candidate_source, candidate_name, snapshot_path, config_path, error
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.LoginURL, &r.StartedAt, &r.FinishedAt, &r.Status,
			&r.CandidateSource, &r.CandidateName, &r.SnapshotPath, &r.ConfigPath, &r.Error); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// DefaultPath returns the default database location next to the tool config.
func DefaultPath(configDir string) string {
	return filepath.Join(configDir, "runs.db")
}
