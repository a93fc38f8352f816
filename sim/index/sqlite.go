// Package index keeps a sqlite catalogue of simulated trials: which
// configuration ran, where its snapshots went, and how it ended.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Trial statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// TrialRecord is one row of the trials table.
type TrialRecord struct {
	RunID      string
	Trial      string
	N          int
	Repetition int
	Seed       int64
	RandomMax  int
	Adversary  bool
	Iterations int64
	Resolution int64
	Status     string
	Error      string
	FinalN     int
	Snapshots  int
	OutputPath string
	StartedAt  time.Time
	FinishedAt time.Time
}

// SQLiteIndex stores TrialRecords. Safe for concurrent use by trial workers.
type SQLiteIndex struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the index database at path.
func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteIndex{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trials (
			run_id TEXT NOT NULL,
			trial TEXT NOT NULL,
			n INTEGER NOT NULL,
			repetition INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			random_max INTEGER NOT NULL,
			adversary INTEGER NOT NULL,
			iterations INTEGER NOT NULL,
			resolution INTEGER NOT NULL,
			status TEXT NOT NULL,
			error TEXT NOT NULL,
			final_n INTEGER NOT NULL,
			snapshots INTEGER NOT NULL,
			output_path TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			PRIMARY KEY (run_id, trial)
		);`,
		`CREATE INDEX IF NOT EXISTS trials_by_n ON trials(n, status);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// RecordTrial inserts or replaces the row for r.
func (s *SQLiteIndex) RecordTrial(ctx context.Context, r TrialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO trials (
			run_id, trial, n, repetition, seed, random_max, adversary,
			iterations, resolution, status, error, final_n, snapshots,
			output_path, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Trial, r.N, r.Repetition, r.Seed, r.RandomMax, boolToInt(r.Adversary),
		r.Iterations, r.Resolution, r.Status, r.Error, r.FinalN, r.Snapshots,
		r.OutputPath, r.StartedAt.UTC().Format(time.RFC3339Nano), r.FinishedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("recording trial %s: %w", r.Trial, err)
	}
	return nil
}

// Trials returns every row of runID ordered by n then repetition.
func (s *SQLiteIndex) Trials(ctx context.Context, runID string) ([]TrialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, `SELECT
			run_id, trial, n, repetition, seed, random_max, adversary,
			iterations, resolution, status, error, final_n, snapshots,
			output_path, started_at, finished_at
		FROM trials WHERE run_id = ? ORDER BY n, repetition`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []TrialRecord
	for rows.Next() {
		var r TrialRecord
		var adversary int
		var started, finished string
		if err := rows.Scan(&r.RunID, &r.Trial, &r.N, &r.Repetition, &r.Seed, &r.RandomMax, &adversary,
			&r.Iterations, &r.Resolution, &r.Status, &r.Error, &r.FinalN, &r.Snapshots,
			&r.OutputPath, &started, &finished); err != nil {
			return nil, err
		}
		r.Adversary = adversary != 0
		var err error
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("trial %s: parsing started_at: %w", r.Trial, err)
		}
		if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("trial %s: parsing finished_at: %w", r.Trial, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
