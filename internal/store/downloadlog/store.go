// Package downloadlog keeps a per-run sqlite record of what was downloaded
// and how each subject ended, so runs can be audited after the fact without
// replaying the text log.
package downloadlog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the sqlite database. All writes go through one mutex; the
// download loop is sequential per subject so contention is negligible.
type Store struct {
	mu    sync.Mutex
	db    *sql.DB
	runID string
}

// Item is one downloaded dataset instance.
type Item struct {
	Subject     string
	DatasetID   int64
	DatasetName string
	ExamDate    string
	ArchivePath string
	Extracted   bool
}

// SubjectOutcome summarizes one subject's pass.
type SubjectOutcome struct {
	Subject  string
	Status   string
	Duration time.Duration
}

// Open opens (creating if needed) the history database at path and tags
// every row written through this store with runID.
func Open(path, runID string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening download history db failed: %w", err)
	}
	s := &Store{db: db, runID: runID}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS download_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			subject TEXT NOT NULL,
			dataset_id INTEGER NOT NULL,
			dataset_name TEXT NOT NULL,
			exam_date TEXT,
			archive_path TEXT,
			extracted INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS subject_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			subject TEXT NOT NULL,
			status TEXT NOT NULL,
			duration_seconds REAL NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_download_items_run ON download_items(run_id, subject)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(context.Background(), stmt); err != nil {
			return fmt.Errorf("migrating download history db failed: %w", err)
		}
	}
	return nil
}

// RecordItem inserts one downloaded item.
func (s *Store) RecordItem(ctx context.Context, item Item) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO download_items
		 (run_id, subject, dataset_id, dataset_name, exam_date, archive_path, extracted, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID, item.Subject, item.DatasetID, item.DatasetName, item.ExamDate,
		item.ArchivePath, boolToInt(item.Extracted), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("recording download item failed: %w", err)
	}
	return nil
}

// RecordSubject inserts one subject outcome.
func (s *Store) RecordSubject(ctx context.Context, outcome SubjectOutcome) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subject_runs (run_id, subject, status, duration_seconds, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		s.runID, outcome.Subject, outcome.Status, outcome.Duration.Seconds(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("recording subject outcome failed: %w", err)
	}
	return nil
}

// ItemsForSubject returns the items recorded for one subject in this run.
func (s *Store) ItemsForSubject(ctx context.Context, subject string) ([]Item, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT subject, dataset_id, dataset_name, exam_date, archive_path, extracted
		 FROM download_items WHERE run_id = ? AND subject = ? ORDER BY id`,
		s.runID, subject)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var item Item
		var extracted int
		if err := rows.Scan(&item.Subject, &item.DatasetID, &item.DatasetName,
			&item.ExamDate, &item.ArchivePath, &extracted); err != nil {
			return nil, err
		}
		item.Extracted = extracted != 0
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
