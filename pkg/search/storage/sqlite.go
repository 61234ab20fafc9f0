//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultLocation is where runs are stored when no location is given.
const DefaultLocation = "sqlite:coverage-search.db"

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func newSQLiteStore(path string) (Store, error) {
	return NewSQLiteStore(path), nil
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveArchive(ctx context.Context, snapshot ArchiveSnapshot) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := EncodeArchive(snapshot)
	if err != nil {
		return err
	}

	summary := snapshot.Summary()
	_, err = db.ExecContext(ctx, `
		INSERT INTO archives (run_id, subject, algorithm, objective_manager, created_at, covered, objectives, archive_size, schema_version, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			subject = excluded.subject,
			algorithm = excluded.algorithm,
			objective_manager = excluded.objective_manager,
			created_at = excluded.created_at,
			covered = excluded.covered,
			objectives = excluded.objectives,
			archive_size = excluded.archive_size,
			schema_version = excluded.schema_version,
			payload = excluded.payload
	`, summary.ID, summary.Subject, summary.Algorithm, summary.ObjectiveManager,
		summary.CreatedAt.UTC().Format(time.RFC3339Nano), summary.Covered, summary.Objectives,
		summary.ArchiveSize, snapshot.SchemaVersion, payload)
	return err
}

func (s *SQLiteStore) GetArchive(ctx context.Context, runID string) (ArchiveSnapshot, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return ArchiveSnapshot{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, `SELECT payload FROM archives WHERE run_id = ?`, runID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ArchiveSnapshot{}, false, nil
		}
		return ArchiveSnapshot{}, false, err
	}

	snapshot, err := DecodeArchive(payload)
	if err != nil {
		return ArchiveSnapshot{}, false, fmt.Errorf("decode archive %s: %w", runID, err)
	}
	return snapshot, true, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]RunSummary, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT run_id, subject, algorithm, objective_manager, created_at, covered, objectives, archive_size
		FROM archives
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			summary   RunSummary
			createdAt string
		)
		if err := rows.Scan(&summary.ID, &summary.Subject, &summary.Algorithm, &summary.ObjectiveManager,
			&createdAt, &summary.Covered, &summary.Objectives, &summary.ArchiveSize); err != nil {
			return nil, err
		}
		summary.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at of run %s: %w", summary.ID, err)
		}
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortRuns(out)
	return out, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS archives (
			run_id TEXT PRIMARY KEY,
			subject TEXT NOT NULL,
			algorithm TEXT NOT NULL,
			objective_manager TEXT NOT NULL,
			created_at TEXT NOT NULL,
			covered INTEGER NOT NULL,
			objectives INTEGER NOT NULL,
			archive_size INTEGER NOT NULL,
			schema_version INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
	`)
	return err
}
