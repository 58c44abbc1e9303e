// Package sqlite keeps the pipeline run ledger in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"capital-flow-lab/internal/domain"
	"capital-flow-lab/internal/storage"
)

// RunStore implements storage.RunStore on SQLite.
type RunStore struct {
	db *sql.DB
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

// Open opens or creates the ledger at path. ":memory:" keeps it in process.
func Open(path string) (*RunStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; also keeps one :memory: database

	if path != ":memory:" {
		if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}

	s := &RunStore{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create ledger tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *RunStore) Close() error {
	return s.db.Close()
}

func (s *RunStore) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id            TEXT PRIMARY KEY,
			started_at        INTEGER NOT NULL,
			finished_at       INTEGER,
			status            TEXT NOT NULL,
			input_fingerprint TEXT NOT NULL DEFAULT '',
			price_rows        INTEGER NOT NULL DEFAULT 0,
			volatility_rows   INTEGER NOT NULL DEFAULT 0,
			output_rows       INTEGER NOT NULL DEFAULT 0,
			error             TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.RunRecord) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
			(run_id, started_at, finished_at, status, input_fingerprint,
			 price_rows, volatility_rows, output_rows, error)
		VALUES (?,?,?,?,?,?,?,?,?)
		ON CONFLICT(run_id) DO NOTHING`,
		r.RunID, r.StartedAt.UnixNano(), nullableNanos(r.FinishedAt), string(r.Status), r.InputFingerprint,
		r.PriceRows, r.VolatilityRows, r.OutputRows, r.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if n == 0 {
		return storage.ErrDuplicateKey
	}
	return nil
}

// Finish records the terminal state of an existing run.
func (s *RunStore) Finish(ctx context.Context, r *domain.RunRecord) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET
			finished_at = ?, status = ?, input_fingerprint = ?,
			price_rows = ?, volatility_rows = ?, output_rows = ?, error = ?
		WHERE run_id = ?`,
		nullableNanos(r.FinishedAt), string(r.Status), r.InputFingerprint,
		r.PriceRows, r.VolatilityRows, r.OutputRows, r.Error,
		r.RunID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a run by its ID.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, selectRun+` WHERE run_id = ?`, runID)
	return scanRun(row)
}

// Latest retrieves the most recently started run.
func (s *RunStore) Latest(ctx context.Context) (*domain.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, selectRun+` ORDER BY started_at DESC, rowid DESC LIMIT 1`)
	return scanRun(row)
}

const selectRun = `
	SELECT run_id, started_at, finished_at, status, input_fingerprint,
	       price_rows, volatility_rows, output_rows, error
	FROM runs`

func scanRun(row *sql.Row) (*domain.RunRecord, error) {
	var (
		r        domain.RunRecord
		started  int64
		finished sql.NullInt64
		status   string
	)
	err := row.Scan(&r.RunID, &started, &finished, &status, &r.InputFingerprint,
		&r.PriceRows, &r.VolatilityRows, &r.OutputRows, &r.Error)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}

	r.StartedAt = time.Unix(0, started).UTC()
	if finished.Valid {
		t := time.Unix(0, finished.Int64).UTC()
		r.FinishedAt = &t
	}
	r.Status = domain.RunStatus(status)
	return &r, nil
}

func nullableNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}
