package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"capital-flow-lab/internal/domain"
	"capital-flow-lab/internal/storage"
)

// VolatilityStore implements storage.VolatilityStore using PostgreSQL.
type VolatilityStore struct {
	pool *Pool
}

// NewVolatilityStore creates a new VolatilityStore.
func NewVolatilityStore(pool *Pool) *VolatilityStore {
	return &VolatilityStore{pool: pool}
}

// Compile-time interface check.
var _ storage.VolatilityStore = (*VolatilityStore)(nil)

// InsertBulk adds multiple records atomically. Fails entire batch on any duplicate date.
func (s *VolatilityStore) InsertBulk(ctx context.Context, vols []domain.VolatilityRecord) error {
	if len(vols) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO volatility_index (trade_date, close) VALUES ($1, $2)`

	for _, v := range vols {
		if v.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		if _, err := tx.Exec(ctx, query, domain.TruncateDate(v.Date), v.Close); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert volatility in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetAll retrieves every record, ordered by date ASC.
func (s *VolatilityStore) GetAll(ctx context.Context) ([]domain.VolatilityRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT trade_date, close FROM volatility_index ORDER BY trade_date ASC`)
	if err != nil {
		return nil, fmt.Errorf("get all volatility: %w", err)
	}
	defer rows.Close()

	return scanVolatility(rows)
}

// GetByDateRange retrieves records within [start, end] (inclusive), ordered by date ASC.
func (s *VolatilityStore) GetByDateRange(ctx context.Context, start, end time.Time) ([]domain.VolatilityRecord, error) {
	query := `
		SELECT trade_date, close
		FROM volatility_index
		WHERE trade_date >= $1 AND trade_date <= $2
		ORDER BY trade_date ASC
	`

	rows, err := s.pool.Query(ctx, query, domain.TruncateDate(start), domain.TruncateDate(end))
	if err != nil {
		return nil, fmt.Errorf("get volatility by date range: %w", err)
	}
	defer rows.Close()

	return scanVolatility(rows)
}

// LatestDate returns the most recent stored date. Returns ErrNotFound if the table is empty.
func (s *VolatilityStore) LatestDate(ctx context.Context) (time.Time, error) {
	var latest time.Time
	err := s.pool.QueryRow(ctx, `SELECT trade_date FROM volatility_index ORDER BY trade_date DESC LIMIT 1`).Scan(&latest)
	if err != nil {
		if isNotFoundError(err) {
			return time.Time{}, storage.ErrNotFound
		}
		return time.Time{}, fmt.Errorf("get latest volatility date: %w", err)
	}
	return domain.TruncateDate(latest), nil
}

// scanVolatility scans multiple rows into a slice of VolatilityRecord.
func scanVolatility(rows pgx.Rows) ([]domain.VolatilityRecord, error) {
	var vols []domain.VolatilityRecord

	for rows.Next() {
		var v domain.VolatilityRecord
		if err := rows.Scan(&v.Date, &v.Close); err != nil {
			return nil, fmt.Errorf("scan volatility row: %w", err)
		}
		v.Date = domain.TruncateDate(v.Date)
		vols = append(vols, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate volatility rows: %w", err)
	}

	return vols, nil
}
