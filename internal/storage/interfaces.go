package storage

import (
	"context"
	"time"

	"capital-flow-lab/internal/domain"
)

// PriceStore provides access to daily_prices storage.
type PriceStore interface {
	// InsertBulk adds multiple records atomically. Fails entire batch on duplicate (ticker, date).
	InsertBulk(ctx context.Context, prices []domain.PriceRecord) error

	// GetAll retrieves every record, ordered by (ticker, date) ASC.
	GetAll(ctx context.Context) ([]domain.PriceRecord, error)

	// GetByTickers retrieves records for the given tickers, ordered by (ticker, date) ASC.
	GetByTickers(ctx context.Context, tickers []string) ([]domain.PriceRecord, error)

	// GetByDateRange retrieves records with date within [start, end] (inclusive), ordered by (ticker, date) ASC.
	GetByDateRange(ctx context.Context, start, end time.Time) ([]domain.PriceRecord, error)
}

// VolatilityStore provides access to volatility_index storage.
type VolatilityStore interface {
	// InsertBulk adds multiple records atomically. Fails entire batch on duplicate date.
	InsertBulk(ctx context.Context, vols []domain.VolatilityRecord) error

	// GetAll retrieves every record, ordered by date ASC.
	GetAll(ctx context.Context) ([]domain.VolatilityRecord, error)

	// GetByDateRange retrieves records with date within [start, end] (inclusive), ordered by date ASC.
	GetByDateRange(ctx context.Context, start, end time.Time) ([]domain.VolatilityRecord, error)
}

// FlowFeatureStore provides access to flow_features storage.
// The table is a derived artifact: every run replaces it wholesale.
type FlowFeatureStore interface {
	// ReplaceAll atomically swaps the stored table for records.
	// Fails with ErrDuplicateKey, leaving the old table in place, on duplicate (ticker, date).
	ReplaceAll(ctx context.Context, records []*domain.FlowFeatureRecord) error

	// GetAll retrieves every record, ordered by (ticker, date) ASC.
	GetAll(ctx context.Context) ([]*domain.FlowFeatureRecord, error)

	// GetByTicker retrieves records for one ticker, ordered by date ASC.
	GetByTicker(ctx context.Context, ticker string) ([]*domain.FlowFeatureRecord, error)
}

// RunStore provides access to the run ledger.
type RunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunRecord) error

	// Finish records the terminal state of a run. Returns ErrNotFound if run_id does not exist.
	Finish(ctx context.Context, r *domain.RunRecord) error

	// GetByID retrieves a run. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunRecord, error)

	// Latest retrieves the most recently started run. Returns ErrNotFound if the ledger is empty.
	Latest(ctx context.Context) (*domain.RunRecord, error)
}
