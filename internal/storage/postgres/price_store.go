package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"capital-flow-lab/internal/domain"
	"capital-flow-lab/internal/storage"
)

// PriceStore implements storage.PriceStore using PostgreSQL.
type PriceStore struct {
	pool *Pool
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(pool *Pool) *PriceStore {
	return &PriceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

var priceColumns = []string{"ticker", "trade_date", "open", "high", "low", "close", "adj_close", "volume"}

// InsertBulk adds multiple records atomically using COPY. Fails entire batch on any duplicate.
func (s *PriceStore) InsertBulk(ctx context.Context, prices []domain.PriceRecord) error {
	if len(prices) == 0 {
		return nil
	}

	for _, p := range prices {
		if p.Ticker == "" || p.Date.IsZero() {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.CopyFrom(ctx, pgx.Identifier{"daily_prices"}, priceColumns,
		pgx.CopyFromSlice(len(prices), func(i int) ([]any, error) {
			p := prices[i]
			return []any{
				p.Ticker,
				domain.TruncateDate(p.Date),
				p.Open,
				p.High,
				p.Low,
				p.Close,
				p.AdjClose,
				p.Volume,
			}, nil
		}),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("copy daily prices: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetAll retrieves every record, ordered by (ticker, date) ASC.
func (s *PriceStore) GetAll(ctx context.Context) ([]domain.PriceRecord, error) {
	query := `
		SELECT ticker, trade_date, open, high, low, close, adj_close, volume
		FROM daily_prices
		ORDER BY ticker ASC, trade_date ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all prices: %w", err)
	}
	defer rows.Close()

	return scanPrices(rows)
}

// GetByTickers retrieves records for the given tickers, ordered by (ticker, date) ASC.
func (s *PriceStore) GetByTickers(ctx context.Context, tickers []string) ([]domain.PriceRecord, error) {
	query := `
		SELECT ticker, trade_date, open, high, low, close, adj_close, volume
		FROM daily_prices
		WHERE ticker = ANY($1)
		ORDER BY ticker ASC, trade_date ASC
	`

	rows, err := s.pool.Query(ctx, query, tickers)
	if err != nil {
		return nil, fmt.Errorf("get prices by tickers: %w", err)
	}
	defer rows.Close()

	return scanPrices(rows)
}

// GetByDateRange retrieves records within [start, end] (inclusive).
func (s *PriceStore) GetByDateRange(ctx context.Context, start, end time.Time) ([]domain.PriceRecord, error) {
	query := `
		SELECT ticker, trade_date, open, high, low, close, adj_close, volume
		FROM daily_prices
		WHERE trade_date >= $1 AND trade_date <= $2
		ORDER BY ticker ASC, trade_date ASC
	`

	rows, err := s.pool.Query(ctx, query, domain.TruncateDate(start), domain.TruncateDate(end))
	if err != nil {
		return nil, fmt.Errorf("get prices by date range: %w", err)
	}
	defer rows.Close()

	return scanPrices(rows)
}

// scanPrices scans multiple rows into a slice of PriceRecord.
func scanPrices(rows pgx.Rows) ([]domain.PriceRecord, error) {
	var prices []domain.PriceRecord

	for rows.Next() {
		var p domain.PriceRecord

		err := rows.Scan(
			&p.Ticker,
			&p.Date,
			&p.Open,
			&p.High,
			&p.Low,
			&p.Close,
			&p.AdjClose,
			&p.Volume,
		)
		if err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		p.Date = domain.TruncateDate(p.Date)

		prices = append(prices, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price rows: %w", err)
	}

	return prices, nil
}
