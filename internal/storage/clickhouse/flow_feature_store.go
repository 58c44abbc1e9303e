package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/guregu/null/v6"

	"capital-flow-lab/internal/domain"
	"capital-flow-lab/internal/storage"
)

// FlowFeatureStore implements storage.FlowFeatureStore using ClickHouse.
//
// ReplaceAll loads the new table into flow_features_staging and then swaps the two
// tables with EXCHANGE TABLES, so readers see either the old or the new table in full.
type FlowFeatureStore struct {
	conn *Conn
}

// NewFlowFeatureStore creates a new FlowFeatureStore.
func NewFlowFeatureStore(conn *Conn) *FlowFeatureStore {
	return &FlowFeatureStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FlowFeatureStore = (*FlowFeatureStore)(nil)

const flowFeatureColumns = `
	ticker, trade_date,
	open, high, low, close, adj_close, volume,
	notional_traded, notional_lag, d_notional, d_notional_universe,
	flow_share, flow_z, vix
`

// ReplaceAll atomically replaces the stored table with records.
func (s *FlowFeatureStore) ReplaceAll(ctx context.Context, records []*domain.FlowFeatureRecord) error {
	// Check for intra-batch duplicates; MergeTree does not enforce keys.
	type key struct {
		ticker string
		date   string
	}
	seen := make(map[key]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.Ticker == "" {
			return storage.ErrInvalidInput
		}
		k := key{r.Ticker, domain.DateKey(r.Date)}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	if err := s.conn.Exec(ctx, `TRUNCATE TABLE IF EXISTS flow_features_staging`); err != nil {
		return fmt.Errorf("truncate staging: %w", err)
	}

	if len(records) > 0 {
		batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO flow_features_staging (`+flowFeatureColumns+`)`)
		if err != nil {
			return fmt.Errorf("prepare batch: %w", err)
		}

		for _, r := range records {
			// Pass nil values directly for Nullable columns
			err = batch.Append(
				r.Ticker, domain.TruncateDate(r.Date),
				r.Open, r.High, r.Low, r.Close, r.AdjClose, r.Volume,
				r.NotionalTraded, r.NotionalLag.Ptr(), r.DNotional.Ptr(), r.DNotionalUniverse.Ptr(),
				r.FlowShare.Ptr(), r.FlowZ.Ptr(), r.VIX.Ptr(),
			)
			if err != nil {
				_ = batch.Abort()
				return fmt.Errorf("append to batch: %w", err)
			}
		}

		if err := batch.Send(); err != nil {
			return fmt.Errorf("send batch: %w", err)
		}
	}

	if err := s.conn.Exec(ctx, `EXCHANGE TABLES flow_features AND flow_features_staging`); err != nil {
		return fmt.Errorf("exchange tables: %w", err)
	}

	// The staging table now holds the previous run; drop it eagerly.
	if err := s.conn.Exec(ctx, `TRUNCATE TABLE IF EXISTS flow_features_staging`); err != nil {
		return fmt.Errorf("truncate staging: %w", err)
	}

	return nil
}

// GetAll retrieves every record, ordered by (ticker, date) ASC.
func (s *FlowFeatureStore) GetAll(ctx context.Context) ([]*domain.FlowFeatureRecord, error) {
	query := `SELECT ` + flowFeatureColumns + ` FROM flow_features ORDER BY ticker ASC, trade_date ASC`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all flow features: %w", err)
	}
	defer rows.Close()

	return scanFlowFeatures(rows)
}

// GetByTicker retrieves records for one ticker, ordered by date ASC.
func (s *FlowFeatureStore) GetByTicker(ctx context.Context, ticker string) ([]*domain.FlowFeatureRecord, error) {
	query := `SELECT ` + flowFeatureColumns + ` FROM flow_features WHERE ticker = ? ORDER BY trade_date ASC`

	rows, err := s.conn.Query(ctx, query, ticker)
	if err != nil {
		return nil, fmt.Errorf("query flow features by ticker: %w", err)
	}
	defer rows.Close()

	return scanFlowFeatures(rows)
}

// scanFlowFeatures scans multiple rows.
func scanFlowFeatures(rows chRows) ([]*domain.FlowFeatureRecord, error) {
	var records []*domain.FlowFeatureRecord

	for rows.Next() {
		var r domain.FlowFeatureRecord
		var date time.Time
		var lag, delta, universe, share, z, vix *float64

		err := rows.Scan(
			&r.Ticker, &date,
			&r.Open, &r.High, &r.Low, &r.Close, &r.AdjClose, &r.Volume,
			&r.NotionalTraded, &lag, &delta, &universe,
			&share, &z, &vix,
		)
		if err != nil {
			return nil, fmt.Errorf("scan flow features row: %w", err)
		}

		r.Date = domain.TruncateDate(date)

		// Convert Nullable(Float64) to null.Float
		r.NotionalLag = null.FloatFromPtr(lag)
		r.DNotional = null.FloatFromPtr(delta)
		r.DNotionalUniverse = null.FloatFromPtr(universe)
		r.FlowShare = null.FloatFromPtr(share)
		r.FlowZ = null.FloatFromPtr(z)
		r.VIX = null.FloatFromPtr(vix)

		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flow features rows: %w", err)
	}

	return records, nil
}
