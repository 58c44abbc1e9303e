package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"capital-flow-lab/internal/domain"
	"capital-flow-lab/internal/normalization"
	"capital-flow-lab/internal/observability"
	"capital-flow-lab/internal/storage"
	"capital-flow-lab/internal/tabular"
)

// Source loads the raw inputs of a run.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string
	// Load returns parsed but not yet normalized price and volatility records.
	Load(ctx context.Context) ([]domain.PriceRecord, []domain.VolatilityRecord, error)
}

// FileSource reads the raw tables from parquet or CSV files.
// A missing volatility file is read as an empty table.
type FileSource struct {
	PricesPath string
	VixPath    string
	VixTicker  string // when set, volatility rows tagged with another ticker are skipped
}

// Name returns "file".
func (s *FileSource) Name() string { return "file" }

// Load reads and parses both files.
func (s *FileSource) Load(_ context.Context) ([]domain.PriceRecord, []domain.VolatilityRecord, error) {
	rawPrices, err := tabular.ReadRaw(s.PricesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read prices: %w", err)
	}
	prices, err := normalization.ParsePriceTable(rawPrices)
	if err != nil {
		return nil, nil, err
	}

	rawVix, _, err := tabular.ReadRawOptional(s.VixPath, normalization.VolatilityColumns)
	if err != nil {
		return nil, nil, fmt.Errorf("read volatility: %w", err)
	}
	vols, err := normalization.ParseVolatilityTable(keepTicker(rawVix, s.VixTicker))
	if err != nil {
		return nil, nil, err
	}
	return prices, vols, nil
}

// keepTicker drops rows whose ticker cell names a different instrument.
// Tables without a ticker column, and rows with an empty ticker, are kept.
func keepTicker(t normalization.RawTable, ticker string) normalization.RawTable {
	if ticker == "" {
		return t
	}
	col := -1
	for i, h := range t.Header {
		if normalization.CanonicalColumn(h) == normalization.ColTicker {
			col = i
			break
		}
	}
	if col < 0 {
		return t
	}

	out := normalization.RawTable{Header: t.Header, Rows: make([][]string, 0, len(t.Rows))}
	for _, row := range t.Rows {
		if col < len(row) {
			cell := strings.TrimSpace(row[col])
			if cell != "" && cell != ticker {
				continue
			}
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// StoreSource reads the inputs from price and volatility stores.
// Tickers and the date range narrow the query; zero values mean unbounded.
type StoreSource struct {
	Prices     storage.PriceStore
	Volatility storage.VolatilityStore
	Tickers    []string
	Start, End time.Time
	Label      string                 // source name, e.g. postgres or memory
	Metrics    *observability.Metrics // optional query timings
}

// Name returns the configured label.
func (s *StoreSource) Name() string {
	if s.Label == "" {
		return "store"
	}
	return s.Label
}

// Load queries both stores.
func (s *StoreSource) Load(ctx context.Context) ([]domain.PriceRecord, []domain.VolatilityRecord, error) {
	var (
		prices []domain.PriceRecord
		vols   []domain.VolatilityRecord
		err    error
	)

	bounded := !s.Start.IsZero() || !s.End.IsZero()
	start, end := s.bounds()

	queryStart := time.Now()
	switch {
	case len(s.Tickers) > 0:
		prices, err = s.Prices.GetByTickers(ctx, s.Tickers)
	case bounded:
		prices, err = s.Prices.GetByDateRange(ctx, start, end)
	default:
		prices, err = s.Prices.GetAll(ctx)
	}
	s.record("load_prices", queryStart, err)
	if err != nil {
		return nil, nil, fmt.Errorf("load prices: %w", err)
	}

	queryStart = time.Now()
	if bounded {
		vols, err = s.Volatility.GetByDateRange(ctx, start, end)
	} else {
		vols, err = s.Volatility.GetAll(ctx)
	}
	s.record("load_volatility", queryStart, err)
	if err != nil {
		return nil, nil, fmt.Errorf("load volatility: %w", err)
	}
	return prices, vols, nil
}

func (s *StoreSource) record(op string, start time.Time, err error) {
	if s.Metrics != nil {
		s.Metrics.RecordDBQuery(s.Name(), op, start, err)
	}
}

func (s *StoreSource) bounds() (time.Time, time.Time) {
	start, end := s.Start, s.End
	if start.IsZero() {
		start = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if end.IsZero() {
		end = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	return start, end
}

// Filter narrows inputs to a universe and an inclusive date range.
// An empty universe keeps every ticker; zero bounds are unbounded.
type Filter struct {
	Tickers    []string
	Start, End time.Time
}

func (f Filter) inRange(d time.Time) bool {
	d = domain.TruncateDate(d)
	if !f.Start.IsZero() && d.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && d.After(f.End) {
		return false
	}
	return true
}

// Prices returns the records that pass the filter, in input order.
func (f Filter) Prices(prices []domain.PriceRecord) []domain.PriceRecord {
	var keep map[string]bool
	if len(f.Tickers) > 0 {
		keep = make(map[string]bool, len(f.Tickers))
		for _, t := range f.Tickers {
			keep[t] = true
		}
	}

	out := make([]domain.PriceRecord, 0, len(prices))
	for _, p := range prices {
		if keep != nil && !keep[p.Ticker] {
			continue
		}
		if !f.inRange(p.Date) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Volatility returns the records within the date range, in input order.
func (f Filter) Volatility(vols []domain.VolatilityRecord) []domain.VolatilityRecord {
	out := make([]domain.VolatilityRecord, 0, len(vols))
	for _, v := range vols {
		if f.inRange(v.Date) {
			out = append(out, v)
		}
	}
	return out
}
