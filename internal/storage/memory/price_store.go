package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"capital-flow-lab/internal/domain"
	"capital-flow-lab/internal/storage"
)

// PriceStore is an in-memory implementation of storage.PriceStore.
type PriceStore struct {
	mu   sync.RWMutex
	data map[string]domain.PriceRecord // keyed by (ticker, date)
}

// NewPriceStore creates a new in-memory price store.
func NewPriceStore() *PriceStore {
	return &PriceStore{
		data: make(map[string]domain.PriceRecord),
	}
}

// priceKey generates a unique key for a price record.
func priceKey(ticker string, date time.Time) string {
	return ticker + "|" + domain.DateKey(date)
}

// InsertBulk adds multiple records. Fails entire batch on duplicate.
func (s *PriceStore) InsertBulk(_ context.Context, prices []domain.PriceRecord) error {
	if len(prices) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(prices))

	// First pass: check for duplicates (existing + intra-batch)
	for _, p := range prices {
		if p.Ticker == "" || p.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		key := priceKey(p.Ticker, p.Date)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, p := range prices {
		p.Date = domain.TruncateDate(p.Date)
		s.data[priceKey(p.Ticker, p.Date)] = p
	}

	return nil
}

// GetAll retrieves every record, ordered by (ticker, date) ASC.
func (s *PriceStore) GetAll(_ context.Context) ([]domain.PriceRecord, error) {
	return s.filter(func(domain.PriceRecord) bool { return true }), nil
}

// GetByTickers retrieves records for the given tickers, ordered by (ticker, date) ASC.
func (s *PriceStore) GetByTickers(_ context.Context, tickers []string) ([]domain.PriceRecord, error) {
	want := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		want[t] = struct{}{}
	}
	return s.filter(func(p domain.PriceRecord) bool {
		_, ok := want[p.Ticker]
		return ok
	}), nil
}

// GetByDateRange retrieves records within [start, end] (inclusive).
func (s *PriceStore) GetByDateRange(_ context.Context, start, end time.Time) ([]domain.PriceRecord, error) {
	start, end = domain.TruncateDate(start), domain.TruncateDate(end)
	return s.filter(func(p domain.PriceRecord) bool {
		return !p.Date.Before(start) && !p.Date.After(end)
	}), nil
}

func (s *PriceStore) filter(keep func(domain.PriceRecord) bool) []domain.PriceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.PriceRecord
	for _, p := range s.data {
		if keep(p) {
			result = append(result, p)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Ticker != result[j].Ticker {
			return result[i].Ticker < result[j].Ticker
		}
		return result[i].Date.Before(result[j].Date)
	})

	return result
}

var _ storage.PriceStore = (*PriceStore)(nil)
