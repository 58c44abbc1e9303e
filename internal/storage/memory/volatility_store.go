package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"capital-flow-lab/internal/domain"
	"capital-flow-lab/internal/storage"
)

// VolatilityStore is an in-memory implementation of storage.VolatilityStore.
type VolatilityStore struct {
	mu   sync.RWMutex
	data map[string]domain.VolatilityRecord // keyed by date
}

// NewVolatilityStore creates a new in-memory volatility store.
func NewVolatilityStore() *VolatilityStore {
	return &VolatilityStore{
		data: make(map[string]domain.VolatilityRecord),
	}
}

// InsertBulk adds multiple records. Fails entire batch on duplicate date.
func (s *VolatilityStore) InsertBulk(_ context.Context, vols []domain.VolatilityRecord) error {
	if len(vols) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(vols))
	for _, v := range vols {
		if v.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		key := domain.DateKey(v.Date)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, v := range vols {
		v.Date = domain.TruncateDate(v.Date)
		s.data[domain.DateKey(v.Date)] = v
	}

	return nil
}

// GetAll retrieves every record, ordered by date ASC.
func (s *VolatilityStore) GetAll(ctx context.Context) ([]domain.VolatilityRecord, error) {
	return s.GetByDateRange(ctx, time.Time{}, time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC))
}

// GetByDateRange retrieves records within [start, end] (inclusive), ordered by date ASC.
func (s *VolatilityStore) GetByDateRange(_ context.Context, start, end time.Time) ([]domain.VolatilityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, end = domain.TruncateDate(start), domain.TruncateDate(end)

	var result []domain.VolatilityRecord
	for _, v := range s.data {
		if !v.Date.Before(start) && !v.Date.After(end) {
			result = append(result, v)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result, nil
}

var _ storage.VolatilityStore = (*VolatilityStore)(nil)
