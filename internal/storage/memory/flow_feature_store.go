package memory

import (
	"context"
	"sort"
	"sync"

	"capital-flow-lab/internal/domain"
	"capital-flow-lab/internal/storage"
)

// FlowFeatureStore is an in-memory implementation of storage.FlowFeatureStore.
type FlowFeatureStore struct {
	mu   sync.RWMutex
	data []*domain.FlowFeatureRecord // ordered by (ticker, date)
}

// NewFlowFeatureStore creates a new in-memory flow feature store.
func NewFlowFeatureStore() *FlowFeatureStore {
	return &FlowFeatureStore{}
}

// ReplaceAll swaps the stored table for records. The old table survives a failed call.
func (s *FlowFeatureStore) ReplaceAll(_ context.Context, records []*domain.FlowFeatureRecord) error {
	next := make([]*domain.FlowFeatureRecord, 0, len(records))
	keys := make(map[string]struct{}, len(records))

	for _, r := range records {
		if r == nil || r.Ticker == "" {
			return storage.ErrInvalidInput
		}
		key := priceKey(r.Ticker, r.Date)
		if _, exists := keys[key]; exists {
			return storage.ErrDuplicateKey
		}
		keys[key] = struct{}{}

		recordCopy := *r
		next = append(next, &recordCopy)
	}

	sort.Slice(next, func(i, j int) bool {
		if next[i].Ticker != next[j].Ticker {
			return next[i].Ticker < next[j].Ticker
		}
		return next[i].Date.Before(next[j].Date)
	})

	s.mu.Lock()
	s.data = next
	s.mu.Unlock()

	return nil
}

// GetAll retrieves every record, ordered by (ticker, date) ASC.
func (s *FlowFeatureStore) GetAll(_ context.Context) ([]*domain.FlowFeatureRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.FlowFeatureRecord, 0, len(s.data))
	for _, r := range s.data {
		recordCopy := *r
		result = append(result, &recordCopy)
	}
	return result, nil
}

// GetByTicker retrieves records for one ticker, ordered by date ASC.
func (s *FlowFeatureStore) GetByTicker(_ context.Context, ticker string) ([]*domain.FlowFeatureRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FlowFeatureRecord
	for _, r := range s.data {
		if r.Ticker == ticker {
			recordCopy := *r
			result = append(result, &recordCopy)
		}
	}
	return result, nil
}

var _ storage.FlowFeatureStore = (*FlowFeatureStore)(nil)
