package lookup

import (
	"errors"
	"testing"
	"time"

	"capital-flow-lab/internal/domain"
)

func d(day int) time.Time {
	return time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC)
}

func TestNewDateIndex_Duplicate(t *testing.T) {
	_, err := NewDateIndex([]domain.VolatilityRecord{
		{Date: d(1), Close: 13},
		{Date: d(1).Add(15 * time.Hour), Close: 14},
	})
	if !errors.Is(err, domain.ErrOrderingViolation) {
		t.Fatalf("expected ordering violation, got %v", err)
	}
}

func TestDateIndex_At(t *testing.T) {
	idx, err := NewDateIndex([]domain.VolatilityRecord{
		{Date: d(4), Close: 15},
		{Date: d(1), Close: 13},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.Len() != 2 {
		t.Errorf("expected 2 dates, got %d", idx.Len())
	}

	v, ok := idx.At(d(1))
	if !ok || v != 13 {
		t.Errorf("expected 13, got %f (ok=%v)", v, ok)
	}
	// no fill from an earlier date
	if _, ok := idx.At(d(2)); ok {
		t.Error("expected missing date")
	}
}
