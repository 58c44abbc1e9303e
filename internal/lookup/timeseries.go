package lookup

import (
	"time"

	"capital-flow-lab/internal/domain"
)

// DateIndex maps calendar dates to volatility index closes.
// Lookups are exact: a date without a record has no value.
type DateIndex struct {
	byDate map[string]float64
}

// NewDateIndex builds an index over vols.
// Fails with domain.OrderingViolation when a date appears more than once.
func NewDateIndex(vols []domain.VolatilityRecord) (*DateIndex, error) {
	idx := &DateIndex{byDate: make(map[string]float64, len(vols))}
	for _, v := range vols {
		day := domain.TruncateDate(v.Date)
		key := domain.DateKey(day)
		if _, dup := idx.byDate[key]; dup {
			return nil, &domain.OrderingViolation{
				Table:  domain.TableVolatility,
				Date:   day,
				Reason: "duplicate date",
			}
		}
		idx.byDate[key] = v.Close
	}
	return idx, nil
}

// Len returns the number of indexed dates.
func (x *DateIndex) Len() int {
	return len(x.byDate)
}

// At returns the close on exactly date. ok is false when the date is missing.
func (x *DateIndex) At(date time.Time) (level float64, ok bool) {
	level, ok = x.byDate[domain.DateKey(date)]
	return level, ok
}
