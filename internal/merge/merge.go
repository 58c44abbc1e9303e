// Package merge attaches date-keyed series to the flow feature table.
package merge

import (
	"github.com/guregu/null/v6"

	"capital-flow-lab/internal/domain"
	"capital-flow-lab/internal/frame"
	"capital-flow-lab/internal/lookup"
)

// AttachVolatility left-joins the volatility index close onto f by date.
// Rows without a same-date value get an undefined VIX. The row count never changes.
// A duplicate volatility date fails before any row is written.
func AttachVolatility(f *frame.Frame, vols []domain.VolatilityRecord) error {
	idx, err := lookup.NewDateIndex(vols)
	if err != nil {
		return err
	}
	for i := 0; i < f.Len(); i++ {
		if v, ok := idx.At(f.Date[i]); ok {
			f.VIX[i] = null.FloatFrom(v)
		} else {
			f.VIX[i] = null.Float{}
		}
	}
	return nil
}

// Coverage returns the number of rows with a defined VIX.
func Coverage(f *frame.Frame) int {
	n := 0
	for _, v := range f.VIX {
		if v.Valid {
			n++
		}
	}
	return n
}
