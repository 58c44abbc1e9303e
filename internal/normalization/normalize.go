// Package normalization turns raw price and volatility tables into typed, time-ordered inputs
// for the flow feature engine.
package normalization

import (
	"capital-flow-lab/internal/domain"
)

// Normalized holds the two canonical input tables.
type Normalized struct {
	Prices     []domain.PriceRecord      // sorted by (ticker, date)
	Volatility []domain.VolatilityRecord // sorted by date
}

// Normalize coerces dates to calendar days and sorts both tables.
// Inputs are copied, never reordered in place. No record is dropped, added or merged.
//
// Duplicate or non-increasing (ticker, date) keys in the price table fail with
// domain.OrderingViolation. Volatility duplicates are left for the merger to reject.
func Normalize(prices []domain.PriceRecord, vols []domain.VolatilityRecord) (*Normalized, error) {
	outPrices := make([]domain.PriceRecord, len(prices))
	for i, p := range prices {
		if p.Ticker == "" {
			return nil, &domain.InputShapeError{Table: domain.TablePrices, Column: ColTicker, Row: i, Reason: "empty ticker"}
		}
		if p.Date.IsZero() {
			return nil, &domain.InputShapeError{Table: domain.TablePrices, Column: ColDate, Row: i, Ticker: p.Ticker, Reason: "missing date"}
		}
		p.Date = domain.TruncateDate(p.Date)
		outPrices[i] = p
	}

	outVols := make([]domain.VolatilityRecord, len(vols))
	for i, v := range vols {
		if v.Date.IsZero() {
			return nil, &domain.InputShapeError{Table: domain.TableVolatility, Column: ColDate, Row: i, Reason: "missing date"}
		}
		v.Date = domain.TruncateDate(v.Date)
		outVols[i] = v
	}

	SortPrices(outPrices)
	SortVolatility(outVols)

	if err := CheckPriceOrdering(outPrices); err != nil {
		return nil, err
	}

	return &Normalized{Prices: outPrices, Volatility: outVols}, nil
}

// NormalizeRaw parses both raw tables and normalizes them.
func NormalizeRaw(prices, vols RawTable) (*Normalized, error) {
	p, err := ParsePriceTable(prices)
	if err != nil {
		return nil, err
	}
	v, err := ParseVolatilityTable(vols)
	if err != nil {
		return nil, err
	}
	return Normalize(p, v)
}
