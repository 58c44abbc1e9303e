package normalization

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"capital-flow-lab/internal/domain"
)

// dateLayouts are tried in order when coercing date-like text.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05.999999999",
	"20060102",
	"01/02/2006",
}

// ParseDate coerces date-like text to a calendar date (UTC midnight).
// A timestamp keeps the calendar date of its own offset, it is not shifted to UTC first.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.TruncateDate(t), true
		}
	}
	return time.Time{}, false
}

// ParseNumber parses a decimal text cell to float64.
// Empty cells, NaN and infinities are rejected: an input value is never silently null.
func ParseNumber(s string) (float64, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	v := d.InexactFloat64()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ParsePriceTable converts a raw price table to typed records in row order.
// Fails on the first missing column, unparseable date or number, or empty ticker.
func ParsePriceTable(t RawTable) ([]domain.PriceRecord, error) {
	idx, err := columnIndex(domain.TablePrices, t.Header, PriceColumns)
	if err != nil {
		return nil, err
	}

	out := make([]domain.PriceRecord, 0, len(t.Rows))
	for r, row := range t.Rows {
		if len(row) != len(t.Header) {
			return nil, &domain.InputShapeError{Table: domain.TablePrices, Column: "*", Row: r, Reason: "row width does not match header"}
		}

		ticker := strings.TrimSpace(row[idx[ColTicker]])
		if ticker == "" {
			return nil, &domain.InputShapeError{Table: domain.TablePrices, Column: ColTicker, Row: r, Reason: "empty ticker"}
		}

		rawDate := row[idx[ColDate]]
		date, ok := ParseDate(rawDate)
		if !ok {
			return nil, &domain.InputShapeError{Table: domain.TablePrices, Column: ColDate, Row: r, Ticker: ticker, Value: rawDate, Reason: "unparseable date"}
		}

		rec := domain.PriceRecord{Date: date, Ticker: ticker}
		fields := []struct {
			col string
			dst *float64
		}{
			{ColOpen, &rec.Open},
			{ColHigh, &rec.High},
			{ColLow, &rec.Low},
			{ColClose, &rec.Close},
			{ColAdjClose, &rec.AdjClose},
			{ColVolume, &rec.Volume},
		}
		for _, f := range fields {
			raw := row[idx[f.col]]
			v, ok := ParseNumber(raw)
			if !ok {
				return nil, &domain.InputShapeError{Table: domain.TablePrices, Column: f.col, Row: r, Ticker: ticker, Value: raw, Reason: "not a decimal number"}
			}
			*f.dst = v
		}
		out = append(out, rec)
	}
	return out, nil
}

// ParseVolatilityTable converts a raw volatility table to typed records in row order.
// Only date and close are consumed; any other column is ignored.
func ParseVolatilityTable(t RawTable) ([]domain.VolatilityRecord, error) {
	idx, err := columnIndex(domain.TableVolatility, t.Header, VolatilityColumns)
	if err != nil {
		return nil, err
	}

	out := make([]domain.VolatilityRecord, 0, len(t.Rows))
	for r, row := range t.Rows {
		if len(row) != len(t.Header) {
			return nil, &domain.InputShapeError{Table: domain.TableVolatility, Column: "*", Row: r, Reason: "row width does not match header"}
		}

		rawDate := row[idx[ColDate]]
		date, ok := ParseDate(rawDate)
		if !ok {
			return nil, &domain.InputShapeError{Table: domain.TableVolatility, Column: ColDate, Row: r, Value: rawDate, Reason: "unparseable date"}
		}

		raw := row[idx[ColClose]]
		v, ok := ParseNumber(raw)
		if !ok {
			return nil, &domain.InputShapeError{Table: domain.TableVolatility, Column: ColClose, Row: r, Value: raw, Reason: "not a decimal number"}
		}
		out = append(out, domain.VolatilityRecord{Date: date, Close: v})
	}
	return out, nil
}
