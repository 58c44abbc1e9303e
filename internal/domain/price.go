package domain

import "time"

// DateLayout is the canonical text form of a trading date.
const DateLayout = "2006-01-02"

// PriceRecord is one daily OHLCV bar for one instrument.
// Corresponds to daily_prices table in PostgreSQL.
type PriceRecord struct {
	Date     time.Time // calendar date, UTC midnight
	Ticker   string    // instrument identifier
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64 // dividend/split-adjusted close
	Volume   float64
}

// VolatilityRecord is one daily level of the volatility index.
// Corresponds to volatility_index table in PostgreSQL.
type VolatilityRecord struct {
	Date  time.Time // calendar date, UTC midnight
	Close float64   // index level
}

// TruncateDate drops the time-of-day and location, keeping the calendar date as seen in t's zone.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateKey returns the canonical text key of a calendar date.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}
