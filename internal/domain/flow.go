package domain

import (
	"time"

	"github.com/guregu/null/v6"
)

// FlowFeatureRecord is one row of the capital-flow feature table.
// Corresponds to flow_features table in ClickHouse.
//
// Nullable features are undefined (Valid == false) instead of carrying a sentinel:
//   - NotionalLag, DNotional: undefined on the first row of a ticker
//   - DNotionalUniverse: always defined; 0 when no ticker has a defined DNotional on the date
//   - FlowShare: undefined when either operand is undefined or the denominator is zero
//   - FlowZ: undefined until a full rolling window is available, or when the window has zero variance
//   - VIX: undefined when the volatility index has no value for the date
type FlowFeatureRecord struct {
	Date     time.Time
	Ticker   string
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   float64

	NotionalTraded    float64    // close * volume
	NotionalLag       null.Float // previous row's NotionalTraded for the same ticker
	DNotional         null.Float // NotionalTraded - NotionalLag
	DNotionalUniverse null.Float // sum of defined DNotional across tickers on Date
	FlowShare         null.Float // DNotional / DNotionalUniverse
	FlowZ             null.Float // rolling z-score of DNotional
	VIX               null.Float // volatility index close on Date
}

// Price returns the PriceRecord this feature row was derived from.
func (r *FlowFeatureRecord) Price() PriceRecord {
	return PriceRecord{
		Date:     r.Date,
		Ticker:   r.Ticker,
		Open:     r.Open,
		High:     r.High,
		Low:      r.Low,
		Close:    r.Close,
		AdjClose: r.AdjClose,
		Volume:   r.Volume,
	}
}
