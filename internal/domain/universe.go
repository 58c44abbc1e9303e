package domain

import "sort"

// AssetType describes how an instrument trades.
type AssetType string

const (
	AssetTypeETFEquity AssetType = "etf_equity"
	AssetTypeSpotFX    AssetType = "spot_fx"
	AssetTypeCrypto    AssetType = "crypto"
)

// Instrument is one member of the instrument universe.
type Instrument struct {
	Ticker      string
	Group       string // e.g. indices, metals, crypto
	Type        AssetType
	Description string
}

// Universe is the set of instruments a run covers.
// An empty universe means "every ticker present in the input".
type Universe struct {
	Instruments []Instrument
}

// Tickers returns the universe tickers in sorted order.
func (u Universe) Tickers() []string {
	tickers := make([]string, 0, len(u.Instruments))
	for _, in := range u.Instruments {
		tickers = append(tickers, in.Ticker)
	}
	sort.Strings(tickers)
	return tickers
}

// GroupOf returns the group of a ticker, or "" if the ticker is not in the universe.
func (u Universe) GroupOf(ticker string) string {
	for _, in := range u.Instruments {
		if in.Ticker == ticker {
			return in.Group
		}
	}
	return ""
}

// IsEmpty reports whether the universe lists no instruments.
func (u Universe) IsEmpty() bool {
	return len(u.Instruments) == 0
}
