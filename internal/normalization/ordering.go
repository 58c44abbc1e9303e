package normalization

import (
	"sort"

	"capital-flow-lab/internal/domain"
)

// SortPrices orders price records by (ticker ASC, date ASC).
// The sort is stable so duplicate keys keep input order for error reporting.
func SortPrices(prices []domain.PriceRecord) {
	sort.SliceStable(prices, func(i, j int) bool {
		return comparePrices(&prices[i], &prices[j]) < 0
	})
}

// SortVolatility orders volatility records by date ASC.
func SortVolatility(vols []domain.VolatilityRecord) {
	sort.SliceStable(vols, func(i, j int) bool {
		return vols[i].Date.Before(vols[j].Date)
	})
}

// comparePrices returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
func comparePrices(a, b *domain.PriceRecord) int {
	if a.Ticker != b.Ticker {
		if a.Ticker < b.Ticker {
			return -1
		}
		return 1
	}
	if !a.Date.Equal(b.Date) {
		if a.Date.Before(b.Date) {
			return -1
		}
		return 1
	}
	return 0
}

// CheckPriceOrdering verifies that prices sorted by (ticker, date) have strictly
// increasing dates within each ticker.
func CheckPriceOrdering(prices []domain.PriceRecord) error {
	for i := 1; i < len(prices); i++ {
		prev, cur := &prices[i-1], &prices[i]
		if prev.Ticker != cur.Ticker {
			continue
		}
		if !cur.Date.After(prev.Date) {
			reason := "dates not strictly increasing"
			if cur.Date.Equal(prev.Date) {
				reason = "duplicate (ticker, date) key"
			}
			return &domain.OrderingViolation{
				Table:    domain.TablePrices,
				Ticker:   cur.Ticker,
				Date:     cur.Date,
				Previous: prev.Date,
				Reason:   reason,
			}
		}
	}
	return nil
}
