package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capital-flow-lab/internal/domain"
	"capital-flow-lab/internal/features"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func bar(ticker string, d int, close, volume float64) domain.PriceRecord {
	return domain.PriceRecord{
		Date:     day(d),
		Ticker:   ticker,
		Open:     close,
		High:     close,
		Low:      close,
		Close:    close,
		AdjClose: close,
		Volume:   volume,
	}
}

func mustEngine(t *testing.T, window int) *features.Engine {
	t.Helper()
	e, err := features.NewEngine(features.Options{Window: window})
	require.NoError(t, err)
	return e
}

// randomWalk gives each ticker a deterministic but non-constant volume path.
func randomWalk(tickers []string, days int) []domain.PriceRecord {
	var out []domain.PriceRecord
	for ti, ticker := range tickers {
		for d := 0; d < days; d++ {
			volume := 1000 + float64((d*37+ti*11)%97)*13
			close := 50 + float64((d*7+ti*3)%23)
			out = append(out, bar(ticker, d, close, volume))
		}
	}
	return out
}

func TestBuildFlowFeatures_FlatSeries(t *testing.T) {
	var prices []domain.PriceRecord
	for d := 0; d < 61; d++ {
		prices = append(prices, bar("A", d, 10, 100))
	}

	build, err := BuildFlowFeatures(context.Background(), mustEngine(t, 60), prices, nil)
	require.NoError(t, err)

	records := build.Frame.Records()
	require.Len(t, records, 61)
	for i, r := range records {
		assert.Equal(t, 1000.0, r.NotionalTraded)
		if i > 0 {
			assert.True(t, r.DNotional.Valid)
			assert.Equal(t, 0.0, r.DNotional.Float64)
		}
		assert.False(t, r.FlowZ.Valid, "row %d", i)
		assert.False(t, r.VIX.Valid)
	}
}

func TestBuildFlowFeatures_UniverseShare(t *testing.T) {
	prices := []domain.PriceRecord{
		bar("B", 1, 1, 60),  // notional 60, delta -40
		bar("A", 0, 1, 100), // notional 100
		bar("A", 1, 1, 200), // notional 200, delta 100
		bar("B", 0, 1, 100), // notional 100
	}

	build, err := BuildFlowFeatures(context.Background(), mustEngine(t, 60), prices, nil)
	require.NoError(t, err)

	// Normalized order is (ticker, date).
	records := build.Frame.Records()
	require.Len(t, records, 4)
	a1, b1 := records[1], records[3]
	assert.Equal(t, "A", a1.Ticker)
	assert.Equal(t, "B", b1.Ticker)
	assert.InDelta(t, 60, a1.DNotionalUniverse.Float64, 1e-9)
	assert.InDelta(t, 60, b1.DNotionalUniverse.Float64, 1e-9)
	assert.InDelta(t, 100.0/60, a1.FlowShare.Float64, 1e-9)
	assert.InDelta(t, -40.0/60, b1.FlowShare.Float64, 1e-9)

	// First rows of each ticker
	for _, r := range []*domain.FlowFeatureRecord{records[0], records[2]} {
		assert.False(t, r.NotionalLag.Valid)
		assert.False(t, r.DNotional.Valid)
		assert.False(t, r.FlowShare.Valid)
		assert.False(t, r.FlowZ.Valid)
		require.True(t, r.DNotionalUniverse.Valid)
		assert.Equal(t, 0.0, r.DNotionalUniverse.Float64)
	}
}

func TestBuildFlowFeatures_MissingVixDate(t *testing.T) {
	prices := []domain.PriceRecord{bar("A", 0, 1, 1), bar("A", 1, 1, 2), bar("B", 1, 1, 3)}
	vols := []domain.VolatilityRecord{{Date: day(0), Close: 12.5}}

	build, err := BuildFlowFeatures(context.Background(), mustEngine(t, 60), prices, vols)
	require.NoError(t, err)

	records := build.Frame.Records()
	require.Len(t, records, 3)
	assert.Equal(t, 12.5, records[0].VIX.Float64)
	assert.False(t, records[1].VIX.Valid)
	assert.False(t, records[2].VIX.Valid)
}

func TestBuildFlowFeatures_Properties(t *testing.T) {
	tickers := []string{"SPY", "QQQ", "IWM", "BTC-USD"}
	prices := randomWalk(tickers, 90)
	// Drop one ticker-day so dates are not perfectly aligned
	prices = append(prices[:50], prices[51:]...)

	build, err := BuildFlowFeatures(context.Background(), mustEngine(t, 60), prices, nil)
	require.NoError(t, err)
	records := build.Frame.Records()

	// Row count invariant
	require.Len(t, records, len(prices))

	sums := make(map[time.Time]float64)
	defined := make(map[time.Time]bool)
	seen := make(map[string]int)
	for _, r := range records {
		assert.Equal(t, r.Close*r.Volume, r.NotionalTraded)
		if r.DNotional.Valid {
			sums[r.Date] += r.DNotional.Float64
			defined[r.Date] = true
		}

		obs := seen[r.Ticker]
		seen[r.Ticker]++
		if obs == 0 {
			assert.False(t, r.NotionalLag.Valid)
			assert.False(t, r.DNotional.Valid)
			assert.False(t, r.FlowShare.Valid)
			assert.False(t, r.FlowZ.Valid)
		}
		// flow_z needs 60 defined deltas; the first delta is on the second row.
		if obs < 60 {
			assert.False(t, r.FlowZ.Valid, "%s obs %d", r.Ticker, obs)
		}
		if r.FlowZ.Valid {
			assert.False(t, math.IsNaN(r.FlowZ.Float64) || math.IsInf(r.FlowZ.Float64, 0))
		}
	}

	for _, r := range records {
		// An empty sum is 0, so every date carries a defined aggregate.
		require.True(t, r.DNotionalUniverse.Valid)
		assert.InDelta(t, sums[r.Date], r.DNotionalUniverse.Float64, 1e-6)
		if !defined[r.Date] {
			assert.Equal(t, 0.0, r.DNotionalUniverse.Float64)
		}

		if r.DNotionalUniverse.Float64 == 0 || !r.DNotional.Valid {
			assert.False(t, r.FlowShare.Valid)
		} else {
			assert.InDelta(t, r.DNotional.Float64/r.DNotionalUniverse.Float64, r.FlowShare.Float64, 1e-9)
		}
	}

	// 89 deltas per full ticker, so the 60th delta (row 61) onward is defined.
	defCount := 0
	for _, r := range records {
		if r.Ticker == "QQQ" && r.FlowZ.Valid {
			defCount++
		}
	}
	assert.Equal(t, 90-60, defCount)
}

func TestBuildFlowFeatures_Errors(t *testing.T) {
	ctx := context.Background()
	e := mustEngine(t, 60)

	_, err := BuildFlowFeatures(ctx, e, []domain.PriceRecord{bar("A", 0, 1, 1), bar("A", 0, 1, 2)}, nil)
	assert.True(t, errors.Is(err, domain.ErrOrderingViolation))

	_, err = BuildFlowFeatures(ctx, e, []domain.PriceRecord{bar("A", 0, 1, -1)}, nil)
	assert.True(t, errors.Is(err, domain.ErrInputShape))

	vols := []domain.VolatilityRecord{{Date: day(0), Close: 1}, {Date: day(0), Close: 2}}
	_, err = BuildFlowFeatures(ctx, e, []domain.PriceRecord{bar("A", 0, 1, 1)}, vols)
	assert.True(t, errors.Is(err, domain.ErrOrderingViolation))
}

func TestBuildFlowFeatures_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := BuildFlowFeatures(ctx, mustEngine(t, 60), []domain.PriceRecord{bar("A", 0, 1, 1)}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCountUndefined(t *testing.T) {
	build, err := BuildFlowFeatures(context.Background(), mustEngine(t, 60),
		[]domain.PriceRecord{bar("A", 0, 1, 1), bar("A", 1, 1, 2)},
		[]domain.VolatilityRecord{{Date: day(1), Close: 20}})
	require.NoError(t, err)

	counts := CountUndefined(build.Frame.Records())
	assert.Equal(t, map[string]int{
		"notional_lag":        1,
		"d_notional":          1,
		"d_notional_universe": 0,
		"flow_share":          1,
		"flow_z":              2,
		"vix":                 1,
	}, counts)
}
