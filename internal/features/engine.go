// Package features derives the capital-flow feature columns from normalized prices.
package features

import (
	"context"
	"fmt"
	"math"

	"github.com/guregu/null/v6"
	"golang.org/x/sync/errgroup"

	"capital-flow-lab/internal/domain"
	"capital-flow-lab/internal/frame"
)

// Options configures the engine.
type Options struct {
	// Window is the rolling z-score length in rows. Zero means DefaultWindow.
	Window int
	// Parallel runs per-ticker passes concurrently.
	Parallel bool
	// MaxWorkers bounds parallel passes. Zero means one goroutine per ticker.
	MaxWorkers int
}

// Engine computes flow features over a price table.
type Engine struct {
	opts Options
}

// NewEngine creates an engine. Returns an error when Window is below 2.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Window == 0 {
		opts.Window = DefaultWindow
	}
	if opts.Window < 2 {
		return nil, fmt.Errorf("rolling window must be >= 2, got %d", opts.Window)
	}
	if opts.MaxWorkers < 0 {
		return nil, fmt.Errorf("max workers must be >= 0, got %d", opts.MaxWorkers)
	}
	return &Engine{opts: opts}, nil
}

// Window returns the effective rolling window.
func (e *Engine) Window() int {
	return e.opts.Window
}

// Compute derives every flow feature for prices.
// Output has exactly one row per input record, in input order; VIX is left undefined.
//
// Steps run in dependency order:
//  1. notional_traded = close * volume
//  2. notional_lag (per ticker, previous row)
//  3. d_notional = notional_traded - notional_lag
//  4. d_notional_universe (per date, sum of defined d_notional)
//  5. flow_share = d_notional / d_notional_universe
//  6. flow_z (per ticker, rolling z-score of d_notional)
//
// The per-date step starts only after every ticker pass of steps 1-3 has finished.
func (e *Engine) Compute(ctx context.Context, prices []domain.PriceRecord) (*frame.Frame, error) {
	if err := validatePrices(prices); err != nil {
		return nil, err
	}

	f := frame.FromPrices(prices)
	tickers := f.ByTicker()

	for _, p := range tickers {
		if err := checkIncreasing(f, p); err != nil {
			return nil, err
		}
	}

	// Steps 1-3.
	if err := e.forEachTicker(ctx, tickers, func(p frame.Partition) {
		computeNotionalDelta(f, p.Rows)
	}); err != nil {
		return nil, err
	}

	// Steps 4-5.
	for _, p := range f.ByDate() {
		computeUniverse(f, p.Rows)
	}

	// Step 6.
	window := e.opts.Window
	if err := e.forEachTicker(ctx, tickers, func(p frame.Partition) {
		computeFlowZ(f, p.Rows, window)
	}); err != nil {
		return nil, err
	}

	return f, nil
}

// forEachTicker runs pass over every partition, concurrently in parallel mode.
// Each pass writes only the rows of its own partition.
func (e *Engine) forEachTicker(ctx context.Context, parts []frame.Partition, pass func(frame.Partition)) error {
	if !e.opts.Parallel {
		for _, p := range parts {
			pass(p)
		}
		return nil
	}

	g, _ := errgroup.WithContext(ctx)
	if e.opts.MaxWorkers > 0 {
		g.SetLimit(e.opts.MaxWorkers)
	}
	for _, p := range parts {
		g.Go(func() error {
			pass(p)
			return nil
		})
	}
	return g.Wait()
}

// computeNotionalDelta fills NotionalTraded, NotionalLag and DNotional for one ticker.
// rows must be in ascending date order.
func computeNotionalDelta(f *frame.Frame, rows []int) {
	var prev null.Float
	for _, i := range rows {
		f.NotionalTraded[i] = f.Close[i] * f.Volume[i]
		cur := null.FloatFrom(f.NotionalTraded[i])

		f.NotionalLag[i] = prev
		f.DNotional[i] = Sub(cur, prev)
		prev = cur
	}
}

// computeUniverse reduces defined DNotional over one date and broadcasts the sum and the
// per-row share back to every row of the date. A date with no defined delta sums to 0.
func computeUniverse(f *frame.Frame, rows []int) {
	values := make([]null.Float, len(rows))
	for k, i := range rows {
		values[k] = f.DNotional[i]
	}

	sum, _ := SumDefined(values)
	universe := null.FloatFrom(sum)

	for _, i := range rows {
		f.DNotionalUniverse[i] = universe
		f.FlowShare[i] = SafeDiv(f.DNotional[i], universe)
	}
}

// computeFlowZ fills FlowZ for one ticker.
func computeFlowZ(f *frame.Frame, rows []int, window int) {
	series := make([]null.Float, len(rows))
	for k, i := range rows {
		series[k] = f.DNotional[i]
	}
	z := RollingZScore(series, window)
	for k, i := range rows {
		f.FlowZ[i] = z[k]
	}
}

// validatePrices rejects values no feature can be derived from.
func validatePrices(prices []domain.PriceRecord) error {
	for i := range prices {
		p := &prices[i]
		if p.Ticker == "" {
			return &domain.InputShapeError{Table: domain.TablePrices, Column: "ticker", Row: i, Reason: "empty ticker"}
		}
		if reason := checkNonNegative(p.Close); reason != "" {
			return &domain.InputShapeError{Table: domain.TablePrices, Column: "close", Row: i, Ticker: p.Ticker, Value: fmt.Sprint(p.Close), Reason: reason}
		}
		if reason := checkNonNegative(p.Volume); reason != "" {
			return &domain.InputShapeError{Table: domain.TablePrices, Column: "volume", Row: i, Ticker: p.Ticker, Value: fmt.Sprint(p.Volume), Reason: reason}
		}
	}
	return nil
}

func checkNonNegative(v float64) string {
	switch {
	case math.IsNaN(v):
		return "value is NaN"
	case math.IsInf(v, 0):
		return "value is infinite"
	case v < 0:
		return "value is negative"
	}
	return ""
}

// checkIncreasing verifies a ticker partition is strictly increasing by calendar day,
// the same key ByDate groups on. Two timestamps on one day are a duplicate key.
func checkIncreasing(f *frame.Frame, p frame.Partition) error {
	for k := 1; k < len(p.Rows); k++ {
		prev := domain.TruncateDate(f.Date[p.Rows[k-1]])
		cur := domain.TruncateDate(f.Date[p.Rows[k]])
		if !cur.After(prev) {
			reason := "dates not strictly increasing"
			if cur.Equal(prev) {
				reason = "duplicate (ticker, date) key"
			}
			return &domain.OrderingViolation{
				Table:    domain.TablePrices,
				Ticker:   p.Key,
				Date:     cur,
				Previous: prev,
				Reason:   reason,
			}
		}
	}
	return nil
}
