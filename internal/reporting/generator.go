package reporting

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"capital-flow-lab/internal/domain"
)

// Coverage thresholds.
const (
	// MinVIXCoverage is the minimum share of rows with a defined vix.
	MinVIXCoverage = 0.9
	// UngroupedLabel labels tickers that are not part of the configured universe.
	UngroupedLabel = "ungrouped"
)

// Generator produces coverage reports from a finished feature table.
type Generator struct {
	universe domain.Universe
	window   int
	now      func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(universe domain.Universe, window int) *Generator {
	return &Generator{
		universe: universe,
		window:   window,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a complete coverage report.
func (g *Generator) Generate(runID string, records []*domain.FlowFeatureRecord) *Report {
	tickers := g.tickerCoverage(records)

	report := &Report{
		GeneratedAt:    g.now(),
		RunID:          runID,
		Window:         g.window,
		DataSummary:    summarize(records, len(tickers)),
		GroupCoverage:  groupCoverage(tickers),
		TickerCoverage: tickers,
	}
	report.DataQuality = g.check(report)
	return report
}

// tickerCoverage computes one row per ticker, sorted by group then ticker.
func (g *Generator) tickerCoverage(records []*domain.FlowFeatureRecord) []TickerCoverageRow {
	byTicker := make(map[string]*TickerCoverageRow)
	first := make(map[string]time.Time)
	last := make(map[string]time.Time)

	for _, r := range records {
		row, ok := byTicker[r.Ticker]
		if !ok {
			group := g.universe.GroupOf(r.Ticker)
			if group == "" {
				group = UngroupedLabel
			}
			row = &TickerCoverageRow{Group: group, Ticker: r.Ticker}
			byTicker[r.Ticker] = row
			first[r.Ticker] = r.Date
			last[r.Ticker] = r.Date
		}
		row.Rows++
		if r.FlowZ.Valid {
			row.FlowZDefined++
		}
		if r.VIX.Valid {
			row.VIXDefined++
		}
		if r.Date.Before(first[r.Ticker]) {
			first[r.Ticker] = r.Date
		}
		if r.Date.After(last[r.Ticker]) {
			last[r.Ticker] = r.Date
		}
	}

	rows := make([]TickerCoverageRow, 0, len(byTicker))
	for ticker, row := range byTicker {
		row.FirstDate = domain.DateKey(first[ticker])
		row.LastDate = domain.DateKey(last[ticker])
		row.VIXCoverage = fmt.Sprintf("%.4f", ratio(row.VIXDefined, row.Rows))
		rows = append(rows, *row)
	}

	// Sort deterministically by group, ticker
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Group != rows[j].Group {
			return rows[i].Group < rows[j].Group
		}
		return rows[i].Ticker < rows[j].Ticker
	})
	return rows
}

// groupCoverage folds ticker rows (already sorted by group) into group rows.
func groupCoverage(tickers []TickerCoverageRow) []GroupCoverageRow {
	var groups []GroupCoverageRow
	for _, t := range tickers {
		if len(groups) == 0 || groups[len(groups)-1].Group != t.Group {
			groups = append(groups, GroupCoverageRow{Group: t.Group})
		}
		g := &groups[len(groups)-1]
		g.Tickers++
		g.Rows += t.Rows
		g.FlowZDefined += t.FlowZDefined
		g.VIXDefined += t.VIXDefined
	}
	return groups
}

func summarize(records []*domain.FlowFeatureRecord, tickers int) DataSummary {
	s := DataSummary{TotalRows: len(records), TotalTickers: tickers}
	dates := make(map[time.Time]struct{})
	for _, r := range records {
		dates[r.Date] = struct{}{}
		if s.DateRangeStart.IsZero() || r.Date.Before(s.DateRangeStart) {
			s.DateRangeStart = r.Date
		}
		if r.Date.After(s.DateRangeEnd) {
			s.DateRangeEnd = r.Date
		}
		if r.FlowZ.Valid {
			s.FlowZDefined++
		}
		if r.VIX.Valid {
			s.VIXDefined++
		}
	}
	s.TotalDates = len(dates)
	return s
}

// check performs the coverage checks.
func (g *Generator) check(r *Report) DataQualitySection {
	q := DataQualitySection{AllChecksPassed: true}
	add := func(c CoverageCheckRow, errs ...string) {
		q.CoverageChecks = append(q.CoverageChecks, c)
		if !c.Pass {
			q.AllChecksPassed = false
			q.IntegrityErrors = append(q.IntegrityErrors, errs...)
		}
	}

	// Check 1: every ticker has more rows than the rolling window
	var short []string
	for _, t := range r.TickerCoverage {
		if t.Rows <= g.window {
			short = append(short, fmt.Sprintf("%s has %d rows, flow_z needs more than %d", t.Ticker, t.Rows, g.window))
		}
	}
	add(CoverageCheckRow{
		Name:      "Tickers with a defined flow_z window",
		Threshold: fmt.Sprintf("> %d rows each", g.window),
		Actual:    fmt.Sprintf("%d/%d", len(r.TickerCoverage)-len(short), len(r.TickerCoverage)),
		Pass:      len(short) == 0 && len(r.TickerCoverage) > 0,
	}, short...)

	// Check 2: vix coverage ratio
	cov := ratio(r.DataSummary.VIXDefined, r.DataSummary.TotalRows)
	add(CoverageCheckRow{
		Name:      "VIX coverage",
		Threshold: fmt.Sprintf(">= %.0f%%", MinVIXCoverage*100),
		Actual:    fmt.Sprintf("%.2f%%", cov*100),
		Pass:      cov >= MinVIXCoverage,
	})

	// Check 3: every configured ticker is present
	if !g.universe.IsEmpty() {
		present := make(map[string]bool, len(r.TickerCoverage))
		for _, t := range r.TickerCoverage {
			present[t.Ticker] = true
		}
		var missing []string
		for _, ticker := range g.universe.Tickers() {
			if !present[ticker] {
				missing = append(missing, ticker)
			}
		}
		var errs []string
		if len(missing) > 0 {
			errs = append(errs, "missing tickers: "+strings.Join(missing, ", "))
		}
		add(CoverageCheckRow{
			Name:      "Universe tickers present",
			Threshold: fmt.Sprintf("%d", len(g.universe.Instruments)),
			Actual:    fmt.Sprintf("%d", len(g.universe.Instruments)-len(missing)),
			Pass:      len(missing) == 0,
		}, errs...)
	}

	return q
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
