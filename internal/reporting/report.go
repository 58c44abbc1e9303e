package reporting

import "time"

// Report represents the coverage report of one feature run.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string
	Window      int

	// Data Summary
	DataSummary DataSummary

	// Data Quality (coverage checks)
	DataQuality DataQualitySection

	// Per-group and per-ticker coverage (sorted by group, ticker)
	GroupCoverage  []GroupCoverageRow
	TickerCoverage []TickerCoverageRow
}

// DataQualitySection contains coverage checks and integrity errors.
type DataQualitySection struct {
	CoverageChecks  []CoverageCheckRow
	IntegrityErrors []string
	AllChecksPassed bool
}

// CoverageCheckRow represents one coverage criterion.
type CoverageCheckRow struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// DataSummary contains data description.
type DataSummary struct {
	TotalRows      int
	TotalTickers   int
	TotalDates     int
	DateRangeStart time.Time // zero when there are no rows
	DateRangeEnd   time.Time
	FlowZDefined   int
	VIXDefined     int
}

// GroupCoverageRow aggregates ticker coverage per universe group.
type GroupCoverageRow struct {
	Group        string
	Tickers      int
	Rows         int
	FlowZDefined int
	VIXDefined   int
}

// TickerCoverageRow represents one row in the ticker coverage table.
type TickerCoverageRow struct {
	Group        string `csv:"group"`
	Ticker       string `csv:"ticker"`
	Rows         int    `csv:"rows"`
	FirstDate    string `csv:"first_date"`
	LastDate     string `csv:"last_date"`
	FlowZDefined int    `csv:"flow_z_defined"`
	VIXDefined   int    `csv:"vix_defined"`
	VIXCoverage  string `csv:"vix_coverage"` // ratio with 4 decimals
}
