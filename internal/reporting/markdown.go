package reporting

import (
	"fmt"
	"strings"
	"time"

	"capital-flow-lab/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Capital Flow Coverage Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run: %s | Window: %d\n\n", r.RunID, r.Window))
	} else {
		sb.WriteString(fmt.Sprintf("Window: %d\n\n", r.Window))
	}

	// Data Summary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Rows | %d |\n", r.DataSummary.TotalRows))
	sb.WriteString(fmt.Sprintf("| Tickers | %d |\n", r.DataSummary.TotalTickers))
	sb.WriteString(fmt.Sprintf("| Dates | %d |\n", r.DataSummary.TotalDates))
	sb.WriteString(fmt.Sprintf("| Date Range Start | %s |\n", dateOrDash(r.DataSummary.DateRangeStart)))
	sb.WriteString(fmt.Sprintf("| Date Range End | %s |\n", dateOrDash(r.DataSummary.DateRangeEnd)))
	sb.WriteString(fmt.Sprintf("| Rows with flow_z | %d |\n", r.DataSummary.FlowZDefined))
	sb.WriteString(fmt.Sprintf("| Rows with vix | %d |\n", r.DataSummary.VIXDefined))
	sb.WriteString("\n")

	// Data Quality
	sb.WriteString("## Data Quality\n\n")
	if len(r.DataQuality.CoverageChecks) > 0 {
		sb.WriteString("| Check | Threshold | Actual | Status |\n")
		sb.WriteString("|-------|-----------|--------|--------|\n")
		for _, check := range r.DataQuality.CoverageChecks {
			status := "FAIL"
			if check.Pass {
				status = "PASS"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				check.Name, check.Threshold, check.Actual, status))
		}
		sb.WriteString("\n")

		if r.DataQuality.AllChecksPassed {
			sb.WriteString("**All checks passed.**\n\n")
		} else {
			sb.WriteString("**Some checks failed.**\n\n")
		}
	}

	// Integrity errors (always shown if present)
	if len(r.DataQuality.IntegrityErrors) > 0 {
		sb.WriteString("### Integrity Errors\n\n")
		for _, err := range r.DataQuality.IntegrityErrors {
			sb.WriteString(fmt.Sprintf("- %s\n", err))
		}
		sb.WriteString("\n")
	}

	// Group coverage
	sb.WriteString("## Coverage by Group\n\n")
	if len(r.GroupCoverage) > 0 {
		sb.WriteString("| Group | Tickers | Rows | flow_z | vix |\n")
		sb.WriteString("|-------|---------|------|--------|-----|\n")
		for _, g := range r.GroupCoverage {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d |\n",
				g.Group, g.Tickers, g.Rows, g.FlowZDefined, g.VIXDefined))
		}
	} else {
		sb.WriteString("No rows.\n")
	}
	sb.WriteString("\n")

	// Ticker coverage
	sb.WriteString("## Coverage by Ticker\n\n")
	if len(r.TickerCoverage) > 0 {
		sb.WriteString("| Group | Ticker | Rows | First | Last | flow_z | vix | vix % |\n")
		sb.WriteString("|-------|--------|------|-------|------|--------|-----|-------|\n")
		for _, t := range r.TickerCoverage {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %s | %s | %d | %d | %s |\n",
				t.Group, t.Ticker, t.Rows, t.FirstDate, t.LastDate,
				t.FlowZDefined, t.VIXDefined, t.VIXCoverage))
		}
	} else {
		sb.WriteString("No rows.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func dateOrDash(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return domain.DateKey(t)
}
