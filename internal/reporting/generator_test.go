package reporting

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capital-flow-lab/internal/domain"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func universe() domain.Universe {
	return domain.Universe{Instruments: []domain.Instrument{
		{Ticker: "SPY", Group: "indices", Type: domain.AssetTypeETFEquity},
		{Ticker: "QQQ", Group: "indices", Type: domain.AssetTypeETFEquity},
		{Ticker: "BTC-USD", Group: "crypto", Type: domain.AssetTypeCrypto},
	}}
}

// rows builds n rows for ticker; flow_z is defined after the window, vix on every row but the first vixGap.
func rows(ticker string, n, window, vixGap int) []*domain.FlowFeatureRecord {
	out := make([]*domain.FlowFeatureRecord, n)
	for i := 0; i < n; i++ {
		r := &domain.FlowFeatureRecord{Date: day(i), Ticker: ticker, Close: 1, Volume: 1, NotionalTraded: 1}
		if i > window {
			r.FlowZ = null.FloatFrom(0.1)
		}
		if i >= vixGap {
			r.VIX = null.FloatFrom(15)
		}
		out[i] = r
	}
	return out
}

func TestGenerate_CoverageRows(t *testing.T) {
	var records []*domain.FlowFeatureRecord
	records = append(records, rows("SPY", 10, 3, 0)...)
	records = append(records, rows("QQQ", 10, 3, 0)...)
	records = append(records, rows("BTC-USD", 12, 3, 2)...)
	records = append(records, rows("DOGE", 5, 3, 0)...)

	r := NewGenerator(universe(), 3).WithClock(func() time.Time { return fixedNow }).Generate("run-1", records)

	assert.Equal(t, fixedNow, r.GeneratedAt)
	assert.Equal(t, 37, r.DataSummary.TotalRows)
	assert.Equal(t, 4, r.DataSummary.TotalTickers)
	assert.Equal(t, 12, r.DataSummary.TotalDates)
	assert.Equal(t, day(0), r.DataSummary.DateRangeStart)
	assert.Equal(t, day(11), r.DataSummary.DateRangeEnd)

	require.Len(t, r.TickerCoverage, 4)
	// Sorted by group, then ticker
	assert.Equal(t, []string{"BTC-USD", "QQQ", "SPY", "DOGE"}, []string{
		r.TickerCoverage[0].Ticker, r.TickerCoverage[1].Ticker, r.TickerCoverage[2].Ticker, r.TickerCoverage[3].Ticker,
	})
	btc := r.TickerCoverage[0]
	assert.Equal(t, "crypto", btc.Group)
	assert.Equal(t, 12, btc.Rows)
	assert.Equal(t, 8, btc.FlowZDefined)
	assert.Equal(t, 10, btc.VIXDefined)
	assert.Equal(t, "0.8333", btc.VIXCoverage)
	assert.Equal(t, "2024-01-01", btc.FirstDate)
	assert.Equal(t, "2024-01-12", btc.LastDate)
	assert.Equal(t, UngroupedLabel, r.TickerCoverage[3].Group)

	require.Len(t, r.GroupCoverage, 3)
	assert.Equal(t, GroupCoverageRow{Group: "indices", Tickers: 2, Rows: 20, FlowZDefined: 12, VIXDefined: 20}, r.GroupCoverage[1])
}

func TestGenerate_ChecksPass(t *testing.T) {
	var records []*domain.FlowFeatureRecord
	for _, ticker := range []string{"SPY", "QQQ", "BTC-USD"} {
		records = append(records, rows(ticker, 10, 3, 0)...)
	}

	r := NewGenerator(universe(), 3).Generate("", records)

	assert.True(t, r.DataQuality.AllChecksPassed)
	assert.Len(t, r.DataQuality.CoverageChecks, 3)
	assert.Empty(t, r.DataQuality.IntegrityErrors)
}

func TestGenerate_ChecksFail(t *testing.T) {
	var records []*domain.FlowFeatureRecord
	records = append(records, rows("SPY", 3, 3, 0)...)
	records = append(records, rows("QQQ", 10, 3, 5)...)

	r := NewGenerator(universe(), 3).Generate("", records)

	require.False(t, r.DataQuality.AllChecksPassed)
	for _, c := range r.DataQuality.CoverageChecks {
		assert.False(t, c.Pass, c.Name)
	}
	joined := strings.Join(r.DataQuality.IntegrityErrors, "\n")
	assert.Contains(t, joined, "SPY has 3 rows")
	assert.Contains(t, joined, "missing tickers: BTC-USD")
}

func TestGenerate_EmptyUniverseSkipsPresenceCheck(t *testing.T) {
	r := NewGenerator(domain.Universe{}, 3).Generate("", rows("SPY", 10, 3, 0))

	assert.Len(t, r.DataQuality.CoverageChecks, 2)
	assert.True(t, r.DataQuality.AllChecksPassed)
	assert.Equal(t, UngroupedLabel, r.TickerCoverage[0].Group)
}

func TestRenderMarkdown(t *testing.T) {
	r := NewGenerator(universe(), 3).WithClock(func() time.Time { return fixedNow }).Generate("run-1", rows("SPY", 10, 3, 0))

	md := RenderMarkdown(r)

	assert.Contains(t, md, "# Capital Flow Coverage Report")
	assert.Contains(t, md, "Generated: 2025-03-01T12:00:00Z")
	assert.Contains(t, md, "Run: run-1 | Window: 3")
	assert.Contains(t, md, "| indices | SPY | 10 | 2024-01-01 | 2024-01-10 | 6 | 10 | 1.0000 |")
	assert.Contains(t, md, "missing tickers: BTC-USD, QQQ")
}

func TestRenderMarkdown_Empty(t *testing.T) {
	md := RenderMarkdown(NewGenerator(domain.Universe{}, 60).Generate("", nil))

	assert.Contains(t, md, "| Date Range Start | - |")
	assert.Contains(t, md, "No rows.")
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "processed", "coverage.md")
	r := NewGenerator(universe(), 3).Generate("run-1", rows("SPY", 10, 3, 0))

	require.NoError(t, WriteFiles(r, path))

	md, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(md), "Coverage by Ticker")

	csv, err := os.ReadFile(CSVPath(path))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csv)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "group,ticker,rows,first_date,last_date,flow_z_defined,vix_defined,vix_coverage", lines[0])
	assert.Equal(t, "indices,SPY,10,2024-01-01,2024-01-10,6,10,1.0000", lines[1])
}
