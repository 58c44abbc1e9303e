package tabular

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/guregu/null/v6"

	"capital-flow-lab/internal/domain"
)

// FeatureColumns is the output column order.
var FeatureColumns = []string{
	"date", "ticker", "open", "high", "low", "close", "adj_close", "volume",
	"notional_traded", "notional_lag", "d_notional", "d_notional_universe",
	"flow_share", "flow_z", "vix",
}

// FeatureRow is the on-disk layout of one feature record.
// Nullable columns are pointers: nil is written as a parquet null.
type FeatureRow struct {
	Date              string   `parquet:"date"`
	Ticker            string   `parquet:"ticker,dict"`
	Open              float64  `parquet:"open"`
	High              float64  `parquet:"high"`
	Low               float64  `parquet:"low"`
	Close             float64  `parquet:"close"`
	AdjClose          float64  `parquet:"adj_close"`
	Volume            float64  `parquet:"volume"`
	NotionalTraded    float64  `parquet:"notional_traded"`
	NotionalLag       *float64 `parquet:"notional_lag,optional"`
	DNotional         *float64 `parquet:"d_notional,optional"`
	DNotionalUniverse *float64 `parquet:"d_notional_universe,optional"`
	FlowShare         *float64 `parquet:"flow_share,optional"`
	FlowZ             *float64 `parquet:"flow_z,optional"`
	VIX               *float64 `parquet:"vix,optional"`
}

// ToFeatureRows converts records to their on-disk layout.
func ToFeatureRows(records []*domain.FlowFeatureRecord) []FeatureRow {
	rows := make([]FeatureRow, len(records))
	for i, r := range records {
		rows[i] = FeatureRow{
			Date:              domain.DateKey(r.Date),
			Ticker:            r.Ticker,
			Open:              r.Open,
			High:              r.High,
			Low:               r.Low,
			Close:             r.Close,
			AdjClose:          r.AdjClose,
			Volume:            r.Volume,
			NotionalTraded:    r.NotionalTraded,
			NotionalLag:       r.NotionalLag.Ptr(),
			DNotional:         r.DNotional.Ptr(),
			DNotionalUniverse: r.DNotionalUniverse.Ptr(),
			FlowShare:         r.FlowShare.Ptr(),
			FlowZ:             r.FlowZ.Ptr(),
			VIX:               r.VIX.Ptr(),
		}
	}
	return rows
}

// FromFeatureRows converts on-disk rows back to records.
func FromFeatureRows(rows []FeatureRow) ([]*domain.FlowFeatureRecord, error) {
	out := make([]*domain.FlowFeatureRecord, len(rows))
	for i, row := range rows {
		date, err := time.Parse(domain.DateLayout, row.Date)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad date %q: %w", i, row.Date, err)
		}
		out[i] = &domain.FlowFeatureRecord{
			Date:              date,
			Ticker:            row.Ticker,
			Open:              row.Open,
			High:              row.High,
			Low:               row.Low,
			Close:             row.Close,
			AdjClose:          row.AdjClose,
			Volume:            row.Volume,
			NotionalTraded:    row.NotionalTraded,
			NotionalLag:       null.FloatFromPtr(row.NotionalLag),
			DNotional:         null.FloatFromPtr(row.DNotional),
			DNotionalUniverse: null.FloatFromPtr(row.DNotionalUniverse),
			FlowShare:         null.FloatFromPtr(row.FlowShare),
			FlowZ:             null.FloatFromPtr(row.FlowZ),
			VIX:               null.FloatFromPtr(row.VIX),
		}
	}
	return out, nil
}

// formatFloat renders a number with the shortest exact representation.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// formatNull renders an undefined value as an empty cell.
func formatNull(v null.Float) string {
	if !v.Valid {
		return ""
	}
	return formatFloat(v.Float64)
}

// WriteFeatures writes records to path in the given format.
func WriteFeatures(path string, format Format, records []*domain.FlowFeatureRecord) error {
	switch format {
	case FormatParquet:
		return WriteFeaturesParquet(path, records)
	case FormatCSV:
		return WriteFeaturesCSV(path, records)
	case FormatXLSX:
		return WriteFeaturesXLSX(path, records)
	}
	return fmt.Errorf("unsupported output format %q", format)
}

// ReadFeatures reads a feature table written by WriteFeatures.
func ReadFeatures(path string) ([]*domain.FlowFeatureRecord, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatParquet:
		return ReadFeaturesParquet(path)
	case FormatCSV:
		return ReadFeaturesCSV(path)
	}
	return nil, fmt.Errorf("reading %s feature tables is not supported", format)
}

// ensureDir creates the parent directory of path.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}
