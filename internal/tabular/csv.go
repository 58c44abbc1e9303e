package tabular

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/guregu/null/v6"

	"capital-flow-lab/internal/domain"
	"capital-flow-lab/internal/normalization"
)

// featureCSVRow is the CSV layout of one feature record. Undefined values are empty cells.
type featureCSVRow struct {
	Date              string `csv:"date"`
	Ticker            string `csv:"ticker"`
	Open              string `csv:"open"`
	High              string `csv:"high"`
	Low               string `csv:"low"`
	Close             string `csv:"close"`
	AdjClose          string `csv:"adj_close"`
	Volume            string `csv:"volume"`
	NotionalTraded    string `csv:"notional_traded"`
	NotionalLag       string `csv:"notional_lag"`
	DNotional         string `csv:"d_notional"`
	DNotionalUniverse string `csv:"d_notional_universe"`
	FlowShare         string `csv:"flow_share"`
	FlowZ             string `csv:"flow_z"`
	VIX               string `csv:"vix"`
}

// WriteFeaturesCSV writes the feature table as CSV with a header row.
func WriteFeaturesCSV(path string, records []*domain.FlowFeatureRecord) error {
	rows := make([]*featureCSVRow, len(records))
	for i, r := range records {
		rows[i] = &featureCSVRow{
			Date:              domain.DateKey(r.Date),
			Ticker:            r.Ticker,
			Open:              formatFloat(r.Open),
			High:              formatFloat(r.High),
			Low:               formatFloat(r.Low),
			Close:             formatFloat(r.Close),
			AdjClose:          formatFloat(r.AdjClose),
			Volume:            formatFloat(r.Volume),
			NotionalTraded:    formatFloat(r.NotionalTraded),
			NotionalLag:       formatNull(r.NotionalLag),
			DNotional:         formatNull(r.DNotional),
			DNotionalUniverse: formatNull(r.DNotionalUniverse),
			FlowShare:         formatNull(r.FlowShare),
			FlowZ:             formatNull(r.FlowZ),
			VIX:               formatNull(r.VIX),
		}
	}

	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.Marshal(rows, f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// ReadFeaturesCSV reads a feature table written by WriteFeaturesCSV.
func ReadFeaturesCSV(path string) ([]*domain.FlowFeatureRecord, error) {
	raw, err := ReadRawCSV(path)
	if err != nil {
		return nil, err
	}
	return featuresFromRaw(raw)
}

// featuresFromRaw parses a feature table from cells, treating empty nullable cells as undefined.
func featuresFromRaw(raw normalization.RawTable) ([]*domain.FlowFeatureRecord, error) {
	prices, err := normalization.ParsePriceTable(raw)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(raw.Header))
	for i, h := range raw.Header {
		index[normalization.CanonicalColumn(h)] = i
	}
	for _, c := range FeatureColumns {
		if _, ok := index[c]; !ok {
			return nil, &domain.InputShapeError{Table: "features", Column: c, Row: -1, Reason: "required column missing"}
		}
	}

	out := make([]*domain.FlowFeatureRecord, len(prices))
	for i, p := range prices {
		row := raw.Rows[i]
		rec := &domain.FlowFeatureRecord{
			Date: p.Date, Ticker: p.Ticker,
			Open: p.Open, High: p.High, Low: p.Low, Close: p.Close, AdjClose: p.AdjClose, Volume: p.Volume,
		}

		notional, ok := normalization.ParseNumber(row[index["notional_traded"]])
		if !ok {
			return nil, &domain.InputShapeError{Table: "features", Column: "notional_traded", Row: i, Ticker: p.Ticker, Reason: "not a decimal number"}
		}
		rec.NotionalTraded = notional

		nullable := []struct {
			col string
			dst *null.Float
		}{
			{"notional_lag", &rec.NotionalLag},
			{"d_notional", &rec.DNotional},
			{"d_notional_universe", &rec.DNotionalUniverse},
			{"flow_share", &rec.FlowShare},
			{"flow_z", &rec.FlowZ},
			{"vix", &rec.VIX},
		}
		for _, n := range nullable {
			cell := row[index[n.col]]
			if cell == "" {
				continue
			}
			v, ok := normalization.ParseNumber(cell)
			if !ok {
				return nil, &domain.InputShapeError{Table: "features", Column: n.col, Row: i, Ticker: p.Ticker, Value: cell, Reason: "not a decimal number"}
			}
			*n.dst = null.FloatFrom(v)
		}
		out[i] = rec
	}
	return out, nil
}
