package tabular

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	"capital-flow-lab/internal/domain"
	"capital-flow-lab/internal/normalization"
)

// PriceRow is the on-disk layout of one raw price record.
type PriceRow struct {
	Date     string  `parquet:"date" csv:"date"`
	Ticker   string  `parquet:"ticker,dict" csv:"ticker"`
	Open     float64 `parquet:"open" csv:"open"`
	High     float64 `parquet:"high" csv:"high"`
	Low      float64 `parquet:"low" csv:"low"`
	Close    float64 `parquet:"close" csv:"close"`
	AdjClose float64 `parquet:"adj_close" csv:"adj_close"`
	Volume   float64 `parquet:"volume" csv:"volume"`
}

// VolatilityRow is the on-disk layout of one volatility index record.
type VolatilityRow struct {
	Date   string  `parquet:"date"`
	Ticker string  `parquet:"ticker,dict"`
	Close  float64 `parquet:"close"`
}

// ReadRawParquet reads a flat parquet file into untyped cells.
// Date and timestamp logical types are rendered as calendar dates; nulls become empty cells.
func ReadRawParquet(path string) (normalization.RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return normalization.RawTable{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := parquet.NewReader(f)
	defer r.Close()

	fields := r.Schema().Fields()
	header := make([]string, len(fields))
	for i, field := range fields {
		if !field.Leaf() {
			return normalization.RawTable{}, fmt.Errorf("%s: column %q is nested", path, field.Name())
		}
		header[i] = field.Name()
	}

	table := normalization.RawTable{Header: header}
	buf := make([]parquet.Row, 256)
	for {
		n, err := r.ReadRows(buf)
		for _, row := range buf[:n] {
			cells := make([]string, len(fields))
			for _, v := range row {
				col := v.Column()
				if col < 0 || col >= len(fields) {
					continue
				}
				cells[col] = cellText(v, fields[col].Type())
			}
			table.Rows = append(table.Rows, cells)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return normalization.RawTable{}, fmt.Errorf("read %s: %w", path, err)
		}
	}
	return table, nil
}

// cellText renders one parquet value as text the normalizer can parse.
func cellText(v parquet.Value, typ parquet.Type) string {
	if v.IsNull() {
		return ""
	}
	lt := typ.LogicalType()

	switch v.Kind() {
	case parquet.Boolean:
		return strconv.FormatBool(v.Boolean())
	case parquet.Int32:
		if lt != nil && lt.Date != nil {
			return domain.DateKey(time.Unix(int64(v.Int32())*86400, 0).UTC())
		}
		return strconv.FormatInt(int64(v.Int32()), 10)
	case parquet.Int64:
		if lt != nil && lt.Timestamp != nil {
			unit := lt.Timestamp.Unit
			var t time.Time
			switch {
			case unit.Nanos != nil:
				t = time.Unix(0, v.Int64())
			case unit.Micros != nil:
				t = time.UnixMicro(v.Int64())
			default:
				t = time.UnixMilli(v.Int64())
			}
			return t.UTC().Format(time.RFC3339Nano)
		}
		return strconv.FormatInt(v.Int64(), 10)
	case parquet.Float:
		return strconv.FormatFloat(float64(v.Float()), 'g', -1, 32)
	case parquet.Double:
		return strconv.FormatFloat(v.Double(), 'g', -1, 64)
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	}
	return ""
}

// WritePricesParquet writes raw price records in the input layout.
func WritePricesParquet(path string, prices []domain.PriceRecord) error {
	rows := make([]PriceRow, len(prices))
	for i, p := range prices {
		rows[i] = PriceRow{
			Date:     domain.DateKey(p.Date),
			Ticker:   p.Ticker,
			Open:     p.Open,
			High:     p.High,
			Low:      p.Low,
			Close:    p.Close,
			AdjClose: p.AdjClose,
			Volume:   p.Volume,
		}
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteVolatilityParquet writes volatility index records in the input layout.
func WriteVolatilityParquet(path, ticker string, vols []domain.VolatilityRecord) error {
	rows := make([]VolatilityRow, len(vols))
	for i, v := range vols {
		rows[i] = VolatilityRow{Date: domain.DateKey(v.Date), Ticker: ticker, Close: v.Close}
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteFeaturesParquet writes the feature table. Undefined values are parquet nulls.
func WriteFeaturesParquet(path string, records []*domain.FlowFeatureRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := parquet.WriteFile(path, ToFeatureRows(records)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadFeaturesParquet reads a feature table written by WriteFeaturesParquet.
func ReadFeaturesParquet(path string) ([]*domain.FlowFeatureRecord, error) {
	rows, err := parquet.ReadFile[FeatureRow](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return FromFeatureRows(rows)
}
