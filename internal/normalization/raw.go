package normalization

import (
	"strings"

	"capital-flow-lab/internal/domain"
)

// RawTable is an untyped input table: a header plus string cells.
// Columns may appear in any order; cells may hold date-like text.
type RawTable struct {
	Header []string
	Rows   [][]string
}

// Column names of the price and volatility input contracts.
const (
	ColDate     = "date"
	ColTicker   = "ticker"
	ColOpen     = "open"
	ColHigh     = "high"
	ColLow      = "low"
	ColClose    = "close"
	ColAdjClose = "adj_close"
	ColVolume   = "volume"
)

// PriceColumns lists the columns a price table must carry.
var PriceColumns = []string{ColDate, ColTicker, ColOpen, ColHigh, ColLow, ColClose, ColAdjClose, ColVolume}

// VolatilityColumns lists the columns consumed from a volatility table.
var VolatilityColumns = []string{ColDate, ColClose}

// CanonicalColumn folds a header cell to its canonical column name:
// lower case, trimmed, spaces and dashes replaced by underscores ("Adj Close" -> "adj_close").
func CanonicalColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "\uFEFF")
	return strings.NewReplacer(" ", "_", "-", "_").Replace(name)
}

// columnIndex maps each required column to its position in the header.
func columnIndex(table string, header []string, required []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		c := CanonicalColumn(h)
		if _, dup := index[c]; dup {
			return nil, &domain.InputShapeError{Table: table, Column: c, Row: -1, Reason: "column appears more than once"}
		}
		index[c] = i
	}
	for _, c := range required {
		if _, ok := index[c]; !ok {
			return nil, &domain.InputShapeError{Table: table, Column: c, Row: -1, Reason: "required column missing"}
		}
	}
	return index, nil
}
