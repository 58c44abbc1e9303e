package reporting

import (
	"fmt"

	"github.com/gocarina/gocsv"
)

// RenderCSV renders ticker coverage rows as CSV string.
func RenderCSV(rows []TickerCoverageRow) (string, error) {
	if len(rows) == 0 {
		return "group,ticker,rows,first_date,last_date,flow_z_defined,vix_defined,vix_coverage\n", nil
	}
	out, err := gocsv.MarshalString(&rows)
	if err != nil {
		return "", fmt.Errorf("marshal coverage csv: %w", err)
	}
	return out, nil
}
