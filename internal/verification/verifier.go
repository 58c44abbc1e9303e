// Package verification checks that a feature table is reproducible.
// It compares a stored or freshly written table against a recomputation.
package verification

import (
	"fmt"
	"math"
	"time"

	"github.com/guregu/null/v6"

	"capital-flow-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-9

// FieldDivergence represents a mismatch between expected and actual values of one row.
type FieldDivergence struct {
	Row      int         // row index
	Ticker   string      // row ticker (from expected)
	Date     time.Time   // row date (from expected)
	Field    string      // column name
	Expected interface{} // expected value
	Actual   interface{} // actual value
}

func (d FieldDivergence) String() string {
	return fmt.Sprintf("row %d (%s %s) %s: expected %v, got %v",
		d.Row, d.Ticker, domain.DateKey(d.Date), d.Field, d.Expected, d.Actual)
}

// VerificationReport contains the result of comparing two tables.
type VerificationReport struct {
	ExpectedRows int               // rows in expected table
	ActualRows   int               // rows in actual table
	MatchedRows  int               // rows with no divergence
	Divergences  []FieldDivergence // every divergent field, in row order
}

// Match reports whether both tables are equal within tolerance.
func (r *VerificationReport) Match() bool {
	return r.ExpectedRows == r.ActualRows && len(r.Divergences) == 0
}

// Err returns nil on a match, otherwise an error naming the first divergence.
func (r *VerificationReport) Err() error {
	if r.Match() {
		return nil
	}
	if r.ExpectedRows != r.ActualRows {
		return fmt.Errorf("verification failed: expected %d rows, got %d", r.ExpectedRows, r.ActualRows)
	}
	return fmt.Errorf("verification failed: %d divergent fields, first: %s", len(r.Divergences), r.Divergences[0])
}

// CompareTables compares two feature tables row by row.
// Rows are matched by position; the row identity (ticker, date) is itself compared.
// Undefined values only match undefined values.
func CompareTables(expected, actual []*domain.FlowFeatureRecord, tol float64) *VerificationReport {
	report := &VerificationReport{
		ExpectedRows: len(expected),
		ActualRows:   len(actual),
	}

	n := min(len(expected), len(actual))
	for i := 0; i < n; i++ {
		divs := CompareRecords(i, expected[i], actual[i], tol)
		if len(divs) == 0 {
			report.MatchedRows++
			continue
		}
		report.Divergences = append(report.Divergences, divs...)
	}
	return report
}

// CompareRecords compares two feature rows and returns divergences.
func CompareRecords(row int, expected, actual *domain.FlowFeatureRecord, tol float64) []FieldDivergence {
	var divergences []FieldDivergence
	add := func(field string, e, a interface{}) {
		divergences = append(divergences, FieldDivergence{
			Row:      row,
			Ticker:   expected.Ticker,
			Date:     expected.Date,
			Field:    field,
			Expected: e,
			Actual:   a,
		})
	}

	// Row identity must match exactly
	if expected.Ticker != actual.Ticker {
		add("ticker", expected.Ticker, actual.Ticker)
	}
	if !expected.Date.Equal(actual.Date) {
		add("date", domain.DateKey(expected.Date), domain.DateKey(actual.Date))
	}

	floats := []struct {
		field string
		e, a  float64
	}{
		{"open", expected.Open, actual.Open},
		{"high", expected.High, actual.High},
		{"low", expected.Low, actual.Low},
		{"close", expected.Close, actual.Close},
		{"adj_close", expected.AdjClose, actual.AdjClose},
		{"volume", expected.Volume, actual.Volume},
		{"notional_traded", expected.NotionalTraded, actual.NotionalTraded},
	}
	for _, f := range floats {
		if !floatEquals(f.e, f.a, tol) {
			add(f.field, f.e, f.a)
		}
	}

	nulls := []struct {
		field string
		e, a  null.Float
	}{
		{"notional_lag", expected.NotionalLag, actual.NotionalLag},
		{"d_notional", expected.DNotional, actual.DNotional},
		{"d_notional_universe", expected.DNotionalUniverse, actual.DNotionalUniverse},
		{"flow_share", expected.FlowShare, actual.FlowShare},
		{"flow_z", expected.FlowZ, actual.FlowZ},
		{"vix", expected.VIX, actual.VIX},
	}
	for _, f := range nulls {
		if !nullEquals(f.e, f.a, tol) {
			add(f.field, f.e.Ptr(), f.a.Ptr())
		}
	}

	return divergences
}

// floatEquals compares two float64 values with a relative tolerance for large magnitudes.
// Notional values reach 1e12, where an absolute 1e-9 is below float64 resolution.
func floatEquals(a, b, tol float64) bool {
	diff := math.Abs(a - b)
	if diff <= tol {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	return diff <= tol*scale
}

// nullEquals returns true if both are undefined, or both are defined and equal.
func nullEquals(a, b null.Float, tol float64) bool {
	if !a.Valid && !b.Valid {
		return true
	}
	if a.Valid != b.Valid {
		return false
	}
	return floatEquals(a.Float64, b.Float64, tol)
}
