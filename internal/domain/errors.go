package domain

import (
	"errors"
	"fmt"
	"time"
)

// Error classes of the feature transform. Both are fatal: the whole run aborts.
var (
	// ErrInputShape marks a missing column, a wrong type or an unparseable value.
	ErrInputShape = errors.New("input shape error")

	// ErrOrderingViolation marks a duplicate or non-increasing key.
	ErrOrderingViolation = errors.New("ordering violation")
)

// Table names used in error context.
const (
	TablePrices     = "prices"
	TableVolatility = "volatility"
)

// InputShapeError reports a value that does not fit the input contract.
// Row is the 0-based data row index, or -1 when the error concerns the table header.
type InputShapeError struct {
	Table  string
	Column string
	Row    int
	Ticker string
	Value  string
	Reason string
}

func (e *InputShapeError) Error() string {
	msg := fmt.Sprintf("%s: table %s column %q", ErrInputShape, e.Table, e.Column)
	if e.Row >= 0 {
		msg += fmt.Sprintf(" row %d", e.Row)
	}
	if e.Ticker != "" {
		msg += fmt.Sprintf(" ticker %s", e.Ticker)
	}
	if e.Value != "" {
		msg += fmt.Sprintf(" value %q", e.Value)
	}
	return msg + ": " + e.Reason
}

// Is makes errors.Is(err, ErrInputShape) match.
func (e *InputShapeError) Is(target error) bool {
	return target == ErrInputShape
}

// OrderingViolation reports a key that breaks the one-row-per-key invariant.
// Previous is the zero time when the violation is a plain duplicate.
type OrderingViolation struct {
	Table    string
	Ticker   string
	Date     time.Time
	Previous time.Time
	Reason   string
}

func (e *OrderingViolation) Error() string {
	msg := fmt.Sprintf("%s: table %s", ErrOrderingViolation, e.Table)
	if e.Ticker != "" {
		msg += fmt.Sprintf(" ticker %s", e.Ticker)
	}
	msg += fmt.Sprintf(" date %s", DateKey(e.Date))
	if !e.Previous.IsZero() {
		msg += fmt.Sprintf(" (previous %s)", DateKey(e.Previous))
	}
	return msg + ": " + e.Reason
}

// Is makes errors.Is(err, ErrOrderingViolation) match.
func (e *OrderingViolation) Is(target error) bool {
	return target == ErrOrderingViolation
}
