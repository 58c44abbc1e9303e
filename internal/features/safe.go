package features

import (
	"github.com/guregu/null/v6"
)

// Sub returns a - b, undefined when either operand is undefined.
func Sub(a, b null.Float) null.Float {
	if !a.Valid || !b.Valid {
		return null.Float{}
	}
	return null.FloatFrom(a.Float64 - b.Float64)
}

// SafeDiv returns num / den, undefined when either operand is undefined or den is zero.
// It never yields an infinity.
func SafeDiv(num, den null.Float) null.Float {
	if !num.Valid || !den.Valid || den.Float64 == 0 {
		return null.Float{}
	}
	return null.FloatFrom(num.Float64 / den.Float64)
}

// SumDefined adds the defined values. ok is false when none is defined.
func SumDefined(values []null.Float) (sum float64, ok bool) {
	for _, v := range values {
		if v.Valid {
			sum += v.Float64
			ok = true
		}
	}
	return sum, ok
}
