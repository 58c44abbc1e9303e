package features

import (
	"math"

	"github.com/guregu/null/v6"
)

// DefaultWindow is the trailing row count of the flow z-score.
const DefaultWindow = 60

// RollingZScore computes, for every position i, the z-score of series[i] against the
// trailing window series[i-window+1 .. i] (inclusive of i).
//
// out[i] is undefined when:
//   - fewer than window rows exist up to i
//   - any sample in the window is undefined
//   - the sample standard deviation of the window is zero, including a window of
//     identical values whose computed mean carries rounding error
//
// The window is counted in rows, not calendar days.
func RollingZScore(series []null.Float, window int) []null.Float {
	out := make([]null.Float, len(series))
	if window < 2 {
		return out
	}

	samples := make([]float64, 0, window)
	for i := window - 1; i < len(series); i++ {
		samples = samples[:0]
		constant := true
		for _, v := range series[i-window+1 : i+1] {
			if !v.Valid {
				break
			}
			if len(samples) > 0 && v.Float64 != samples[0] {
				constant = false
			}
			samples = append(samples, v.Float64)
		}
		if len(samples) != window || constant {
			continue
		}

		mean := computeMean(samples)
		stddev := computeStddev(samples, mean)
		if stddev == 0 || math.IsNaN(stddev) {
			continue
		}
		out[i] = null.FloatFrom((series[i].Float64 - mean) / stddev)
	}
	return out
}

// computeMean calculates the arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}
