// Package stats holds the pure numeric kernel shared by the analyzers.
// Every function tolerates empty input and never returns NaN.
package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mean returns the arithmetic mean, or 0 for no values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// StdDev returns the population standard deviation, or 0 for fewer than two values.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	_, std := stat.PopMeanStdDev(values, nil)
	if math.IsNaN(std) || std < 0 {
		return 0
	}
	return std
}

// CoefficientOfVariation returns stddev/mean in percent, or 0 when the mean is not positive.
func CoefficientOfVariation(values []float64) float64 {
	m := Mean(values)
	if m <= 0 {
		return 0
	}
	return StdDev(values) / m * 100
}

// MinMax returns the smallest and largest value.
func MinMax(values []float64) (lo, hi float64) {
	if len(values) == 0 {
		return 0, 0
	}
	return floats.Min(values), floats.Max(values)
}

// DeviationPct is how far current sits below reference, in percent of reference.
// Positive means current is under the reference.
func DeviationPct(reference, current float64) float64 {
	if reference == 0 {
		return 0
	}
	return (reference - current) / reference * 100
}

// ChangePct is the relative move from prev to next, in percent.
func ChangePct(prev, next float64) float64 {
	if prev == 0 {
		return 0
	}
	return (next - prev) / prev * 100
}

// Slope fits y = a + b*x over x = 0..n-1 and returns b and R².
func Slope(values []float64) (slope, rSquared float64) {
	n := len(values)
	if n < 2 {
		return 0, 0
	}
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	a, b := stat.LinearRegression(xs, values, nil, false)
	r2 := stat.RSquared(xs, values, nil, a, b)
	if math.IsNaN(b) {
		b = 0
	}
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		r2 = 0
	}
	return b, r2
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// Tail returns the last n values, or all of them if there are fewer.
func Tail(values []float64, n int) []float64 {
	if n >= len(values) {
		return values
	}
	return values[len(values)-n:]
}
