package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Finite returns the values of xs that are neither NaN nor infinite.
// The result shares no memory with xs.
func Finite(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out = append(out, x)
		}
	}
	return out
}

// Count returns the number of finite values in xs.
func Count(xs []float64) int {
	n := 0
	for _, x := range xs {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			n++
		}
	}
	return n
}

// Mean returns the arithmetic mean of the finite values in xs, or NaN if
// there are none.
func Mean(xs []float64) float64 {
	v := Finite(xs)
	if len(v) == 0 {
		return math.NaN()
	}
	return stat.Mean(v, nil)
}

// MeanAbs returns the mean of |x| over the finite values in xs.
func MeanAbs(xs []float64) float64 {
	v := Finite(xs)
	if len(v) == 0 {
		return math.NaN()
	}
	for i := range v {
		v[i] = math.Abs(v[i])
	}
	return stat.Mean(v, nil)
}

// StdDev returns the sample (n-1) standard deviation of the finite values
// in xs, or NaN when fewer than two values are present.
func StdDev(xs []float64) float64 {
	v := Finite(xs)
	if len(v) < 2 {
		return math.NaN()
	}
	return stat.StdDev(v, nil)
}

// Median returns the median of the finite values in xs. For an even count
// the two middle values are averaged. NaN when xs has no finite values.
func Median(xs []float64) float64 {
	v := Finite(xs)
	n := len(v)
	if n == 0 {
		return math.NaN()
	}
	sort.Float64s(v)
	if n%2 == 1 {
		return v[n/2]
	}
	return (v[n/2-1] + v[n/2]) / 2
}

// CountAbove returns how many finite values satisfy |x| > threshold.
func CountAbove(xs []float64, threshold float64) int {
	n := 0
	for _, x := range xs {
		if !math.IsNaN(x) && math.Abs(x) > threshold {
			n++
		}
	}
	return n
}

// FractionBelow returns the share (0..1) of finite values with
// |x| < threshold, or NaN when xs has no finite values.
func FractionBelow(xs []float64, threshold float64) float64 {
	total, below := 0, 0
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		total++
		if math.Abs(x) < threshold {
			below++
		}
	}
	if total == 0 {
		return math.NaN()
	}
	return float64(below) / float64(total)
}
