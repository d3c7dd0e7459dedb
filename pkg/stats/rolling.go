package stats

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// RollingMean returns, for every index i, the mean of the finite values
// whose timestamps fall in the trailing window (times[i]-window, times[i]].
// times must be sorted ascending. Only indices <= i are considered, so rows
// sharing a timestamp see only their predecessors. The result is NaN where
// the window holds no finite value.
func RollingMean(times []time.Time, values []float64, window time.Duration) []float64 {
	return rolling(times, values, window, 1, func(v []float64) float64 {
		return stat.Mean(v, nil)
	})
}

// RollingStd is RollingMean for the sample standard deviation. Windows
// with fewer than two finite values yield NaN.
func RollingStd(times []time.Time, values []float64, window time.Duration) []float64 {
	return rolling(times, values, window, 2, func(v []float64) float64 {
		return stat.StdDev(v, nil)
	})
}

func rolling(times []time.Time, values []float64, window time.Duration, minPeriods int, agg func([]float64) float64) []float64 {
	out := make([]float64, len(values))
	buf := make([]float64, 0, 64)
	start := 0
	for i := range values {
		lower := times[i].Add(-window)
		for start < i && !times[start].After(lower) {
			start++
		}
		buf = buf[:0]
		for j := start; j <= i; j++ {
			if x := values[j]; !math.IsNaN(x) && !math.IsInf(x, 0) {
				buf = append(buf, x)
			}
		}
		if len(buf) < minPeriods {
			out[i] = math.NaN()
			continue
		}
		out[i] = agg(buf)
	}
	return out
}
