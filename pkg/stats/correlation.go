package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Matrix is a labelled square matrix, e.g. a correlation matrix.
type Matrix struct {
	Labels []string
	Values [][]float64
}

// At returns the value at row i, column j.
func (m Matrix) At(i, j int) float64 { return m.Values[i][j] }

// Correlation returns the Pearson correlation matrix of the given columns.
// Each pair is computed over the rows where both columns are finite; a pair
// with fewer than two such rows or zero variance yields NaN. All columns
// must have the same length.
func Correlation(labels []string, columns [][]float64) Matrix {
	n := len(columns)
	m := Matrix{Labels: labels, Values: make([][]float64, n)}
	for i := range m.Values {
		m.Values[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			r := pairwisePearson(columns[i], columns[j])
			m.Values[i][j] = r
			m.Values[j][i] = r
		}
	}
	return m
}

func pairwisePearson(x, y []float64) float64 {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for k := 0; k < n; k++ {
		if finite(x[k]) && finite(y[k]) {
			xs = append(xs, x[k])
			ys = append(ys, y[k])
		}
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	if stat.Variance(xs, nil) == 0 || stat.Variance(ys, nil) == 0 {
		return math.NaN()
	}
	r := stat.Correlation(xs, ys, nil)
	// Clamp rounding noise so a column correlates with itself at exactly 1.
	return math.Max(-1, math.Min(1, r))
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
