// Package chart builds the PNG charts of both reports on top of
// gonum.org/v1/plot.
//
// Builders return a *plot.Plot so the same figure can be saved on its own
// with Save or placed into a dashboard with SaveGrid. Input values that are
// NaN or infinite are dropped before plotting; a builder left with nothing
// to draw returns ErrNoData.
package chart
