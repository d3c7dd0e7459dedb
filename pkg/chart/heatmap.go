package chart

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
)

// grid adapts a row-major matrix to plotter.GridXYZ. Row 0 is drawn at the
// top, so the chart reads like the printed table.
type grid struct {
	values [][]float64
	cols   int
}

func (g grid) Dims() (c, r int) { return g.cols, len(g.values) }

func (g grid) Z(c, r int) float64 { return g.values[len(g.values)-1-r][c] }

func (g grid) X(c int) float64 { return float64(c) }

func (g grid) Y(r int) float64 { return float64(r) }

// Heatmap returns an annotated heat map of values (rows × columns) on a
// blue–red diverging palette centred on zero. The color range is ±limit;
// a zero limit uses the largest |value|. NaN cells are drawn grey and
// annotated "nan".
func Heatmap(title string, rowNames, colNames []string, values [][]float64, limit float64) (*plot.Plot, error) {
	if len(values) == 0 || len(values[0]) == 0 {
		return nil, ErrNoData
	}
	g := grid{values: values, cols: len(values[0])}
	if !anyFinite(values) {
		return nil, ErrNoData
	}

	if limit == 0 {
		for _, row := range values {
			for _, v := range row {
				if finite(v) {
					limit = math.Max(limit, math.Abs(v))
				}
			}
		}
		if limit == 0 {
			limit = 1
		}
	}

	cm := moreland.SmoothBlueRed()
	cm.SetMin(-limit)
	cm.SetMax(limit)
	hm := plotter.NewHeatMap(g, cm.Palette(255))
	hm.Min, hm.Max = -limit, limit
	hm.NaN = color.Gray{Y: 200}
	hm.Underflow = hm.Palette.Colors()[0]
	hm.Overflow = hm.Palette.Colors()[254]

	var labels plotter.XYLabels
	for r, row := range values {
		for c, v := range row {
			labels.XYs = append(labels.XYs, plotter.XY{X: float64(c), Y: float64(len(values) - 1 - r)})
			labels.Labels = append(labels.Labels, annotate(v))
		}
	}
	l, err := plotter.NewLabels(labels)
	if err != nil {
		return nil, err
	}
	for i := range l.TextStyle {
		l.TextStyle[i].XAlign = text.XCenter
		l.TextStyle[i].YAlign = text.YCenter
	}

	p := plot.New()
	p.Title.Text = title
	p.Add(hm, l)

	reversed := make([]string, len(rowNames))
	for i, n := range rowNames {
		reversed[len(rowNames)-1-i] = n
	}
	if len(colNames) > 0 {
		p.NominalX(colNames...)
	}
	if len(reversed) > 0 {
		p.NominalY(reversed...)
	}
	return p, nil
}

func annotate(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return fmt.Sprintf("%.2f", v)
}

func anyFinite(values [][]float64) bool {
	for _, row := range values {
		for _, v := range row {
			if finite(v) {
				return true
			}
		}
	}
	return false
}
