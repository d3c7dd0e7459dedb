package chart

import (
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// BoxPlots returns one box per category, placed at the category's index.
// Categories without finite values keep their slot but draw nothing.
func BoxPlots(title, xlabel, ylabel string, names []string, groups [][]float64) (*plot.Plot, error) {
	if len(names) == 0 {
		return nil, ErrNoData
	}
	p := New(title, xlabel, ylabel)
	drawn := 0
	for i, g := range groups {
		vs := finiteValues(g)
		if len(vs) == 0 {
			continue
		}
		b, err := plotter.NewBoxPlot(vg.Points(14), float64(i), vs)
		if err != nil {
			return nil, err
		}
		b.FillColor = withAlpha(Blue, 90)
		p.Add(b)
		drawn++
	}
	if drawn == 0 {
		return nil, ErrNoData
	}
	p.NominalX(names...)
	if len(names) > 8 {
		RotateX(p)
	}
	return p, nil
}

// Palettes for bar charts.
var (
	Viridis  = func() palette.ColorMap { return moreland.Kindlmann() }
	Plasma   = func() palette.ColorMap { return moreland.ExtendedBlackBody() }
	CoolWarm = func() palette.ColorMap { return moreland.SmoothBlueRed() }
)

// Bars returns a bar chart with one bar per name, each bar colored along
// the given color map. Bars whose value is not finite are left out.
func Bars(title, xlabel, ylabel string, names []string, values []float64, cmap func() palette.ColorMap) (*plot.Plot, error) {
	var (
		keep []string
		vals []float64
	)
	for i, n := range names {
		if i < len(values) && finite(values[i]) {
			keep = append(keep, n)
			vals = append(vals, values[i])
		}
	}
	if len(keep) == 0 {
		return nil, ErrNoData
	}

	colors := spread(cmap(), len(keep))
	p := New(title, xlabel, ylabel)
	for i, v := range vals {
		b, err := plotter.NewBarChart(plotter.Values{v}, vg.Points(12))
		if err != nil {
			return nil, err
		}
		b.XMin = float64(i)
		b.Color = colors[i]
		b.LineStyle.Width = 0
		p.Add(b)
	}
	p.NominalX(keep...)
	if len(keep) > 8 {
		RotateX(p)
	}
	return p, nil
}

// spread picks n colors from the interior of cm, skipping its extremes
// (black or white on luminance maps).
func spread(cm palette.ColorMap, n int) []color.Color {
	return cm.Palette(n + 2).Colors()[1 : n+1]
}
