package chart

import (
	"errors"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Points returns a scatter of (xs[i], ys[i]) drawn as small translucent
// dots. alpha is the 0–255 opacity of the dots.
func Points(xs, ys []float64, c color.Color, alpha uint8) (*plotter.Scatter, error) {
	xys := finiteXYs(xs, ys)
	if len(xys) == 0 {
		return nil, ErrNoData
	}
	s, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, err
	}
	s.GlyphStyle.Color = withAlpha(c, alpha)
	s.GlyphStyle.Radius = vg.Points(1.5)
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	return s, nil
}

// Markers is Points with larger ring markers, for sparse event series.
func Markers(xs, ys []float64, c color.Color) (*plotter.Scatter, error) {
	s, err := Points(xs, ys, c, 255)
	if err != nil {
		return nil, err
	}
	s.GlyphStyle.Radius = vg.Points(3)
	s.GlyphStyle.Shape = draw.RingGlyph{}
	return s, nil
}

// Line returns a polyline through the finite points of xs and ys.
func Line(xs, ys []float64, c color.Color, width vg.Length) (*plotter.Line, error) {
	xys := finiteXYs(xs, ys)
	if len(xys) == 0 {
		return nil, ErrNoData
	}
	l, err := plotter.NewLine(xys)
	if err != nil {
		return nil, err
	}
	l.LineStyle.Color = c
	l.LineStyle.Width = width
	return l, nil
}

// ZeroLine returns a thin horizontal reference line at y = 0.
func ZeroLine() *plotter.Function {
	f := plotter.NewFunction(func(float64) float64 { return 0 })
	f.LineStyle.Color = Black
	f.LineStyle.Width = vg.Points(0.8)
	return f
}

// Histogram returns a plot of the distribution of values in n bins.
func Histogram(title, xlabel string, values []float64, bins int, fill color.Color) (*plot.Plot, error) {
	vs := finiteValues(values)
	if len(vs) == 0 {
		return nil, ErrNoData
	}
	h, err := plotter.NewHist(vs, bins)
	if err != nil {
		return nil, err
	}
	h.FillColor = fill
	h.LineStyle.Color = Black
	h.LineStyle.Width = vg.Points(0.5)

	p := New(title, xlabel, "Count")
	p.Add(h)
	return p, nil
}

// Scatter returns a plot of ys against xs.
func Scatter(title, xlabel, ylabel string, xs, ys []float64, c color.Color) (*plot.Plot, error) {
	s, err := Points(xs, ys, c, 150)
	if err != nil {
		return nil, err
	}
	p := New(title, xlabel, ylabel)
	p.Add(s)
	return p, nil
}

// TimeSeries describes one series of a time chart.
type TimeSeries struct {
	Name   string
	X      []float64 // Unix seconds
	Y      []float64
	Color  color.Color
	Line   bool    // draw a line instead of dots
	Marker bool    // draw ring markers instead of dots
	Width  float64 // line width in points, default 1
	Alpha  uint8   // dot opacity, default 100
}

// TimeChart overlays the given series on a time axis. Series without
// finite points are skipped; ErrNoData is returned when none remain.
// A legend is shown when any series is named.
func TimeChart(title, ylabel string, zero bool, series ...TimeSeries) (*plot.Plot, error) {
	p := New(title, "Time", ylabel)
	TimeAxis(p)

	drawn := 0
	for _, s := range series {
		var (
			thumb plot.Thumbnailer
			err   error
		)
		switch {
		case s.Line:
			w := s.Width
			if w == 0 {
				w = 1
			}
			var l *plotter.Line
			if l, err = Line(s.X, s.Y, s.Color, vg.Points(w)); err == nil {
				p.Add(l)
				thumb = l
			}
		case s.Marker:
			var m *plotter.Scatter
			if m, err = Markers(s.X, s.Y, s.Color); err == nil {
				p.Add(m)
				thumb = m
			}
		default:
			a := s.Alpha
			if a == 0 {
				a = 100
			}
			var d *plotter.Scatter
			if d, err = Points(s.X, s.Y, s.Color, a); err == nil {
				p.Add(d)
				thumb = d
			}
		}
		if errors.Is(err, ErrNoData) {
			continue
		}
		if err != nil {
			return nil, err
		}
		drawn++
		if s.Name != "" {
			p.Legend.Add(s.Name, thumb)
		}
	}
	if drawn == 0 {
		return nil, ErrNoData
	}
	if zero {
		p.Add(ZeroLine())
	}
	p.Legend.Top = true
	return p, nil
}
