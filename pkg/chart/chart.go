package chart

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
)

// ErrNoData is returned when a chart has no finite values to draw.
var ErrNoData = errors.New("chart: no data")

// Size is the rendered size of a figure.
type Size struct {
	Width, Height vg.Length
}

// Figure sizes, in inches as the reports have always used them.
var (
	Wide      = Size{12 * vg.Inch, 6 * vg.Inch}
	Medium    = Size{10 * vg.Inch, 6 * vg.Inch}
	Compact   = Size{8 * vg.Inch, 6 * vg.Inch}
	Square    = Size{7 * vg.Inch, 6 * vg.Inch}
	Narrow    = Size{6 * vg.Inch, 6 * vg.Inch}
	Dashboard = Size{20 * vg.Inch, 12 * vg.Inch}
)

// Named colors used across the reports.
var (
	Black     = color.RGBA{A: 255}
	Red       = color.RGBA{R: 220, G: 20, B: 20, A: 255}
	DarkRed   = color.RGBA{R: 139, A: 255}
	SteelBlue = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	Purple    = color.RGBA{R: 128, B: 128, A: 255}
	Blue      = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	Orange    = color.RGBA{R: 255, G: 127, B: 14, A: 255}
)

// TimeFormat is the tick label layout of time axes.
const TimeFormat = "01-02 15:04"

// New returns a plot with a title, axis labels and a background grid.
func New(title, xlabel, ylabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())
	return p
}

// Save renders p as a PNG (or any format gonum/plot infers from the file
// extension) at the given size.
func Save(p *plot.Plot, size Size, path string) error {
	if err := p.Save(size.Width, size.Height, path); err != nil {
		return fmt.Errorf("chart: save %s: %w", path, err)
	}
	return nil
}

// TimeAxis formats the X axis of p as wall-clock time.
func TimeAxis(p *plot.Plot) {
	p.X.Tick.Marker = plot.TimeTicks{Format: TimeFormat}
}

// RotateX turns the X tick labels vertical, for long nominal names.
func RotateX(p *plot.Plot) {
	p.X.Tick.Label.Rotation = math.Pi / 2
	p.X.Tick.Label.XAlign = text.XRight
	p.X.Tick.Label.YAlign = text.YCenter
}

// WindowLabel renders a rolling window length the way chart legends show
// it: "1h", "10min", or Go duration syntax for anything finer.
func WindowLabel(d time.Duration) string {
	switch {
	case d > 0 && d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d > 0 && d%time.Minute == 0:
		return fmt.Sprintf("%dmin", d/time.Minute)
	default:
		return d.String()
	}
}

// Unix converts times to fractional Unix seconds, the X unit of time axes.
func Unix(ts []time.Time) []float64 {
	out := make([]float64, len(ts))
	for i, t := range ts {
		out[i] = float64(t.UnixNano()) / 1e9
	}
	return out
}

// Constant returns n copies of v.
func Constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// finiteXYs pairs xs with ys, dropping any point with a non-finite
// coordinate.
func finiteXYs(xs, ys []float64) plotter.XYs {
	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	out := make(plotter.XYs, 0, n)
	for i := 0; i < n; i++ {
		if finite(xs[i]) && finite(ys[i]) {
			out = append(out, plotter.XY{X: xs[i], Y: ys[i]})
		}
	}
	return out
}

func finiteValues(vs []float64) plotter.Values {
	out := make(plotter.Values, 0, len(vs))
	for _, v := range vs {
		if finite(v) {
			out = append(out, v)
		}
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func withAlpha(c color.Color, a uint8) color.Color {
	r, g, b, _ := c.RGBA()
	return color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: a}
}
