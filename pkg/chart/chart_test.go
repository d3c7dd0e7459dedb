package chart

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gonum.org/v1/plot"
)

func assertPNG(t *testing.T, path string) {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if len(b) < 8 || string(b[1:4]) != "PNG" {
		t.Fatalf("%s is not a PNG (%d bytes)", path, len(b))
	}
}

func TestTimeChart_SaveWithRollingLine(t *testing.T) {
	base := time.Date(2025, 12, 8, 10, 0, 0, 0, time.UTC)
	ts := []time.Time{base, base.Add(time.Minute), base.Add(2 * time.Minute)}
	xs := Unix(ts)
	p, err := TimeChart("Offset", "Offset (s)", true,
		TimeSeries{Name: "Offset samples", X: xs, Y: []float64{0.001, math.NaN(), -0.002}, Color: Blue},
		TimeSeries{Name: "Rolling mean (1h)", X: xs, Y: []float64{0.001, 0.001, -0.0005}, Color: Red, Line: true, Width: 2},
	)
	if err != nil {
		t.Fatalf("TimeChart: %v", err)
	}
	path := filepath.Join(t.TempDir(), "offset.png")
	if err := Save(p, Wide, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	assertPNG(t, path)
}

func TestTimeChart_AllEmpty(t *testing.T) {
	_, err := TimeChart("x", "y", false, TimeSeries{X: []float64{1}, Y: []float64{math.NaN()}})
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestUnix(t *testing.T) {
	got := Unix([]time.Time{time.Unix(100, 500_000_000)})
	if got[0] != 100.5 {
		t.Errorf("Unix = %v, want 100.5", got[0])
	}
}

func TestHistogram(t *testing.T) {
	if _, err := Histogram("h", "x", []float64{math.NaN()}, 10, SteelBlue); !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
	p, err := Histogram("h", "x", []float64{1, 2, 2, 3, 3, 3}, 5, SteelBlue)
	if err != nil {
		t.Fatalf("Histogram: %v", err)
	}
	if p.Title.Text != "h" {
		t.Errorf("title = %q", p.Title.Text)
	}
}

func TestBoxPlots_SkipsEmptyGroups(t *testing.T) {
	p, err := BoxPlots("b", "Country", "RTT", []string{"at", "de"}, [][]float64{{1, 2, 3}, {math.NaN()}})
	if err != nil {
		t.Fatalf("BoxPlots: %v", err)
	}
	path := filepath.Join(t.TempDir(), "box.png")
	if err := Save(p, Compact, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	assertPNG(t, path)

	if _, err := BoxPlots("b", "", "", nil, nil); !errors.Is(err, ErrNoData) {
		t.Errorf("empty names: err = %v", err)
	}
}

func TestBars_DropsNaN(t *testing.T) {
	p, err := Bars("Leaderboard", "Monitor", "Score", []string{"a", "b", "c"}, []float64{0.9, math.NaN(), 0.1}, Viridis)
	if err != nil {
		t.Fatalf("Bars: %v", err)
	}
	path := filepath.Join(t.TempDir(), "bars.png")
	if err := Save(p, Medium, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	assertPNG(t, path)

	if _, err := Bars("x", "", "", []string{"a"}, []float64{math.NaN()}, CoolWarm); !errors.Is(err, ErrNoData) {
		t.Errorf("all NaN: err = %v", err)
	}
}

func TestHeatmap(t *testing.T) {
	names := []string{"offset", "rtt"}
	p, err := Heatmap("corr", names, names, [][]float64{{1, -0.5}, {-0.5, math.NaN()}}, 1)
	if err != nil {
		t.Fatalf("Heatmap: %v", err)
	}
	path := filepath.Join(t.TempDir(), "corr.png")
	if err := Save(p, Square, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	assertPNG(t, path)

	if _, err := Heatmap("x", nil, nil, nil, 0); !errors.Is(err, ErrNoData) {
		t.Errorf("empty: err = %v", err)
	}
	if _, err := Heatmap("x", names, names, [][]float64{{math.NaN(), math.NaN()}, {math.NaN(), math.NaN()}}, 0); !errors.Is(err, ErrNoData) {
		t.Errorf("all NaN: err = %v", err)
	}
}

func TestWindowLabel(t *testing.T) {
	for d, want := range map[time.Duration]string{
		time.Hour:        "1h",
		10 * time.Minute: "10min",
		90 * time.Second: "1m30s",
	} {
		if got := WindowLabel(d); got != want {
			t.Errorf("WindowLabel(%v): got %q, want %q", d, got, want)
		}
	}
}

func TestSaveGrid(t *testing.T) {
	a, err := Scatter("a", "x", "y", []float64{1, 2}, []float64{3, 4}, Blue)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Histogram("b", "x", []float64{1, 2, 3}, 3, DarkRed)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "dash.png")
	err = SaveGrid([][]*plot.Plot{{a, nil}, {nil, b}}, Size{Width: Compact.Width, Height: Compact.Height}, path)
	if err != nil {
		t.Fatalf("SaveGrid: %v", err)
	}
	assertPNG(t, path)

	if err := SaveGrid([][]*plot.Plot{{a}, {a, b}}, Compact, path); err == nil {
		t.Error("ragged grid: want error")
	}
}
