// Package render draws the pool report charts and the dashboard.
package render

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"

	"github.com/ntpscope/ntpscope/pkg/chart"
	"github.com/ntpscope/ntpscope/pkg/types"
	"github.com/ntpscope/ntpscope/pool/internal/analysis"
)

// Chart files, in the order they are written.
const (
	FileOffsetVsTime       = "offset_vs_time_filtered.png"
	FileOffsetHistogram    = "offset_histogram_filtered.png"
	FileRTTVsOffset        = "rtt_vs_offset_filtered.png"
	FileOffsetByCountry    = "offset_boxplot_per_country_filtered.png"
	FileRTTByCountry       = "rtt_vs_country_filtered.png"
	FileScoreVsTime        = "score_vs_time_filtered.png"
	FileCorrelation        = "correlation_matrix_with_country_hour.png"
	FileOffsetByHour       = "offset_vs_hour_filtered.png"
	FileMonitorLeaderboard = "monitor_score_leaderboard.png"
	FileCountryLeaderboard = "country_score_leaderboard.png"
	FileCompliance         = "country_compliance_summary.png"
	FileDashboard          = "ntp_dashboard_extended.png"
)

// Options control chart content.
type Options struct {
	Bins            int
	TopN            int
	OffsetThreshold float64 // seconds
	RollingWindow   time.Duration
}

type figure struct {
	file  string
	size  chart.Size
	build func() (*plot.Plot, error)
}

// All renders every chart of res into dir and returns the file names
// written. A chart that has no data or fails to render is logged and
// skipped.
func All(res *analysis.Result, opts Options, dir string) []string {
	ms := opts.OffsetThreshold * 1000
	figures := []figure{
		{FileOffsetVsTime, chart.Wide, func() (*plot.Plot, error) {
			return offsetVsTime(res, opts, "NTP Offset vs Time, Rolling Mean", "Offset (seconds)", 100)
		}},
		{FileOffsetHistogram, chart.Compact, func() (*plot.Plot, error) {
			return chart.Histogram("Offset Distribution", "Offset (seconds)", offsets(res), opts.Bins, chart.SteelBlue)
		}},
		{FileRTTVsOffset, chart.Compact, func() (*plot.Plot, error) {
			return chart.Scatter("RTT vs Offset", "RTT (ms)", "Offset (seconds)", rtts(res), offsets(res), chart.Blue)
		}},
		{FileOffsetByCountry, chart.Wide, func() (*plot.Plot, error) {
			return chart.BoxPlots("Offset Distribution by Country Code", "Country Code", "Offset (seconds)", res.CountryNames, res.CountryOffsets)
		}},
		{FileRTTByCountry, chart.Medium, func() (*plot.Plot, error) {
			return chart.BoxPlots("RTT Distribution by Country Code", "Country Code", "RTT (ms)", res.CountryNames, res.CountryRTTs)
		}},
		{FileScoreVsTime, chart.Wide, func() (*plot.Plot, error) {
			return scoreVsTime(res)
		}},
		{FileCorrelation, chart.Square, func() (*plot.Plot, error) {
			return correlation(res, "Correlation Matrix (with Country + Hour of Day)")
		}},
		{FileOffsetByHour, chart.Wide, func() (*plot.Plot, error) {
			return chart.BoxPlots("Offset Distribution by Hour of Day", "Hour of Day", "Offset (seconds)", res.HourNames, res.HourOffsets)
		}},
		{FileMonitorLeaderboard, chart.Wide, func() (*plot.Plot, error) {
			return monitorBars(res.Scores, "Monitor Score Leaderboard", "Composite Score")
		}},
		{FileCountryLeaderboard, chart.Medium, func() (*plot.Plot, error) {
			return countryBars(res.Countries, "Country-level Monitor Score Leaderboard", "Average Composite Score")
		}},
		{FileCompliance, chart.Medium, func() (*plot.Plot, error) {
			return complianceBars(res.Compliance, fmt.Sprintf("Compliance Threshold per Country (Offset < %.0fms)", ms))
		}},
	}

	var written []string
	for _, f := range figures {
		if save(f.file, dir, func(path string) error {
			p, err := f.build()
			if err != nil {
				return err
			}
			return chart.Save(p, f.size, path)
		}) {
			written = append(written, f.file)
		}
	}

	if save(FileDashboard, dir, func(path string) error { return dashboard(res, opts, path) }) {
		written = append(written, FileDashboard)
	}
	return written
}

// save runs draw for dir/file and reports whether the file was written.
func save(file, dir string, draw func(path string) error) bool {
	err := draw(filepath.Join(dir, file))
	switch {
	case errors.Is(err, chart.ErrNoData):
		slog.Warn("render: chart skipped, no data", "file", file)
		return false
	case err != nil:
		slog.Error("render: chart failed", "file", file, "err", err)
		return false
	}
	slog.Debug("render: chart written", "file", file)
	return true
}

// dashboard draws the 2×3 summary grid. Panels without data stay empty.
func dashboard(res *analysis.Result, opts Options, path string) error {
	ms := opts.OffsetThreshold * 1000
	panels := []func() (*plot.Plot, error){
		func() (*plot.Plot, error) { return offsetVsTime(res, opts, "Offset vs Time", "Offset (s)", 75) },
		func() (*plot.Plot, error) {
			return chart.BoxPlots("RTT Distribution by Country", "Country", "RTT (ms)", res.CountryNames, res.CountryRTTs)
		},
		func() (*plot.Plot, error) {
			return monitorBars(res.TopScores(opts.TopN), fmt.Sprintf("Top %d Monitor Scores", opts.TopN), "Score")
		},
		func() (*plot.Plot, error) {
			return complianceBars(res.Compliance, fmt.Sprintf("Compliance per Country (<%.0fms Offset)", ms))
		},
		func() (*plot.Plot, error) {
			return chart.BoxPlots("Offset Distribution by Hour of Day", "Hour", "Offset (s)", res.HourNames, res.HourOffsets)
		},
		func() (*plot.Plot, error) { return correlation(res, "Correlation Matrix (Country + Hour)") },
	}

	tiles := make([]*plot.Plot, len(panels))
	drawn := 0
	for i, build := range panels {
		p, err := build()
		if errors.Is(err, chart.ErrNoData) {
			continue
		}
		if err != nil {
			return err
		}
		tiles[i] = p
		drawn++
	}
	if drawn == 0 {
		return chart.ErrNoData
	}
	return chart.SaveGrid([][]*plot.Plot{tiles[:3], tiles[3:]}, chart.Dashboard, path)
}

func offsetVsTime(res *analysis.Result, opts Options, title, ylabel string, alpha uint8) (*plot.Plot, error) {
	x := chart.Unix(res.Times)
	return chart.TimeChart(title, ylabel, true,
		chart.TimeSeries{Name: "Offset samples", X: x, Y: res.Offsets, Color: chart.Blue, Alpha: alpha},
		chart.TimeSeries{
			Name:  fmt.Sprintf("Rolling mean (%s)", chart.WindowLabel(opts.RollingWindow)),
			X:     x,
			Y:     res.Rolling,
			Color: chart.Red,
			Line:  true,
			Width: 2,
		},
	)
}

func scoreVsTime(res *analysis.Result) (*plot.Plot, error) {
	ts := make([]time.Time, len(res.Samples))
	ys := make([]float64, len(res.Samples))
	for i, s := range res.Samples {
		ts[i] = s.Time
		ys[i] = s.Score
	}
	return chart.TimeChart("Score vs Time", "Score", false,
		chart.TimeSeries{X: chart.Unix(ts), Y: ys, Color: chart.DarkRed, Alpha: 150})
}

func correlation(res *analysis.Result, title string) (*plot.Plot, error) {
	m := res.Correlation
	return chart.Heatmap(title, m.Labels, m.Labels, m.Values, 0)
}

func monitorBars(scores []types.SourceScore, title, ylabel string) (*plot.Plot, error) {
	names := make([]string, len(scores))
	vals := make([]float64, len(scores))
	for i, s := range scores {
		names[i] = s.ID
		vals[i] = s.Score
	}
	p, err := chart.Bars(title, "Monitor", ylabel, names, vals, chart.Viridis)
	if err != nil {
		return nil, err
	}
	chart.RotateX(p)
	return p, nil
}

func countryBars(groups []types.GroupScore, title, ylabel string) (*plot.Plot, error) {
	names := make([]string, len(groups))
	vals := make([]float64, len(groups))
	for i, g := range groups {
		names[i] = g.ID
		vals[i] = g.Score
	}
	return chart.Bars(title, "Country Code", ylabel, names, vals, chart.Plasma)
}

func complianceBars(groups []types.GroupScore, title string) (*plot.Plot, error) {
	names := make([]string, len(groups))
	vals := make([]float64, len(groups))
	for i, g := range groups {
		names[i] = g.ID
		vals[i] = g.CompliancePct
	}
	return chart.Bars(title, "Country Code", "Compliance (%)", names, vals, chart.CoolWarm)
}

func offsets(res *analysis.Result) []float64 {
	out := make([]float64, len(res.Samples))
	for i, s := range res.Samples {
		out[i] = s.Offset
	}
	return out
}

func rtts(res *analysis.Result) []float64 {
	out := make([]float64, len(res.Samples))
	for i, s := range res.Samples {
		out[i] = s.RTT
	}
	return out
}
