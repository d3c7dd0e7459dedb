// Package render draws the local ntpd report charts and the dashboard.
package render

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotutil"

	"github.com/ntpscope/ntpscope/local/internal/analysis"
	"github.com/ntpscope/ntpscope/pkg/chart"
)

// Chart files, in the order they are written.
const (
	FileLoopOffset    = "loopstats_offset_vs_time.png"
	FileLoopFrequency = "loopstats_frequency_vs_time.png"
	FilePeerOffset    = "peerstats_offset_vs_time.png"
	FilePeerJitter    = "peerstats_jitter_distribution.png"
	FileNMEAvsPPS     = "nmea_vs_pps_offset.png"
	FileCorrelation   = "correlation_matrix_local_ntp.png"
	FileOffsetJitter  = "offset_vs_jitter.png"
	FileFreqHistogram = "frequency_drift_histogram.png"
	FileHourHeatmap   = "offset_by_hour_heatmap.png"
	FileNMEAHistogram = "nmea_vs_pps_histogram.png"
	FileStability     = "rolling_stability.png"
	FileDashboard     = "ntp_local_dashboard.png"
)

// Options control chart content.
type Options struct {
	Bins            int
	RollingWindow   time.Duration
	StabilityWindow time.Duration
}

type figure struct {
	file  string
	size  chart.Size
	build func() (*plot.Plot, error)
}

// All renders every chart of res into dir and returns the file names
// written. The NMEA−PPS histogram is only drawn when the deltas exist.
func All(res *analysis.Result, opts Options, dir string) []string {
	figures := []figure{
		{FileLoopOffset, chart.Wide, func() (*plot.Plot, error) {
			return loopOffset(res, opts, true)
		}},
		{FileLoopFrequency, chart.Wide, func() (*plot.Plot, error) {
			return chart.TimeChart("Frequency Drift vs Time", "Frequency Drift (ppm)", false,
				chart.TimeSeries{X: chart.Unix(res.LoopTimes), Y: res.LoopFreqs, Color: chart.Blue, Line: true})
		}},
		{FilePeerOffset, chart.Wide, func() (*plot.Plot, error) {
			return peerOffsets(res, true)
		}},
		{FilePeerJitter, chart.Compact, func() (*plot.Plot, error) {
			return peerJitter(res)
		}},
		{FileNMEAvsPPS, chart.Wide, func() (*plot.Plot, error) {
			return nmeaVsPPS(res, "NMEA vs PPS Timing", "NMEA messages", "PPS offsets")
		}},
		{FileCorrelation, chart.Square, func() (*plot.Plot, error) {
			return correlation(res, "Correlation Matrix: Offset, Frequency Drift, Jitter, PPS Offset")
		}},
		{FileOffsetJitter, chart.Compact, func() (*plot.Plot, error) {
			return chart.Scatter("Offset vs Jitter", "Offset (s)", "Jitter (s)", res.LoopOffsets, res.LoopJitters, chart.Blue)
		}},
		{FileFreqHistogram, chart.Compact, func() (*plot.Plot, error) {
			return chart.Histogram("Frequency Drift Distribution", "Frequency Drift (ppm)", res.LoopFreqs, opts.Bins, chart.SteelBlue)
		}},
		{FileHourHeatmap, chart.Narrow, func() (*plot.Plot, error) {
			values := make([][]float64, len(res.HourMeans))
			for i, v := range res.HourMeans {
				values[i] = []float64{v}
			}
			return chart.Heatmap("Average Offset by Hour of Day", res.HourNames, []string{"offset"}, values, 0)
		}},
	}
	if res.DeltaMS != nil {
		figures = append(figures, figure{FileNMEAHistogram, chart.Compact, func() (*plot.Plot, error) {
			return chart.Histogram("NMEA vs PPS Offset Distribution", "Offset (ms)", res.DeltaMS, opts.Bins, chart.DarkRed)
		}})
	}
	figures = append(figures, figure{FileStability, chart.Wide, func() (*plot.Plot, error) {
		return chart.TimeChart(
			fmt.Sprintf("Rolling Stability (%s std of offset)", chart.WindowLabel(opts.StabilityWindow)), "Std Dev (s)", false,
			chart.TimeSeries{X: chart.Unix(res.LoopTimes), Y: res.Stability, Color: chart.Purple, Line: true})
	}})

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

func dashboard(res *analysis.Result, opts Options, path string) error {
	panels := []func() (*plot.Plot, error){
		func() (*plot.Plot, error) { return loopOffset(res, opts, false) },
		func() (*plot.Plot, error) {
			return chart.TimeChart("Frequency Drift vs Time", "Frequency Drift (ppm)", false,
				chart.TimeSeries{X: chart.Unix(res.LoopTimes), Y: res.LoopFreqs, Color: chart.Blue, Alpha: 75})
		},
		func() (*plot.Plot, error) { return peerOffsets(res, false) },
		func() (*plot.Plot, error) { return peerJitter(res) },
		func() (*plot.Plot, error) { return nmeaVsPPS(res, "NMEA vs PPS Offset", "NMEA", "PPS") },
		func() (*plot.Plot, error) { return correlation(res, "Correlation Matrix") },
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

// loopOffset draws loop offsets; full adds the rolling mean and zero line.
func loopOffset(res *analysis.Result, opts Options, full bool) (*plot.Plot, error) {
	x := chart.Unix(res.LoopTimes)
	if !full {
		return chart.TimeChart("Loopstats Offset vs Time", "Offset (s)", false,
			chart.TimeSeries{X: x, Y: res.LoopOffsets, Color: chart.Blue, Alpha: 75})
	}
	return chart.TimeChart("Loopstats Offset vs Time", "Offset (s)", true,
		chart.TimeSeries{Name: "Offset samples", X: x, Y: res.LoopOffsets, Color: chart.Blue, Alpha: 100},
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

// peerOffsets draws one line per peer; markers adds ring markers on
// every sample.
func peerOffsets(res *analysis.Result, markers bool) (*plot.Plot, error) {
	var series []chart.TimeSeries
	for i, p := range res.Peers {
		x := chart.Unix(p.Times)
		c := plotutil.Color(i)
		series = append(series, chart.TimeSeries{Name: p.Peer, X: x, Y: p.Offsets, Color: c, Line: true})
		if markers {
			series = append(series, chart.TimeSeries{X: x, Y: p.Offsets, Color: c, Marker: true})
		}
	}
	return chart.TimeChart("Peer Offset vs Time", "Offset (s)", false, series...)
}

func peerJitter(res *analysis.Result) (*plot.Plot, error) {
	names := make([]string, len(res.Peers))
	groups := make([][]float64, len(res.Peers))
	for i, p := range res.Peers {
		names[i] = p.Peer
		groups[i] = p.Jitters
	}
	p, err := chart.BoxPlots("Peer Jitter Distribution", "Peer", "Jitter (s)", names, groups)
	if err != nil {
		return nil, err
	}
	chart.RotateX(p)
	return p, nil
}

func nmeaVsPPS(res *analysis.Result, title, nmea, pps string) (*plot.Plot, error) {
	return chart.TimeChart(title, "Offset (s)", false,
		chart.TimeSeries{Name: nmea, X: chart.Unix(res.NMEATimes), Y: chart.Constant(len(res.NMEATimes), 0), Color: chart.Blue, Marker: true},
		chart.TimeSeries{Name: pps, X: chart.Unix(res.PPSTimes), Y: res.PPSOffsets, Color: chart.Orange, Alpha: 128},
	)
}

func correlation(res *analysis.Result, title string) (*plot.Plot, error) {
	m := res.Correlation
	return chart.Heatmap(title, m.Labels, m.Labels, m.Values, 0)
}
