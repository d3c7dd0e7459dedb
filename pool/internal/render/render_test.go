package render

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ntpscope/ntpscope/pkg/config"
	"github.com/ntpscope/ntpscope/pkg/ntpdata"
	"github.com/ntpscope/ntpscope/pool/internal/analysis"
)

func options() Options {
	cfg := config.Default().Pool
	return Options{Bins: cfg.Bins, TopN: cfg.TopN, OffsetThreshold: cfg.Thresholds.Offset, RollingWindow: cfg.RollingWindow}
}

func samples() []ntpdata.MonitorSample {
	base := time.Date(2025, 12, 8, 0, 0, 0, 0, time.UTC)
	monitors := []string{"deams1", "deber2", "usnyc1", "jptyo1"}
	var out []ntpdata.MonitorSample
	for i := 0; i < 48; i++ {
		out = append(out, ntpdata.MonitorSample{
			Time:        base.Add(time.Duration(i) * 30 * time.Minute),
			MonitorName: monitors[i%len(monitors)],
			Offset:      0.004 * math.Sin(float64(i)),
			RTT:         20 + float64(i%7)*10,
			Score:       19 + math.Cos(float64(i)),
		})
	}
	return out
}

func TestAll_WritesEveryChart(t *testing.T) {
	dir := t.TempDir()
	res := analysis.Analyze(samples(), config.Default().Pool)

	written := All(res, options(), dir)

	want := []string{
		FileOffsetVsTime, FileOffsetHistogram, FileRTTVsOffset, FileOffsetByCountry,
		FileRTTByCountry, FileScoreVsTime, FileCorrelation, FileOffsetByHour,
		FileMonitorLeaderboard, FileCountryLeaderboard, FileCompliance, FileDashboard,
	}
	if len(written) != len(want) {
		t.Fatalf("written: got %v, want %d files", written, len(want))
	}
	for i, f := range want {
		if written[i] != f {
			t.Errorf("written[%d]: got %s, want %s", i, written[i], f)
		}
		info, err := os.Stat(filepath.Join(dir, f))
		if err != nil || info.Size() == 0 {
			t.Errorf("%s: missing or empty (%v)", f, err)
		}
	}
}

func TestAll_EmptyResultWritesNothing(t *testing.T) {
	dir := t.TempDir()
	res := analysis.Analyze(nil, config.Default().Pool)

	if written := All(res, options(), dir); len(written) != 0 {
		t.Errorf("written: got %v, want none", written)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("dir has %d entries, want 0", len(entries))
	}
}
