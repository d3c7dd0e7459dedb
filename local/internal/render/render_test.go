package render

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ntpscope/ntpscope/local/internal/analysis"
	"github.com/ntpscope/ntpscope/pkg/config"
	"github.com/ntpscope/ntpscope/pkg/ntpdata"
)

func options() Options {
	cfg := config.Default().Local
	return Options{Bins: cfg.Bins, RollingWindow: cfg.RollingWindow, StabilityWindow: cfg.StabilityWindow}
}

// input builds six hours of 64 s samples with a PPS and a LAN peer and one
// GPGGA sentence per PPS sample, so every chart has data.
func input() analysis.Input {
	t0 := ntpdata.MJDTime(60000, 0)
	var in analysis.Input
	for i := 0; i < 340; i++ {
		ts := t0.Add(time.Duration(i) * 64 * time.Second)
		x := float64(i)
		in.Loop = append(in.Loop, ntpdata.LoopSample{
			Time: ts, Offset: 2e-6 * math.Sin(x/7), Frequency: -12 + 0.1*math.Cos(x/11), Jitter: 5e-7 + 1e-7*math.Sin(x/3),
		})
		in.Peer = append(in.Peer,
			ntpdata.PeerSample{Time: ts, Peer: "127.127.20.0", Offset: 1e-6 * math.Cos(x/5), Jitter: 2e-7},
			ntpdata.PeerSample{Time: ts, Peer: "192.168.1.1", Offset: 1e-4 * math.Sin(x/9), Jitter: 2e-5 + 1e-6*math.Cos(x)},
		)
		if i%2 == 0 {
			in.Clock = append(in.Clock, ntpdata.ClockSample{
				Time: ts.Add(time.Duration(200+i%50) * time.Millisecond), RefClock: "127.127.20.0",
				Rest: fmt.Sprintf("$GPGGA,%06d.00,4807.038,N", i),
			})
		}
	}
	return in
}

func TestAll_WritesEveryChart(t *testing.T) {
	dir := t.TempDir()
	res := analysis.Analyze(input(), config.Default().Local)

	written := All(res, options(), dir)
	want := []string{
		FileLoopOffset, FileLoopFrequency, FilePeerOffset, FilePeerJitter, FileNMEAvsPPS,
		FileCorrelation, FileOffsetJitter, FileFreqHistogram, FileHourHeatmap,
		FileNMEAHistogram, FileStability, FileDashboard,
	}
	if len(written) != len(want) {
		t.Fatalf("written: got %v, want %d files", written, len(want))
	}
	for i, f := range want {
		if written[i] != f {
			t.Errorf("written[%d]: got %s, want %s", i, written[i], f)
		}
		if info, err := os.Stat(filepath.Join(dir, f)); err != nil || info.Size() == 0 {
			t.Errorf("%s: missing or empty (%v)", f, err)
		}
	}
}

func TestAll_NoNMEAHistogramWithoutDeltas(t *testing.T) {
	in := input()
	in.Clock = nil
	res := analysis.Analyze(in, config.Default().Local)

	for _, f := range All(res, options(), t.TempDir()) {
		if f == FileNMEAHistogram {
			t.Errorf("%s written without NMEA messages", f)
		}
	}
}

func TestAll_EmptyInput(t *testing.T) {
	res := analysis.Analyze(analysis.Input{}, config.Default().Local)
	if written := All(res, options(), t.TempDir()); len(written) != 0 {
		t.Errorf("written: got %v, want none", written)
	}
}
