// Package analysis computes the local ntpd report from loopstats,
// peerstats and clockstats: per-peer compliance scores, rolling offset
// mean and stability, NMEA versus PPS timing, hourly offset means and the
// loop/PPS correlation matrix.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ntpscope/ntpscope/pkg/compute"
	"github.com/ntpscope/ntpscope/pkg/config"
	"github.com/ntpscope/ntpscope/pkg/ntpdata"
	"github.com/ntpscope/ntpscope/pkg/stats"
	"github.com/ntpscope/ntpscope/pkg/types"
)

// CorrelationLabels name the correlation matrix columns.
var CorrelationLabels = []string{"offset", "frequency", "jitter", "pps_offset"}

// Input is the parsed content of the three ntpd statistics files.
type Input struct {
	Loop  []ntpdata.LoopSample
	Peer  []ntpdata.PeerSample
	Clock []ntpdata.ClockSample

	// Skipped counts lines whose timestamp could not be parsed.
	Skipped int
}

// PeerSeries is the peerstats history of one peer.
type PeerSeries struct {
	Peer    string
	Times   []time.Time
	Offsets []float64
	Jitters []float64
}

// Result holds everything the local report prints and draws.
type Result struct {
	// Loop series, sorted by time.
	LoopTimes   []time.Time
	LoopOffsets []float64
	LoopFreqs   []float64
	LoopJitters []float64

	// Rolling is the trailing mean of the loop offset; Stability its
	// trailing standard deviation over the shorter stability window.
	Rolling   []float64
	Stability []float64

	// Peers in order of first appearance in peerstats.
	Peers  []PeerSeries
	Scores []types.SourceScore

	NMEATimes  []time.Time
	PPSTimes   []time.Time
	PPSOffsets []float64

	// DeltaMS holds NMEA minus PPS time floored to whole milliseconds, pairing
	// each NMEA message with the PPS sample of the same index. Nil unless
	// there are at least as many PPS samples as NMEA messages.
	DeltaMS []float64

	Correlation stats.Matrix

	// Hours present in loopstats, ascending, with the mean offset of each.
	HourNames []string
	HourMeans []float64

	Samples  int
	Skipped  int
	Outliers int
}

// Analyze computes every table of the local report.
func Analyze(in Input, cfg config.LocalConfig) *Result {
	res := &Result{
		Samples: len(in.Loop) + len(in.Peer),
		Skipped: in.Skipped,
	}

	loop := append([]ntpdata.LoopSample(nil), in.Loop...)
	sort.SliceStable(loop, func(i, j int) bool { return loop[i].Time.Before(loop[j].Time) })
	for _, s := range loop {
		res.LoopTimes = append(res.LoopTimes, s.Time)
		res.LoopOffsets = append(res.LoopOffsets, s.Offset)
		res.LoopFreqs = append(res.LoopFreqs, s.Frequency)
		res.LoopJitters = append(res.LoopJitters, s.Jitter)
	}
	res.Rolling = stats.RollingMean(res.LoopTimes, res.LoopOffsets, cfg.RollingWindow)
	res.Stability = stats.RollingStd(res.LoopTimes, res.LoopOffsets, cfg.StabilityWindow)

	res.Peers = peerSeries(in.Peer)
	res.Scores = scorePeers(in.Peer, cfg.Params())
	for _, s := range res.Scores {
		res.Outliers += s.Outliers
	}

	for _, c := range in.Clock {
		if cfg.NMEASentence != "" && strings.Contains(c.Rest, cfg.NMEASentence) {
			res.NMEATimes = append(res.NMEATimes, c.Time)
		}
	}
	for _, p := range in.Peer {
		if strings.Contains(p.Peer, cfg.PPSPeer) {
			res.PPSTimes = append(res.PPSTimes, p.Time)
			res.PPSOffsets = append(res.PPSOffsets, p.Offset)
		}
	}
	res.DeltaMS = nmeaDelta(res.NMEATimes, res.PPSTimes)

	res.Correlation = correlate(in.Loop, in.Peer)
	res.HourNames, res.HourMeans = hourlyMeans(res.LoopTimes, res.LoopOffsets)
	return res
}

func peerSeries(peer []ntpdata.PeerSample) []PeerSeries {
	index := make(map[string]int)
	var out []PeerSeries
	for _, p := range peer {
		i, ok := index[p.Peer]
		if !ok {
			i = len(out)
			index[p.Peer] = i
			out = append(out, PeerSeries{Peer: p.Peer})
		}
		out[i].Times = append(out[i].Times, p.Time)
		out[i].Offsets = append(out[i].Offsets, p.Offset)
		out[i].Jitters = append(out[i].Jitters, p.Jitter)
	}
	return out
}

// scorePeers feeds peers in name order so score ties keep alphabetical
// order.
func scorePeers(peer []ntpdata.PeerSample, p compute.Params) []types.SourceScore {
	sorted := append([]ntpdata.PeerSample(nil), peer...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Peer < sorted[j].Peer })
	eng := compute.NewEngine(p)
	for _, s := range sorted {
		eng.Add(compute.Sample{Source: s.Peer, Offset: s.Offset, RTT: math.NaN()})
	}
	return eng.Sources()
}

func nmeaDelta(nmea, pps []time.Time) []float64 {
	if len(nmea) == 0 || len(pps) < len(nmea) {
		return nil
	}
	out := make([]float64, len(nmea))
	for i, t := range nmea {
		out[i] = math.Floor(float64(t.Sub(pps[i])) / float64(time.Millisecond))
	}
	return out
}

// correlate pairs loopstats rows with peerstats rows by index, both in
// file order and truncated to the shorter file, and keeps only complete
// rows. The pps_offset column takes every peerstats row, not only the PPS
// peer's.
func correlate(loop []ntpdata.LoopSample, peer []ntpdata.PeerSample) stats.Matrix {
	n := min(len(loop), len(peer))
	cols := make([][]float64, len(CorrelationLabels))
	for i := 0; i < n; i++ {
		row := []float64{loop[i].Offset, loop[i].Frequency, loop[i].Jitter, peer[i].Offset}
		if !complete(row) {
			continue
		}
		for c, v := range row {
			cols[c] = append(cols[c], v)
		}
	}
	return stats.Correlation(CorrelationLabels, cols)
}

func complete(row []float64) bool {
	for _, v := range row {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

func hourlyMeans(times []time.Time, offsets []float64) ([]string, []float64) {
	keys := make([]string, len(times))
	for i, t := range times {
		keys[i] = fmt.Sprintf("%02d", t.Hour())
	}
	g := stats.GroupBy(keys, offsets)
	names := stats.SortedKeys(keys)
	means := make([]float64, len(names))
	for i, h := range names {
		means[i] = stats.Mean(g.Values[h])
	}
	return names, means
}

// Report converts r into the shared report form.
func (r *Result) Report(inputs []string, charts []string, now time.Time) *types.Report {
	return &types.Report{
		Kind:        types.KindLocal,
		GeneratedAt: now,
		Inputs:      inputs,
		Samples:     r.Samples,
		Dropped:     r.Skipped,
		Outliers:    r.Outliers,
		Sources:     r.Scores,
		Charts:      charts,
	}
}
