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
var CorrelationLabels = []string{"offset", "rtt", "score", "country_encoded", "hour"}

// PeerSummary is one row of the peer summary table.
type PeerSummary struct {
	Monitor  string
	Samples  int
	Outliers int
	Jitter   float64 // NaN with fewer than two samples
}

// Result holds everything the pool report prints and draws.
type Result struct {
	// Samples are the cleaned rows in input order.
	Samples []ntpdata.MonitorSample
	Dropped int

	// Times, Offsets and Rolling are the cleaned rows sorted by time, with
	// the trailing rolling mean of the offset.
	Times   []time.Time
	Offsets []float64
	Rolling []float64

	Outliers  []ntpdata.MonitorSample
	Peers     []PeerSummary
	Scores    []types.SourceScore
	Countries []types.GroupScore // by score, descending
	// Compliance is Countries ordered by CompliancePct, descending.
	Compliance []types.GroupScore

	// Countries present, sorted, with each country's offsets and RTTs.
	CountryNames   []string
	CountryOffsets [][]float64
	CountryRTTs    [][]float64

	// Hours present, ascending, with each hour's offsets.
	HourNames   []string
	HourOffsets [][]float64

	Correlation stats.Matrix
}

// Clean drops rows without an offset, derives the country code and drops
// monitors whose name contains exclude (case-insensitive). It returns the
// kept rows and the number dropped.
func Clean(in []ntpdata.MonitorSample, exclude string) ([]ntpdata.MonitorSample, int) {
	pattern := strings.ToLower(exclude)
	out := make([]ntpdata.MonitorSample, 0, len(in))
	for _, s := range in {
		if math.IsNaN(s.Offset) {
			continue
		}
		if pattern != "" && strings.Contains(strings.ToLower(s.MonitorName), pattern) {
			continue
		}
		s.Country = CountryCode(s.MonitorName)
		out = append(out, s)
	}
	return out, len(in) - len(out)
}

// CountryCode returns the first two characters of a monitor name.
func CountryCode(monitor string) string {
	r := []rune(monitor)
	if len(r) > 2 {
		r = r[:2]
	}
	return string(r)
}

// Analyze computes every table of the pool report from raw samples.
func Analyze(raw []ntpdata.MonitorSample, cfg config.PoolConfig) *Result {
	samples, dropped := Clean(raw, cfg.Exclude)
	params := cfg.Params()
	thr := params.Thresholds.Offset

	res := &Result{Samples: samples, Dropped: dropped}

	sorted := append([]ntpdata.MonitorSample(nil), samples...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })
	res.Times = make([]time.Time, len(sorted))
	res.Offsets = make([]float64, len(sorted))
	for i, s := range sorted {
		res.Times[i] = s.Time
		res.Offsets[i] = s.Offset
	}
	res.Rolling = stats.RollingMean(res.Times, res.Offsets, cfg.RollingWindow)

	for _, s := range samples {
		if math.Abs(s.Offset) > thr {
			res.Outliers = append(res.Outliers, s)
		}
	}

	// Monitors are fed in name order so score ties keep alphabetical order.
	byMonitor := append([]ntpdata.MonitorSample(nil), samples...)
	sort.SliceStable(byMonitor, func(i, j int) bool { return byMonitor[i].MonitorName < byMonitor[j].MonitorName })
	eng := compute.NewEngine(params)
	for _, s := range byMonitor {
		eng.Add(compute.Sample{Source: s.MonitorName, Group: s.Country, Offset: s.Offset, RTT: s.RTT})
	}
	res.Scores = eng.Sources()
	res.Countries = eng.Groups(res.Scores)
	res.Compliance = append([]types.GroupScore(nil), res.Countries...)
	sort.SliceStable(res.Compliance, func(i, j int) bool {
		return res.Compliance[i].CompliancePct > res.Compliance[j].CompliancePct
	})
	res.Peers = peerSummaries(res.Scores)

	countries := make([]string, len(samples))
	hours := make([]string, len(samples))
	offsets := make([]float64, len(samples))
	rtts := make([]float64, len(samples))
	scores := make([]float64, len(samples))
	hourVals := make([]float64, len(samples))
	for i, s := range samples {
		countries[i] = s.Country
		offsets[i] = s.Offset
		rtts[i] = s.RTT
		scores[i] = s.Score
		hourVals[i] = float64(s.Time.Hour())
		hours[i] = hourName(s.Time.Hour())
	}

	res.CountryNames = stats.SortedKeys(countries)
	byCountryOff := stats.GroupBy(countries, offsets)
	byCountryRTT := stats.GroupBy(countries, rtts)
	for _, c := range res.CountryNames {
		res.CountryOffsets = append(res.CountryOffsets, byCountryOff.Values[c])
		res.CountryRTTs = append(res.CountryRTTs, byCountryRTT.Values[c])
	}

	// Two-digit names sort numerically.
	res.HourNames = stats.SortedKeys(hours)
	byHour := stats.GroupBy(hours, offsets)
	for _, h := range res.HourNames {
		res.HourOffsets = append(res.HourOffsets, byHour.Values[h])
	}

	encoded, _ := stats.LabelEncode(countries)
	res.Correlation = stats.Correlation(CorrelationLabels, [][]float64{offsets, rtts, scores, encoded, hourVals})
	return res
}

// peerSummaries derives the peer summary table from the monitor scores,
// ordered by outlier count descending, then by monitor name.
func peerSummaries(scores []types.SourceScore) []PeerSummary {
	out := make([]PeerSummary, 0, len(scores))
	for _, s := range scores {
		out = append(out, PeerSummary{Monitor: s.ID, Samples: s.Samples, Outliers: s.Outliers, Jitter: s.Jitter})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Outliers != out[j].Outliers {
			return out[i].Outliers > out[j].Outliers
		}
		return out[i].Monitor < out[j].Monitor
	})
	return out
}

func hourName(h int) string {
	return fmt.Sprintf("%02d", h)
}

// Report converts r into the shared report form.
func (r *Result) Report(inputs []string, charts []string, now time.Time) *types.Report {
	return &types.Report{
		Kind:        types.KindPool,
		GeneratedAt: now,
		Inputs:      inputs,
		Samples:     len(r.Samples),
		Dropped:     r.Dropped,
		Outliers:    len(r.Outliers),
		Sources:     r.Scores,
		Groups:      r.Countries,
		Charts:      charts,
	}
}

// TopScores returns at most n of the highest-scoring monitors.
func (r *Result) TopScores(n int) []types.SourceScore {
	if len(r.Scores) < n {
		return r.Scores
	}
	return r.Scores[:n]
}
