package compute

import (
	"math"
	"sort"

	"github.com/ntpscope/ntpscope/pkg/stats"
	"github.com/ntpscope/ntpscope/pkg/types"
)

// Sample is one offset measurement attributed to a source.
type Sample struct {
	Source string
	Group  string  // country code for pool monitors, empty for local peers
	Offset float64 // seconds
	RTT    float64 // milliseconds, NaN when unknown
}

// Engine aggregates samples per source and scores them with Params.
type Engine struct {
	params Params

	order  []string
	groups map[string]string
	offs   map[string][]float64
	rtts   map[string][]float64
}

// NewEngine returns an empty Engine scoring with p.
func NewEngine(p Params) *Engine {
	return &Engine{
		params: p,
		groups: make(map[string]string),
		offs:   make(map[string][]float64),
		rtts:   make(map[string][]float64),
	}
}

// Add records one sample. A sample with a NaN offset registers its source
// but adds no value, so a source with only NaN offsets is still scored
// (with zero samples and a NaN score).
func (e *Engine) Add(s Sample) {
	if _, ok := e.offs[s.Source]; !ok {
		e.order = append(e.order, s.Source)
		e.groups[s.Source] = s.Group
		e.offs[s.Source] = nil
	}
	if math.IsNaN(s.Offset) {
		return
	}
	e.offs[s.Source] = append(e.offs[s.Source], s.Offset)
	e.rtts[s.Source] = append(e.rtts[s.Source], s.RTT)
}

// Sources returns one score per source, sorted by Score descending.
// Sources with a NaN score sort last, in order of first appearance.
func (e *Engine) Sources() []types.SourceScore {
	out := make([]types.SourceScore, 0, len(e.order))
	for _, id := range e.order {
		offs := e.offs[id]
		in := Input{
			MeanAbsOffset: stats.MeanAbs(offs),
			Jitter:        stats.StdDev(offs),
			MedianRTT:     math.NaN(),
			Samples:       stats.Count(offs),
			Outliers:      stats.CountAbove(offs, e.params.Thresholds.Offset),
		}
		if e.params.UsesLatency() {
			in.MedianRTT = stats.Median(e.rtts[id])
		}
		res := e.params.Compute(in)
		out = append(out, types.SourceScore{
			ID:             id,
			Group:          e.groups[id],
			Samples:        in.Samples,
			Outliers:       in.Outliers,
			MeanAbsOffset:  in.MeanAbsOffset,
			Jitter:         in.Jitter,
			MedianRTT:      in.MedianRTT,
			Accuracy:       res.Accuracy,
			Stability:      res.Stability,
			Latency:        res.Latency,
			OutlierPenalty: res.OutlierPenalty,
			Score:          res.Score,
		})
	}
	SortSources(out)
	return out
}

// Groups returns per-group aggregates over the scored sources: the mean
// source score (NaN scores skipped) and the share of the group's samples
// with |offset| below the offset threshold. Sorted by Score descending.
// Sources with an empty group are left out.
func (e *Engine) Groups(sources []types.SourceScore) []types.GroupScore {
	byGroup := make(map[string]*types.GroupScore)
	scores := make(map[string][]float64)
	offs := make(map[string][]float64)
	var order []string
	for _, id := range e.order {
		g := e.groups[id]
		if g == "" {
			continue
		}
		if _, ok := byGroup[g]; !ok {
			byGroup[g] = &types.GroupScore{ID: g}
			order = append(order, g)
		}
		gs := byGroup[g]
		gs.Sources++
		gs.Samples += stats.Count(e.offs[id])
		offs[g] = append(offs[g], e.offs[id]...)
	}
	for _, s := range sources {
		if s.Group != "" {
			scores[s.Group] = append(scores[s.Group], s.Score)
		}
	}

	out := make([]types.GroupScore, 0, len(order))
	for _, g := range order {
		gs := byGroup[g]
		gs.Score = stats.Mean(scores[g])
		gs.CompliancePct = stats.FractionBelow(offs[g], e.params.Thresholds.Offset) * 100
		out = append(out, *gs)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return lessDesc(out[i].Score, out[j].Score, out[i].ID, out[j].ID)
	})
	return out
}

// SortSources orders sources by Score descending with NaN scores last.
func SortSources(s []types.SourceScore) {
	sort.SliceStable(s, func(i, j int) bool {
		return lessDesc(s[i].Score, s[j].Score, "", "")
	})
}

// lessDesc orders a before b when it is larger. NaN sorts after every
// number; ties fall back to the id when one is given.
func lessDesc(a, b float64, ida, idb string) bool {
	an, bn := math.IsNaN(a), math.IsNaN(b)
	switch {
	case an && bn:
		return ida < idb
	case an:
		return false
	case bn:
		return true
	case a != b:
		return a > b
	default:
		return ida < idb
	}
}
