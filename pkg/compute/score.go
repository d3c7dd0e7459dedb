package compute

import "math"

// Weights are the factor weights of the composite score.
// A zero Latency weight removes the latency factor entirely.
type Weights struct {
	Accuracy  float64 `yaml:"accuracy"`
	Stability float64 `yaml:"stability"`
	Latency   float64 `yaml:"latency"`
	Outlier   float64 `yaml:"outlier"`
}

// Thresholds normalise the raw statistics into factors.
// Offset and Jitter are in seconds, RTT in milliseconds.
type Thresholds struct {
	Offset float64 `yaml:"offset"`
	Jitter float64 `yaml:"jitter"`
	RTT    float64 `yaml:"rtt"`
}

// Params bundles weights and thresholds for one analyser.
type Params struct {
	Weights    Weights
	Thresholds Thresholds
}

// PoolParams scores NTP pool monitors: 10 ms offset and jitter, 100 ms RTT.
var PoolParams = Params{
	Weights:    Weights{Accuracy: 0.4, Stability: 0.3, Latency: 0.2, Outlier: 0.1},
	Thresholds: Thresholds{Offset: 0.010, Jitter: 0.010, RTT: 100},
}

// LocalParams scores the peers of a local stratum-1 ntpd: 50 µs offset and
// 20 µs jitter, no latency factor.
var LocalParams = Params{
	Weights:    Weights{Accuracy: 0.5, Stability: 0.4, Outlier: 0.1},
	Thresholds: Thresholds{Offset: 50e-6, Jitter: 20e-6},
}

// Input holds the per-source statistics fed into the score formula.
type Input struct {
	// MeanAbsOffset is the mean of |offset| in seconds.
	MeanAbsOffset float64

	// Jitter is the sample standard deviation of offset in seconds.
	// NaN for a source with a single sample, which makes the score NaN.
	Jitter float64

	// MedianRTT is the median round-trip time in milliseconds.
	// Ignored when the latency weight is zero.
	MedianRTT float64

	Samples  int
	Outliers int
}

// Output is the result of the score calculation.
type Output struct {
	Accuracy       float64
	Stability      float64
	Latency        float64 // NaN when the latency factor is disabled
	OutlierPenalty float64
	Score          float64
}

// Compute calculates the composite score for one source:
//
//	accuracy  = 1 - mean_abs_offset / offset_threshold
//	stability = 1 - jitter / jitter_threshold
//	latency   = 1 - median_rtt / rtt_threshold
//	penalty   = outliers / samples
func (p Params) Compute(in Input) Output {
	w, th := p.Weights, p.Thresholds

	out := Output{
		Accuracy:  1 - in.MeanAbsOffset/th.Offset,
		Stability: 1 - in.Jitter/th.Jitter,
		Latency:   math.NaN(),
	}
	if in.Samples > 0 {
		out.OutlierPenalty = float64(in.Outliers) / float64(in.Samples)
	} else {
		out.OutlierPenalty = math.NaN()
	}

	score := w.Accuracy*out.Accuracy + w.Stability*out.Stability - w.Outlier*out.OutlierPenalty
	if w.Latency != 0 {
		out.Latency = 1 - in.MedianRTT/th.RTT
		score += w.Latency * out.Latency
	}
	out.Score = score
	return out
}

// UsesLatency reports whether the latency factor contributes to the score.
func (p Params) UsesLatency() bool { return p.Weights.Latency != 0 }
