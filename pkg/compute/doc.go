// Package compute derives composite quality scores for timing sources.
//
// score.go provides the pure Params.Compute(Input) function that turns the
// per-source statistics into accuracy, stability, latency and outlier
// factors and combines them with the configured weights:
//
//	score = wA*accuracy + wS*stability + wL*latency - wO*outlier_penalty
//
// engine.go aggregates raw samples per source and per group (country code)
// and returns the scored tables sorted best first. Factors are not clamped:
// a source with a mean offset above the threshold gets a negative accuracy.
package compute
