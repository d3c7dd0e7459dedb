package types

import "time"

// Kind identifies which analyser produced a report.
type Kind string

const (
	// KindPool is the NTP pool monitor CSV analysis.
	KindPool Kind = "pool"
	// KindLocal is the local ntpd loopstats/peerstats/clockstats analysis.
	KindLocal Kind = "local"
)

// Report is the result of one analysis run.
type Report struct {
	Kind        Kind
	GeneratedAt time.Time

	// Inputs lists the files the report was built from.
	Inputs []string

	// Samples is the number of rows analysed after cleaning.
	Samples int

	// Dropped is the number of input rows removed by cleaning
	// (missing offsets, excluded monitors, unparseable timestamps).
	Dropped int

	// Outliers is the number of samples whose |offset| exceeded the
	// configured offset threshold.
	Outliers int

	// Sources holds one composite score per monitor (pool) or peer (local),
	// sorted by Score descending with NaN scores last.
	Sources []SourceScore

	// Groups holds per-country aggregates. Empty for local reports.
	Groups []GroupScore

	// Charts lists the file names written to the output directory.
	Charts []string
}

// SourceScore is the composite quality score of one monitor or peer.
// Float fields may be NaN when a statistic is undefined (e.g. the jitter of
// a source with a single sample).
type SourceScore struct {
	ID    string
	Group string

	Samples  int
	Outliers int

	MeanAbsOffset float64 // seconds
	Jitter        float64 // seconds, sample std of offset
	MedianRTT     float64 // milliseconds; NaN when not scored

	Accuracy       float64
	Stability      float64
	Latency        float64 // NaN when latency is not part of the score
	OutlierPenalty float64
	Score          float64
}

// OutlierPct returns the share of samples flagged as outliers, 0–100.
func (s SourceScore) OutlierPct() float64 {
	if s.Samples == 0 {
		return 0
	}
	return float64(s.Outliers) / float64(s.Samples) * 100
}

// GroupScore aggregates sources sharing a group key (a country code).
type GroupScore struct {
	ID      string
	Sources int
	Samples int

	// Score is the mean composite score of the group's sources.
	Score float64

	// CompliancePct is the share of the group's samples whose |offset|
	// is below the offset threshold, 0–100.
	CompliancePct float64
}
