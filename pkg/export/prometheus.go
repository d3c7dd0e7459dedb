package export

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ntpscope/ntpscope/pkg/types"
)

const namespace = "ntpscope"

// Metrics exposes report results as Prometheus gauges.
//
// Each Observe replaces every series of the report's kind, so monitors that
// disappear from the input also disappear from the exposition.
type Metrics struct {
	reg *prometheus.Registry

	sourceScore     *prometheus.GaugeVec
	sourceAccuracy  *prometheus.GaugeVec
	sourceStability *prometheus.GaugeVec
	sourceLatency   *prometheus.GaugeVec
	sourceOffset    *prometheus.GaugeVec
	sourceJitter    *prometheus.GaugeVec
	sourceRTT       *prometheus.GaugeVec
	sourceSamples   *prometheus.GaugeVec
	sourceOutliers  *prometheus.GaugeVec

	groupScore      *prometheus.GaugeVec
	groupCompliance *prometheus.GaugeVec

	reportSamples  *prometheus.GaugeVec
	reportDropped  *prometheus.GaugeVec
	reportOutliers *prometheus.GaugeVec
	lastRun        *prometheus.GaugeVec

	runs        *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
}

// NewMetrics creates the gauges on a private registry. withRuntime adds
// the Go runtime and process collectors, which suit /metrics but not a
// textfile.
func NewMetrics(withRuntime bool) *Metrics {
	sourceLabels := []string{"kind", "source", "group"}
	gauge := func(name, help string, labels []string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	}

	m := &Metrics{
		reg: prometheus.NewRegistry(),

		sourceScore:     gauge("source_score", "Composite quality score of a monitor or peer.", sourceLabels),
		sourceAccuracy:  gauge("source_accuracy", "Accuracy factor: 1 - mean |offset| / offset threshold.", sourceLabels),
		sourceStability: gauge("source_stability", "Stability factor: 1 - jitter / jitter threshold.", sourceLabels),
		sourceLatency:   gauge("source_latency", "Latency factor: 1 - median RTT / RTT threshold.", sourceLabels),
		sourceOffset:    gauge("source_mean_abs_offset_seconds", "Mean absolute clock offset.", sourceLabels),
		sourceJitter:    gauge("source_jitter_seconds", "Sample standard deviation of the clock offset.", sourceLabels),
		sourceRTT:       gauge("source_median_rtt_milliseconds", "Median round-trip time.", sourceLabels),
		sourceSamples:   gauge("source_samples", "Samples analysed for a monitor or peer.", sourceLabels),
		sourceOutliers:  gauge("source_outliers", "Samples whose |offset| exceeded the offset threshold.", sourceLabels),

		groupScore:      gauge("country_score", "Mean monitor score per country code.", []string{"kind", "country"}),
		groupCompliance: gauge("country_compliance_ratio", "Share of samples within the offset threshold per country.", []string{"kind", "country"}),

		reportSamples:  gauge("report_samples", "Samples analysed after cleaning.", []string{"kind"}),
		reportDropped:  gauge("report_dropped", "Input rows removed by cleaning.", []string{"kind"}),
		reportOutliers: gauge("report_outliers", "Samples whose |offset| exceeded the offset threshold.", []string{"kind"}),
		lastRun:        gauge("report_last_run_timestamp_seconds", "Unix time the report was generated.", []string{"kind"}),

		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_runs_total",
			Help:      "Report runs by result.",
		}, []string{"kind", "result"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_duration_seconds",
			Help:      "Wall time of a report run.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"kind"}),
	}

	m.reg.MustRegister(
		m.sourceScore, m.sourceAccuracy, m.sourceStability, m.sourceLatency,
		m.sourceOffset, m.sourceJitter, m.sourceRTT, m.sourceSamples, m.sourceOutliers,
		m.groupScore, m.groupCompliance,
		m.reportSamples, m.reportDropped, m.reportOutliers, m.lastRun,
		m.runs, m.runDuration,
	)
	if withRuntime {
		m.reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Observe replaces the series of r.Kind with the values of r.
// Undefined (NaN) statistics are not exported.
func (m *Metrics) Observe(r *types.Report) {
	kind := string(r.Kind)
	byKind := prometheus.Labels{"kind": kind}
	for _, v := range []*prometheus.GaugeVec{
		m.sourceScore, m.sourceAccuracy, m.sourceStability, m.sourceLatency,
		m.sourceOffset, m.sourceJitter, m.sourceRTT, m.sourceSamples, m.sourceOutliers,
		m.groupScore, m.groupCompliance,
	} {
		v.DeletePartialMatch(byKind)
	}

	for _, s := range r.Sources {
		l := prometheus.Labels{"kind": kind, "source": s.ID, "group": s.Group}
		set(m.sourceScore, l, s.Score)
		set(m.sourceAccuracy, l, s.Accuracy)
		set(m.sourceStability, l, s.Stability)
		set(m.sourceLatency, l, s.Latency)
		set(m.sourceOffset, l, s.MeanAbsOffset)
		set(m.sourceJitter, l, s.Jitter)
		set(m.sourceRTT, l, s.MedianRTT)
		set(m.sourceSamples, l, float64(s.Samples))
		set(m.sourceOutliers, l, float64(s.Outliers))
	}
	for _, g := range r.Groups {
		l := prometheus.Labels{"kind": kind, "country": g.ID}
		set(m.groupScore, l, g.Score)
		set(m.groupCompliance, l, g.CompliancePct/100)
	}

	m.reportSamples.With(byKind).Set(float64(r.Samples))
	m.reportDropped.With(byKind).Set(float64(r.Dropped))
	m.reportOutliers.With(byKind).Set(float64(r.Outliers))
	m.lastRun.With(byKind).Set(float64(r.GeneratedAt.Unix()))
}

// ObserveRun records the outcome and duration of one report run.
func (m *Metrics) ObserveRun(kind types.Kind, err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.runs.WithLabelValues(string(kind), result).Inc()
	m.runDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
}

// Handler returns an http.Handler serving the registry in the Prometheus
// exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// WriteTextfile writes the registry to path for the node_exporter textfile
// collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("export: prometheus textfile: %w", err)
	}
	return nil
}

func set(v *prometheus.GaugeVec, l prometheus.Labels, x float64) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return
	}
	v.With(l).Set(x)
}
