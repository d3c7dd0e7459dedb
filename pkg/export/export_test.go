package export

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/ntpscope/ntpscope/pkg/config"
	"github.com/ntpscope/ntpscope/pkg/types"
)

func sampleReport(kind types.Kind) *types.Report {
	return &types.Report{
		Kind:        kind,
		GeneratedAt: time.Date(2025, 12, 8, 12, 0, 0, 0, time.UTC),
		Inputs:      []string{"ntp.txt"},
		Samples:     21,
		Dropped:     2,
		Outliers:    4,
		Sources: []types.SourceScore{
			{
				ID: "usmon1", Group: "us", Samples: 20, Outliers: 4,
				MeanAbsOffset: 0.002, Jitter: 0.001, MedianRTT: 40,
				Accuracy: 0.8, Stability: 0.9, Latency: 0.6, OutlierPenalty: 0.2, Score: 0.69,
			},
			{
				ID: "deone", Group: "de", Samples: 1,
				MeanAbsOffset: 0.001, Jitter: math.NaN(), MedianRTT: 20,
				Accuracy: 0.9, Stability: math.NaN(), Latency: 0.8, Score: math.NaN(),
			},
		},
		Groups: []types.GroupScore{
			{ID: "us", Sources: 1, Samples: 20, Score: 0.69, CompliancePct: 80},
			{ID: "de", Sources: 1, Samples: 1, Score: math.NaN(), CompliancePct: 100},
		},
		Charts: []string{"offset_vs_time_filtered.png"},
	}
}

func TestReportJSON_NaNIsNull(t *testing.T) {
	b, err := MarshalReport(sampleReport(types.KindPool))
	if err != nil {
		t.Fatalf("MarshalReport: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	src := raw["sources"].([]any)[1].(map[string]any)
	if src["score"] != nil || src["jitter"] != nil {
		t.Errorf("NaN fields should be null: %v", src)
	}
	if raw["generated_at"] != "2025-12-08T12:00:00Z" {
		t.Errorf("generated_at: %v", raw["generated_at"])
	}

	back, err := UnmarshalReport(b)
	if err != nil {
		t.Fatalf("UnmarshalReport: %v", err)
	}
	if !math.IsNaN(back.Sources[1].Score) {
		t.Errorf("null should decode as NaN, got %v", back.Sources[1].Score)
	}
	if back.Sources[0].Score != 0.69 || back.Groups[0].CompliancePct != 80 {
		t.Errorf("decoded: %+v", back)
	}
	if !back.GeneratedAt.Equal(sampleReport(types.KindPool).GeneratedAt) {
		t.Errorf("GeneratedAt: %v", back.GeneratedAt)
	}
}

func TestReportJSON_EmptySlicesAreArrays(t *testing.T) {
	b, err := MarshalReport(&types.Report{Kind: types.KindLocal})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"sources":[]`, `"groups":[]`, `"charts":[]`, `"inputs":[]`} {
		if !bytes.Contains(b, []byte(want)) {
			t.Errorf("missing %s in %s", want, b)
		}
	}
}

func TestWriteSummary(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteSummary(dir, sampleReport(types.KindPool))
	if err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	if path != filepath.Join(dir, SummaryFile) {
		t.Errorf("path = %s", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	r, err := UnmarshalReport(b)
	if err != nil {
		t.Fatalf("summary is not a report: %v", err)
	}
	if r.Kind != types.KindPool || len(r.Sources) != 2 {
		t.Errorf("summary: %+v", r)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp file left behind: %v", entries)
	}
}

func parseExposition(t *testing.T, r io.Reader) map[string]*dto.MetricFamily {
	t.Helper()
	var p expfmt.TextParser
	mfs, err := p.TextToMetricFamilies(r)
	if err != nil {
		t.Fatalf("parse exposition: %v", err)
	}
	return mfs
}

func gaugeValue(t *testing.T, mf *dto.MetricFamily, labels map[string]string) (float64, bool) {
	t.Helper()
	for _, m := range mf.GetMetric() {
		match := true
		for _, lp := range m.GetLabel() {
			if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
				match = false
			}
		}
		if match {
			return m.GetGauge().GetValue(), true
		}
	}
	return 0, false
}

func TestMetrics_Textfile(t *testing.T) {
	m := NewMetrics(false)
	m.Observe(sampleReport(types.KindPool))
	m.ObserveRun(types.KindPool, nil, 250*time.Millisecond)

	path := filepath.Join(t.TempDir(), "ntpscope.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	mfs := parseExposition(t, f)

	score := mfs["ntpscope_source_score"]
	if score == nil {
		t.Fatal("ntpscope_source_score missing")
	}
	if len(score.GetMetric()) != 1 {
		t.Errorf("NaN score must not be exported; got %d series", len(score.GetMetric()))
	}
	if v, ok := gaugeValue(t, score, map[string]string{"source": "usmon1"}); !ok || v != 0.69 {
		t.Errorf("usmon1 score = %v (found %v)", v, ok)
	}
	if v, ok := gaugeValue(t, mfs["ntpscope_country_compliance_ratio"], map[string]string{"country": "us"}); !ok || v != 0.8 {
		t.Errorf("us compliance = %v", v)
	}
	if v, _ := gaugeValue(t, mfs["ntpscope_report_dropped"], map[string]string{"kind": "pool"}); v != 2 {
		t.Errorf("report_dropped = %v", v)
	}
	if mfs["ntpscope_report_runs_total"] == nil {
		t.Error("runs counter missing")
	}
	if _, ok := mfs["go_goroutines"]; ok {
		t.Error("runtime collectors should be absent from the textfile")
	}
}

func TestMetrics_ObserveReplacesKind(t *testing.T) {
	m := NewMetrics(false)
	m.Observe(sampleReport(types.KindPool))

	local := sampleReport(types.KindLocal)
	local.Sources = local.Sources[:1]
	local.Sources[0].ID = "127.127.20.0"
	local.Groups = nil
	m.Observe(local)

	next := sampleReport(types.KindPool)
	next.Sources[0].ID = "usmon2"
	m.Observe(next)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	mfs := parseExposition(t, resp.Body)

	score := mfs["ntpscope_source_score"]
	if _, ok := gaugeValue(t, score, map[string]string{"kind": "pool", "source": "usmon1"}); ok {
		t.Error("stale pool series usmon1 still exported")
	}
	if _, ok := gaugeValue(t, score, map[string]string{"kind": "pool", "source": "usmon2"}); !ok {
		t.Error("usmon2 missing")
	}
	if _, ok := gaugeValue(t, score, map[string]string{"kind": "local", "source": "127.127.20.0"}); !ok {
		t.Error("local series dropped by a pool observation")
	}
}

func newTestSink(t *testing.T) (*RedisSink, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewRedisSink(config.RedisConfig{Addr: mr.Addr(), KeyPrefix: "ntpscope", History: 2, TTL: time.Hour})
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestRedisSink_Publish(t *testing.T) {
	s, mr := newTestSink(t)
	ctx := context.Background()

	if err := s.Check(ctx); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if mr.Exists("ntpscope:pool:latest") {
		t.Fatal("latest key exists before publish")
	}

	for i := 0; i < 3; i++ {
		r := sampleReport(types.KindPool)
		r.Samples = i
		if err := s.Publish(ctx, r); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}

	raw, err := mr.Get("ntpscope:pool:latest")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	latest, err := UnmarshalReport([]byte(raw))
	if err != nil {
		t.Fatalf("decode latest: %v", err)
	}
	if latest.Samples != 2 {
		t.Errorf("latest.Samples = %d, want 2", latest.Samples)
	}
	if ttl := mr.TTL("ntpscope:pool:latest"); ttl != time.Hour {
		t.Errorf("latest TTL = %v", ttl)
	}

	items, err := mr.List("ntpscope:pool:history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("history should be trimmed to 2, got %d items", len(items))
	}
	for i, want := range []int{2, 1} {
		r, err := UnmarshalReport([]byte(items[i]))
		if err != nil || r.Samples != want {
			t.Errorf("history[%d]: samples %v (err %v), want %d newest first", i, r, err, want)
		}
	}

	keys, err := mr.HKeys("ntpscope:pool:scores")
	if err != nil {
		t.Fatalf("scores: %v", err)
	}
	if len(keys) != 1 || mr.HGet("ntpscope:pool:scores", "usmon1") != "0.69" {
		t.Errorf("scores = %v (NaN scores must be skipped)", keys)
	}
}

func TestRedisSink_Unreachable(t *testing.T) {
	s := NewRedisSink(config.RedisConfig{Addr: "127.0.0.1:1", KeyPrefix: "x", History: 1})
	defer s.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Publish(ctx, sampleReport(types.KindPool)); err == nil {
		t.Error("expected error publishing to an unreachable server")
	}
}
