package api_test

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ntpscope/ntpscope/pkg/alerts"
	"github.com/ntpscope/ntpscope/pkg/api"
	"github.com/ntpscope/ntpscope/pkg/store"
	"github.com/ntpscope/ntpscope/pkg/types"
)

// --- test helpers -----------------------------------------------------------

func newStore(reports ...*types.Report) *store.Store {
	st := store.New()
	for _, r := range reports {
		st.Put(r)
	}
	return st
}

func poolReport() *types.Report {
	return &types.Report{
		Kind:        types.KindPool,
		GeneratedAt: time.Date(2025, 12, 8, 12, 0, 0, 0, time.UTC),
		Samples:     4,
		Sources: []types.SourceScore{
			{ID: "deams1", Group: "de", Samples: 2, Score: 0.8, Jitter: 0.001},
			{ID: "usnyc1", Group: "us", Samples: 2, Score: 0.4, Jitter: math.NaN()},
		},
		Groups: []types.GroupScore{{ID: "de", Sources: 1, Samples: 2, Score: 0.8, CompliancePct: 100}},
	}
}

func localReport() *types.Report {
	return &types.Report{
		Kind:    types.KindLocal,
		Samples: 1,
		Sources: []types.SourceScore{{ID: "127.127.20.0", Samples: 1, Score: math.NaN()}},
	}
}

type fakeAlerts []*alerts.Alert

func (f fakeAlerts) Active() []*alerts.Alert { return f }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- tests ------------------------------------------------------------------

func TestHealth_Empty(t *testing.T) {
	h := api.New(newStore(), nil)
	rr := get(t, h, "/api/v1/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}

	var resp map[string]interface{}
	decode(t, rr, &resp)
	if resp["status"] != "empty" {
		t.Errorf("status: got %v, want empty", resp["status"])
	}
	if resp["mean_score"] != nil {
		t.Errorf("mean_score: got %v, want null", resp["mean_score"])
	}
}

func TestHealth_WithReports(t *testing.T) {
	firing := &alerts.Alert{ID: "a", State: alerts.StateFiring}
	resolved := &alerts.Alert{ID: "b", State: alerts.StateResolved}
	h := api.New(newStore(poolReport(), localReport()), fakeAlerts{firing, resolved})

	var resp api.HealthResponse
	decode(t, get(t, h, "/api/v1/health"), &resp)

	if resp.Status != "ok" {
		t.Errorf("status: got %q", resp.Status)
	}
	if resp.Reports != 2 || resp.Sources != 3 {
		t.Errorf("reports/sources: got %d/%d, want 2/3", resp.Reports, resp.Sources)
	}
	// NaN score of the local peer is excluded from the mean.
	if math.Abs(float64(resp.MeanScore)-0.6) > 1e-9 {
		t.Errorf("mean_score: got %v, want 0.6", resp.MeanScore)
	}
	if resp.ActiveAlerts != 1 {
		t.Errorf("active_alerts: got %d, want 1", resp.ActiveAlerts)
	}
	if resp.LastUpdate == "" {
		t.Error("last_update: expected a timestamp")
	}
}

func TestListReports(t *testing.T) {
	h := api.New(newStore(poolReport(), localReport()), nil)
	rr := get(t, h, "/api/v1/reports")
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}

	var out []api.ReportResponse
	decode(t, rr, &out)
	if len(out) != 2 {
		t.Fatalf("len: got %d, want 2", len(out))
	}
	if out[0].Kind != types.KindLocal || out[1].Kind != types.KindPool {
		t.Errorf("order: %s, %s", out[0].Kind, out[1].Kind)
	}
	if out[1].UpdatedAt == "" {
		t.Error("updated_at: expected a timestamp")
	}
}

func TestGetReport(t *testing.T) {
	h := api.New(newStore(poolReport()), nil)

	rr := get(t, h, "/api/v1/reports/pool")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	var out api.ReportResponse
	decode(t, rr, &out)
	if out.Samples != 4 || len(out.Sources) != 2 || len(out.Groups) != 1 {
		t.Errorf("report: %+v", out.ReportJSON)
	}
	if out.Sources[0].ID != "deams1" {
		t.Errorf("first source: got %q", out.Sources[0].ID)
	}

	if rr := get(t, h, "/api/v1/reports/local"); rr.Code != http.StatusNotFound {
		t.Errorf("missing kind: got %d, want 404", rr.Code)
	}
}

func TestGetSource(t *testing.T) {
	h := api.New(newStore(poolReport()), nil)

	rr := get(t, h, "/api/v1/reports/pool/sources/usnyc1")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	var src map[string]interface{}
	decode(t, rr, &src)
	if src["id"] != "usnyc1" {
		t.Errorf("id: got %v", src["id"])
	}
	if src["jitter"] != nil {
		t.Errorf("jitter: got %v, want null", src["jitter"])
	}

	if rr := get(t, h, "/api/v1/reports/pool/sources/nope"); rr.Code != http.StatusNotFound {
		t.Errorf("missing source: got %d, want 404", rr.Code)
	}
	if rr := get(t, h, "/api/v1/reports/pool/peers/x"); rr.Code != http.StatusNotFound {
		t.Errorf("unknown subpath: got %d, want 404", rr.Code)
	}
}

func TestAlerts(t *testing.T) {
	h := api.New(newStore(), nil)
	var none []map[string]interface{}
	decode(t, get(t, h, "/api/v1/alerts"), &none)
	if none == nil || len(none) != 0 {
		t.Errorf("no engine: got %v, want []", none)
	}

	a := &alerts.Alert{ID: "x", RuleName: "low", Kind: types.KindPool, SubjectID: "deams1",
		Severity: "warning", Value: 0.2, State: alerts.StateFiring, FiredAt: time.Now()}
	h = api.New(newStore(), fakeAlerts{a})
	var out []map[string]interface{}
	decode(t, get(t, h, "/api/v1/alerts"), &out)
	if len(out) != 1 || out[0]["rule_name"] != "low" {
		t.Errorf("alerts: got %v", out)
	}
}

func TestSnapshot(t *testing.T) {
	h := api.New(newStore(poolReport()), nil)
	var snap api.SnapshotResponse
	decode(t, get(t, h, "/api/v1/snapshot"), &snap)
	if len(snap.Reports) != 1 || snap.GeneratedAt == "" {
		t.Errorf("snapshot: %+v", snap)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := api.New(newStore(poolReport()), nil)
	for _, path := range []string{"/api/v1/health", "/api/v1/reports", "/api/v1/reports/pool", "/api/v1/alerts", "/api/v1/snapshot"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, nil))
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s: got %d, want 405", path, rr.Code)
		}
	}
}
