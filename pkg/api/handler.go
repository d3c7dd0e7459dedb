package api

import (
	"encoding/json"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/ntpscope/ntpscope/pkg/alerts"
	"github.com/ntpscope/ntpscope/pkg/export"
	"github.com/ntpscope/ntpscope/pkg/store"
	"github.com/ntpscope/ntpscope/pkg/types"
)

// AlertSource lists the alerts to expose. *alerts.Engine satisfies it.
type AlertSource interface {
	Active() []*alerts.Alert
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	store  *store.Store
	alerts AlertSource
	mux    *http.ServeMux
}

// New creates a Handler over st and registers all routes. al may be nil when
// no alert rules are configured.
func New(st *store.Store, al AlertSource) http.Handler {
	h := &Handler{store: st, alerts: al, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/reports", h.listReports)
	h.mux.HandleFunc("/api/v1/reports/", h.getReport) // subtree: {kind}[/sources/{id}]
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries := h.store.List()
	resp := HealthResponse{
		Status:       "empty",
		Reports:      len(entries),
		MeanScore:    export.Float(math.NaN()),
		ActiveAlerts: countFiring(h.activeAlerts()),
	}
	if len(entries) == 0 {
		jsonResp(w, http.StatusOK, resp)
		return
	}

	resp.Status = "ok"
	var sum float64
	var n int
	for _, e := range entries {
		resp.Sources += len(e.Report.Sources)
		for _, s := range e.Report.Sources {
			if !math.IsNaN(s.Score) {
				sum += s.Score
				n++
			}
		}
	}
	if n > 0 {
		resp.MeanScore = export.Float(sum / float64(n))
	}
	resp.LastUpdate = h.store.LastUpdate().UTC().Format(time.RFC3339)
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) listReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, reportResponses(h.store))
}

// getReport serves /api/v1/reports/{kind} and
// /api/v1/reports/{kind}/sources/{id}.
func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/reports/"), "/")
	if rest == "" {
		h.listReports(w, r)
		return
	}
	parts := strings.SplitN(rest, "/", 3)

	e, ok := h.store.Get(types.Kind(parts[0]))
	if !ok {
		jsonErr(w, http.StatusNotFound, "report not found")
		return
	}

	switch {
	case len(parts) == 1:
		jsonResp(w, http.StatusOK, toReportResponse(e))
	case len(parts) == 3 && parts[1] == "sources":
		rj := export.NewReportJSON(e.Report)
		for _, s := range rj.Sources {
			if s.ID == parts[2] {
				jsonResp(w, http.StatusOK, s)
				return
			}
		}
		jsonErr(w, http.StatusNotFound, "source not found")
	default:
		jsonErr(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.activeAlerts())
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store, h.alerts))
}

// BuildSnapshot assembles the current reports and alerts. The WebSocket hub
// uses it as its broadcast payload.
func BuildSnapshot(st *store.Store, al AlertSource) SnapshotResponse {
	out := SnapshotResponse{
		Reports:     reportResponses(st),
		Alerts:      []*alerts.Alert{},
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if al != nil {
		out.Alerts = al.Active()
	}
	return out
}

// --- helpers ----------------------------------------------------------------

func (h *Handler) activeAlerts() []*alerts.Alert {
	if h.alerts == nil {
		return []*alerts.Alert{}
	}
	return h.alerts.Active()
}

func countFiring(as []*alerts.Alert) int {
	n := 0
	for _, a := range as {
		if a.State == alerts.StateFiring {
			n++
		}
	}
	return n
}

func reportResponses(st *store.Store) []ReportResponse {
	entries := st.List()
	out := make([]ReportResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toReportResponse(e))
	}
	return out
}

func toReportResponse(e *store.Entry) ReportResponse {
	return ReportResponse{
		ReportJSON: export.NewReportJSON(e.Report),
		UpdatedAt:  e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
