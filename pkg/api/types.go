package api

import (
	"github.com/ntpscope/ntpscope/pkg/alerts"
	"github.com/ntpscope/ntpscope/pkg/export"
)

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status       string       `json:"status"` // "ok" once a report is stored, else "empty"
	Reports      int          `json:"reports"`
	Sources      int          `json:"sources"`
	MeanScore    export.Float `json:"mean_score"`
	ActiveAlerts int          `json:"active_alerts"`
	LastUpdate   string       `json:"last_update,omitempty"` // RFC3339
}

// ReportResponse is one stored report plus the time it was stored.
type ReportResponse struct {
	export.ReportJSON
	UpdatedAt string `json:"updated_at"`
}

// SnapshotResponse is the body of GET /api/v1/snapshot and the payload of
// every WebSocket broadcast.
type SnapshotResponse struct {
	Reports     []ReportResponse `json:"reports"`
	Alerts      []*alerts.Alert  `json:"alerts"`
	GeneratedAt string           `json:"generated_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}
