package export

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/ntpscope/ntpscope/pkg/types"
)

// SummaryFile is the file name of the JSON summary in the output directory.
const SummaryFile = "summary.json"

// Float is a float64 that encodes NaN and ±Inf as JSON null and decodes
// null back to NaN.
type Float float64

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Float) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = Float(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// ReportJSON is the wire form of types.Report.
type ReportJSON struct {
	Kind        types.Kind   `json:"kind"`
	GeneratedAt string       `json:"generated_at"` // RFC3339
	Inputs      []string     `json:"inputs"`
	Samples     int          `json:"samples"`
	Dropped     int          `json:"dropped"`
	Outliers    int          `json:"outliers"`
	Sources     []SourceJSON `json:"sources"`
	Groups      []GroupJSON  `json:"groups"`
	Charts      []string     `json:"charts"`
}

// SourceJSON is one scored monitor or peer.
type SourceJSON struct {
	ID             string `json:"id"`
	Group          string `json:"group,omitempty"`
	Samples        int    `json:"samples"`
	Outliers       int    `json:"outliers"`
	MeanAbsOffset  Float  `json:"mean_offset"`
	Jitter         Float  `json:"jitter"`
	MedianRTT      Float  `json:"median_rtt"`
	Accuracy       Float  `json:"accuracy"`
	Stability      Float  `json:"stability"`
	Latency        Float  `json:"latency"`
	OutlierPenalty Float  `json:"outlier_penalty"`
	Score          Float  `json:"score"`
}

// GroupJSON is one country aggregate.
type GroupJSON struct {
	ID            string `json:"id"`
	Sources       int    `json:"sources"`
	Samples       int    `json:"samples"`
	Score         Float  `json:"score"`
	CompliancePct Float  `json:"compliance_pct"`
}

// NewReportJSON converts r to its wire form.
func NewReportJSON(r *types.Report) ReportJSON {
	out := ReportJSON{
		Kind:        r.Kind,
		GeneratedAt: r.GeneratedAt.UTC().Format(time.RFC3339),
		Inputs:      nonNil(r.Inputs),
		Samples:     r.Samples,
		Dropped:     r.Dropped,
		Outliers:    r.Outliers,
		Sources:     make([]SourceJSON, 0, len(r.Sources)),
		Groups:      make([]GroupJSON, 0, len(r.Groups)),
		Charts:      nonNil(r.Charts),
	}
	for _, s := range r.Sources {
		out.Sources = append(out.Sources, SourceJSON{
			ID:             s.ID,
			Group:          s.Group,
			Samples:        s.Samples,
			Outliers:       s.Outliers,
			MeanAbsOffset:  Float(s.MeanAbsOffset),
			Jitter:         Float(s.Jitter),
			MedianRTT:      Float(s.MedianRTT),
			Accuracy:       Float(s.Accuracy),
			Stability:      Float(s.Stability),
			Latency:        Float(s.Latency),
			OutlierPenalty: Float(s.OutlierPenalty),
			Score:          Float(s.Score),
		})
	}
	for _, g := range r.Groups {
		out.Groups = append(out.Groups, GroupJSON{
			ID:            g.ID,
			Sources:       g.Sources,
			Samples:       g.Samples,
			Score:         Float(g.Score),
			CompliancePct: Float(g.CompliancePct),
		})
	}
	return out
}

// Report converts the wire form back to a types.Report.
func (j ReportJSON) Report() (*types.Report, error) {
	r := &types.Report{
		Kind:     j.Kind,
		Inputs:   j.Inputs,
		Samples:  j.Samples,
		Dropped:  j.Dropped,
		Outliers: j.Outliers,
		Charts:   j.Charts,
	}
	if j.GeneratedAt != "" {
		t, err := time.Parse(time.RFC3339, j.GeneratedAt)
		if err != nil {
			return nil, fmt.Errorf("export: generated_at: %w", err)
		}
		r.GeneratedAt = t
	}
	for _, s := range j.Sources {
		r.Sources = append(r.Sources, types.SourceScore{
			ID:             s.ID,
			Group:          s.Group,
			Samples:        s.Samples,
			Outliers:       s.Outliers,
			MeanAbsOffset:  float64(s.MeanAbsOffset),
			Jitter:         float64(s.Jitter),
			MedianRTT:      float64(s.MedianRTT),
			Accuracy:       float64(s.Accuracy),
			Stability:      float64(s.Stability),
			Latency:        float64(s.Latency),
			OutlierPenalty: float64(s.OutlierPenalty),
			Score:          float64(s.Score),
		})
	}
	for _, g := range j.Groups {
		r.Groups = append(r.Groups, types.GroupScore{
			ID:            g.ID,
			Sources:       g.Sources,
			Samples:       g.Samples,
			Score:         float64(g.Score),
			CompliancePct: float64(g.CompliancePct),
		})
	}
	return r, nil
}

// MarshalReport encodes r as JSON.
func MarshalReport(r *types.Report) ([]byte, error) {
	return json.Marshal(NewReportJSON(r))
}

// UnmarshalReport decodes a report encoded by MarshalReport.
func UnmarshalReport(data []byte) (*types.Report, error) {
	var j ReportJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("export: decode report: %w", err)
	}
	return j.Report()
}

// WriteSummary writes r as indented JSON to dir/summary.json and returns
// the path. The file is replaced atomically.
func WriteSummary(dir string, r *types.Report) (string, error) {
	data, err := json.MarshalIndent(NewReportJSON(r), "", "  ")
	if err != nil {
		return "", fmt.Errorf("export: encode summary: %w", err)
	}
	path := filepath.Join(dir, SummaryFile)
	tmp, err := os.CreateTemp(dir, ".summary-*.json")
	if err != nil {
		return "", fmt.Errorf("export: write summary: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("export: write summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("export: write summary: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("export: write summary: %w", err)
	}
	return path, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
