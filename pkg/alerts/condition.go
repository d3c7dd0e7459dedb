package alerts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ntpscope/ntpscope/pkg/types"
)

type scope int

const (
	scopeSource scope = iota
	scopeGroup
)

// condition is a parsed "field op value" expression.
type condition struct {
	field     string
	op        string
	threshold float64
	scope     scope
}

var sourceFields = map[string]func(types.SourceScore) float64{
	"score":       func(s types.SourceScore) float64 { return s.Score },
	"accuracy":    func(s types.SourceScore) float64 { return s.Accuracy },
	"stability":   func(s types.SourceScore) float64 { return s.Stability },
	"latency":     func(s types.SourceScore) float64 { return s.Latency },
	"mean_offset": func(s types.SourceScore) float64 { return s.MeanAbsOffset },
	"jitter":      func(s types.SourceScore) float64 { return s.Jitter },
	"median_rtt":  func(s types.SourceScore) float64 { return s.MedianRTT },
	"outlier_pct": func(s types.SourceScore) float64 { return s.OutlierPct() },
	"samples":     func(s types.SourceScore) float64 { return float64(s.Samples) },
	"outliers":    func(s types.SourceScore) float64 { return float64(s.Outliers) },
}

var groupFields = map[string]func(types.GroupScore) float64{
	"compliance_pct": func(g types.GroupScore) float64 { return g.CompliancePct },
	"group_score":    func(g types.GroupScore) float64 { return g.Score },
	"group_samples":  func(g types.GroupScore) float64 { return float64(g.Samples) },
}

// parseCondition parses expressions such as:
//
//	score < 0.5
//	jitter > 0.005
//	outlier_pct >= 10
//	compliance_pct < 95
func parseCondition(cond string) (condition, error) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return condition{}, fmt.Errorf("condition %q: want \"field op value\"", cond)
	}
	c := condition{field: parts[0], op: parts[1]}

	switch c.op {
	case ">", ">=", "<", "<=", "==", "!=":
	default:
		return condition{}, fmt.Errorf("condition %q: unknown operator %q", cond, c.op)
	}

	v, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return condition{}, fmt.Errorf("condition %q: invalid value: %w", cond, err)
	}
	c.threshold = v

	switch {
	case sourceFields[c.field] != nil:
		c.scope = scopeSource
	case groupFields[c.field] != nil:
		c.scope = scopeGroup
	default:
		return condition{}, fmt.Errorf("condition %q: unknown field %q", cond, c.field)
	}
	return c, nil
}

// subject is one thing a condition is evaluated against.
type subject struct {
	id    string
	value float64
}

// subjects extracts the condition field from every source or group of r.
func (c condition) subjects(r *types.Report) []subject {
	var out []subject
	switch c.scope {
	case scopeSource:
		get := sourceFields[c.field]
		for _, s := range r.Sources {
			out = append(out, subject{id: s.ID, value: get(s)})
		}
	case scopeGroup:
		get := groupFields[c.field]
		for _, g := range r.Groups {
			out = append(out, subject{id: g.ID, value: get(g)})
		}
	}
	return out
}

// compareFloat applies a comparison operator to two float64 values.
// NaN never satisfies a comparison.
func compareFloat(v float64, op string, threshold float64) bool {
	if v != v {
		return false
	}
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
