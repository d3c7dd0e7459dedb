package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/ntpscope/ntpscope/pkg/config"
)

// payloads encodes an alert for each supported webhook type.
var payloads = map[string]func(*Alert) any{
	"slack": slackPayload,
	"teams": teamsPayload,
	"http":  func(a *Alert) any { return map[string]*Alert{"alert": a} },
}

// deliver posts a to every hook with a resolvable URL. Failures are logged
// per hook and never returned.
func (e *Engine) deliver(hooks []config.WebhookConfig, a *Alert) {
	for _, wh := range hooks {
		encode, ok := payloads[wh.Type]
		if !ok {
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}
		url := wh.URL()
		if url == "" {
			slog.Debug("alerts: webhook url unset", "type", wh.Type, "env", wh.URLEnv)
			continue
		}

		log := slog.With("type", wh.Type, "rule", a.RuleName, "subject", a.SubjectID)
		if err := e.post(url, encode(a)); err != nil {
			log.Error("alerts: webhook delivery failed", "err", err)
			continue
		}
		log.Debug("alerts: webhook delivered", "state", a.State)
	}
}

func (e *Engine) post(url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	resp, err := e.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func slackPayload(a *Alert) any {
	return map[string]string{
		"text": fmt.Sprintf("%s *%s* %s/%s: %s", stateIcon(a.State), a.Severity, a.Kind, a.SubjectID, a.Message),
	}
}

// teamsPayload is a legacy Office 365 connector MessageCard.
func teamsPayload(a *Alert) any {
	return map[string]any{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": severityColor(a.Severity, a.State),
		"summary":    a.RuleName,
		"title":      fmt.Sprintf("ntpscope %s: %s on %s", a.State, a.RuleName, a.SubjectID),
		"text":       a.Message,
	}
}

func stateIcon(state string) string {
	if state == StateResolved {
		return ":white_check_mark:"
	}
	return ":rotating_light:"
}

func severityColor(severity, state string) string {
	if state == StateResolved {
		return "2EB67D"
	}
	switch severity {
	case "critical":
		return "E01E5A"
	case "warning":
		return "ECB22E"
	default:
		return "36C5F0"
	}
}

// MarshalJSON encodes a NaN value as null.
func (a Alert) MarshalJSON() ([]byte, error) {
	type plain Alert
	var v *float64
	if !math.IsNaN(a.Value) {
		v = &a.Value
	}
	return json.Marshal(struct {
		plain
		Value *float64 `json:"value"`
	}{plain(a), v})
}
