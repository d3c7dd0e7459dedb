package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/ntpscope/ntpscope/pkg/config"
	"github.com/ntpscope/ntpscope/pkg/types"
)

const (
	defaultCooldown   = 15 * time.Minute
	maxHistoryLen     = 200
	recentWindowHours = 1
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	Kind       types.Kind `json:"kind"`
	SubjectID  string     `json:"subject_id"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"`
}

type rule struct {
	config.AlertRule
	cond condition
}

// Engine evaluates alert rules against reports and delivers webhook
// notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	rules    []rule
	webhooks []config.WebhookConfig
	active   map[string]*Alert    // key: "rule:kind:subject"
	lastFire map[string]time.Time // last fire time per key (for cooldown)
	history  []*Alert             // recently resolved alerts

	client *http.Client
	now    func() time.Time
	wg     sync.WaitGroup
}

// New creates an Engine from the alert configuration.
// An Engine with empty rules is valid; Evaluate becomes a no-op.
func New(cfg config.AlertsConfig) (*Engine, error) {
	e := &Engine{
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
	if err := e.Reload(cfg); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload replaces the rules and webhooks. Firing alerts of rules that still
// exist stay active; the rest are dropped without a resolve notification.
func (e *Engine) Reload(cfg config.AlertsConfig) error {
	rules := make([]rule, 0, len(cfg.Rules))
	names := make(map[string]bool, len(cfg.Rules))
	for _, r := range cfg.Rules {
		c, err := parseCondition(r.Condition)
		if err != nil {
			return fmt.Errorf("alerts: rule %q: %w", r.Name, err)
		}
		rules = append(rules, rule{AlertRule: r, cond: c})
		names[r.Name] = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = rules
	e.webhooks = cfg.Webhooks
	for key, a := range e.active {
		if !names[a.RuleName] {
			delete(e.active, key)
		}
	}
	return nil
}

// Evaluate tests all configured rules against r and returns the alerts that
// fired or resolved in this pass. Webhook delivery runs in the background;
// call Wait to block until it completes.
func (e *Engine) Evaluate(r *types.Report) []Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.rules) == 0 {
		return nil
	}

	now := e.now()
	var changed []Alert
	for _, rl := range e.rules {
		seen := make(map[string]bool)
		for _, sub := range rl.cond.subjects(r) {
			key := rl.Name + ":" + string(r.Kind) + ":" + sub.id
			seen[key] = true

			if !compareFloat(sub.value, rl.cond.op, rl.cond.threshold) {
				if a := e.resolve(key, now); a != nil {
					changed = append(changed, *a)
				}
				continue
			}

			cooldown := rl.Cooldown
			if cooldown <= 0 {
				cooldown = defaultCooldown
			}
			if _, firing := e.active[key]; firing || now.Sub(e.lastFire[key]) <= cooldown {
				continue
			}
			sev := rl.Severity
			if sev == "" {
				sev = "warning"
			}
			a := &Alert{
				ID:        fmt.Sprintf("%s:%d", key, now.UnixNano()),
				RuleName:  rl.Name,
				Kind:      r.Kind,
				SubjectID: sub.id,
				Severity:  sev,
				Value:     sub.value,
				Message: fmt.Sprintf("[%s] %s fired on %s %s: %s (value %.6g)",
					sev, rl.Name, r.Kind, sub.id, rl.Condition, sub.value),
				FiredAt: now,
				State:   StateFiring,
			}
			e.active[key] = a
			e.lastFire[key] = now
			changed = append(changed, *a)

			slog.Warn("alerts: fired",
				"rule", rl.Name,
				"kind", r.Kind,
				"subject", sub.id,
				"value", sub.value,
				"severity", sev,
			)
			e.dispatch(*a)
		}

		// Subjects that vanished from the report resolve too.
		prefix := rl.Name + ":" + string(r.Kind) + ":"
		for key := range e.active {
			if len(key) > len(prefix) && key[:len(prefix)] == prefix && !seen[key] {
				if a := e.resolve(key, now); a != nil {
					changed = append(changed, *a)
				}
			}
		}
	}
	return changed
}

// resolve moves the active alert under key to history. Caller holds e.mu.
func (e *Engine) resolve(key string, now time.Time) *Alert {
	a, ok := e.active[key]
	if !ok {
		return nil
	}
	resolved := now
	a.State = StateResolved
	a.ResolvedAt = &resolved
	delete(e.active, key)

	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}

	slog.Info("alerts: resolved", "rule", a.RuleName, "kind", a.Kind, "subject", a.SubjectID)
	e.dispatch(*a)
	return a
}

// dispatch delivers a copy of a to the webhooks in the background.
// Caller holds e.mu.
func (e *Engine) dispatch(a Alert) {
	if len(e.webhooks) == 0 {
		return
	}
	hooks := append([]config.WebhookConfig(nil), e.webhooks...)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.deliver(hooks, &a)
	}()
}

// Wait blocks until all pending webhook deliveries have finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, sorted newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindowHours * time.Hour)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return latest(out[i]).After(latest(out[j]))
	})
	return out
}

func latest(a *Alert) time.Time {
	if a.ResolvedAt != nil {
		return *a.ResolvedAt
	}
	return a.FiredAt
}
