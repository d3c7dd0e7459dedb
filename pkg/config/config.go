package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ntpscope/ntpscope/pkg/compute"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultBins              = 50
	DefaultTopN              = 15
	DefaultRollingWindow     = time.Hour
	DefaultStabilityWindow   = 10 * time.Minute
	DefaultExclude           = "candidate"
	DefaultPPSPeer           = "127.127.20.0"
	DefaultNMEASentence      = "GPGGA"
	DefaultBroadcastInterval = 5 * time.Second
	DefaultDebounce          = 2 * time.Second
	DefaultRedisPrefix       = "ntpscope"
	DefaultRedisHistory      = 100
)

// Config is the top-level configuration shared by both report commands.
type Config struct {
	Log LogConfig `yaml:"log"`

	// OutputDir is where charts and summary.json are written.
	OutputDir string `yaml:"output_dir"`

	Pool   PoolConfig   `yaml:"pool"`
	Local  LocalConfig  `yaml:"local"`
	Export ExportConfig `yaml:"export"`
	Server ServerConfig `yaml:"server"`
	Alerts AlertsConfig `yaml:"alerts"`
	Watch  WatchConfig  `yaml:"watch"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`

	// Format is one of: auto | json | text. auto picks text on a terminal.
	Format string `yaml:"format"`
}

// PoolConfig holds the pool monitor CSV analysis settings.
type PoolConfig struct {
	// Input is the monitor CSV export.
	Input string `yaml:"input"`

	// Exclude drops monitors whose name contains it (case-insensitive).
	// Empty disables the filter.
	Exclude string `yaml:"exclude"`

	Thresholds compute.Thresholds `yaml:"thresholds"`
	Weights    compute.Weights    `yaml:"weights"`

	RollingWindow time.Duration `yaml:"rolling_window"`
	Bins          int           `yaml:"bins"`

	// TopN bounds the dashboard leaderboard panel.
	TopN int `yaml:"top_n"`
}

// Params returns the scoring parameters of the pool analysis.
func (p PoolConfig) Params() compute.Params {
	return compute.Params{Weights: p.Weights, Thresholds: p.Thresholds}
}

// LocalConfig holds the local ntpd statistics analysis settings.
type LocalConfig struct {
	Loopstats  string `yaml:"loopstats"`
	Peerstats  string `yaml:"peerstats"`
	Clockstats string `yaml:"clockstats"`

	// PPSPeer is the refclock address of the PPS/NMEA driver.
	PPSPeer string `yaml:"pps_peer"`

	// NMEASentence selects the clockstats lines counted as NMEA messages.
	NMEASentence string `yaml:"nmea_sentence"`

	Thresholds compute.Thresholds `yaml:"thresholds"`
	Weights    compute.Weights    `yaml:"weights"`

	RollingWindow   time.Duration `yaml:"rolling_window"`
	StabilityWindow time.Duration `yaml:"stability_window"`
	Bins            int           `yaml:"bins"`
}

// Params returns the scoring parameters of the local analysis.
func (l LocalConfig) Params() compute.Params {
	return compute.Params{Weights: l.Weights, Thresholds: l.Thresholds}
}

// ExportConfig configures where finished reports are published.
type ExportConfig struct {
	// PrometheusTextfile is the path of a node_exporter textfile collector
	// file. Empty disables it.
	PrometheusTextfile string `yaml:"prometheus_textfile"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig configures report publication to Redis. Empty Addr disables it.
type RedisConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`

	// PasswordEnv is the name of the environment variable holding the password.
	PasswordEnv string `yaml:"password_env"`

	// KeyPrefix namespaces every key, e.g. "ntpscope:pool:latest".
	KeyPrefix string `yaml:"key_prefix"`

	// History is the number of past reports kept per kind.
	History int `yaml:"history"`

	// TTL expires the latest-report key. Zero keeps it forever.
	TTL time.Duration `yaml:"ttl"`
}

// Password returns the Redis password resolved from the environment.
func (r RedisConfig) Password() string {
	if r.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(r.PasswordEnv)
}

// ServerConfig configures serve mode.
type ServerConfig struct {
	// Listen is the HTTP listen address. Empty disables serve mode.
	Listen string `yaml:"listen"`

	// BroadcastInterval is how often the WebSocket hub pushes the latest
	// reports to connected clients.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`
}

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based alert condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression: "score < 0.5", "jitter > 0.005",
	// "compliance_pct < 90".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// WatchConfig configures -watch mode.
type WatchConfig struct {
	// Debounce coalesces bursts of file events into one re-run.
	Debounce time.Duration `yaml:"debounce"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse is Load for an in-memory document.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config pre-populated with default values.
func Default() *Config {
	return &Config{
		Log:       LogConfig{Level: "info", Format: "auto"},
		OutputDir: ".",
		Pool: PoolConfig{
			Input:         "ntp.txt",
			Exclude:       DefaultExclude,
			Thresholds:    compute.PoolParams.Thresholds,
			Weights:       compute.PoolParams.Weights,
			RollingWindow: DefaultRollingWindow,
			Bins:          DefaultBins,
			TopN:          DefaultTopN,
		},
		Local: LocalConfig{
			Loopstats:       "loopstats",
			Peerstats:       "peerstats",
			Clockstats:      "clockstats",
			PPSPeer:         DefaultPPSPeer,
			NMEASentence:    DefaultNMEASentence,
			Thresholds:      compute.LocalParams.Thresholds,
			Weights:         compute.LocalParams.Weights,
			RollingWindow:   DefaultRollingWindow,
			StabilityWindow: DefaultStabilityWindow,
			Bins:            DefaultBins,
		},
		Export: ExportConfig{
			Redis: RedisConfig{
				KeyPrefix: DefaultRedisPrefix,
				History:   DefaultRedisHistory,
			},
		},
		Server: ServerConfig{BroadcastInterval: DefaultBroadcastInterval},
		Watch:  WatchConfig{Debounce: DefaultDebounce},
	}
}

// Validate re-checks cfg after callers have modified it, e.g. with
// command-line overrides.
func (c *Config) Validate() error {
	if err := validate(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "auto", "json", "text":
	default:
		return fmt.Errorf("log.format: unknown format %q", cfg.Log.Format)
	}
	if cfg.OutputDir == "" {
		return fmt.Errorf("output_dir is required")
	}

	if err := validateScoring("pool", cfg.Pool.Thresholds, cfg.Pool.Weights, true); err != nil {
		return err
	}
	if cfg.Pool.RollingWindow <= 0 {
		return fmt.Errorf("pool.rolling_window must be positive")
	}
	if cfg.Pool.Bins <= 0 {
		return fmt.Errorf("pool.bins must be positive")
	}
	if cfg.Pool.TopN <= 0 {
		return fmt.Errorf("pool.top_n must be positive")
	}

	if err := validateScoring("local", cfg.Local.Thresholds, cfg.Local.Weights, false); err != nil {
		return err
	}
	if cfg.Local.RollingWindow <= 0 {
		return fmt.Errorf("local.rolling_window must be positive")
	}
	if cfg.Local.StabilityWindow <= 0 {
		return fmt.Errorf("local.stability_window must be positive")
	}
	if cfg.Local.Bins <= 0 {
		return fmt.Errorf("local.bins must be positive")
	}
	if cfg.Local.PPSPeer == "" {
		return fmt.Errorf("local.pps_peer is required")
	}

	if cfg.Export.Redis.Addr != "" && cfg.Export.Redis.History <= 0 {
		return fmt.Errorf("export.redis.history must be positive")
	}
	if cfg.Server.BroadcastInterval <= 0 {
		return fmt.Errorf("server.broadcast_interval must be positive")
	}
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}

	for i, r := range cfg.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("alerts.rules[%d]: name is required", i)
		}
		if len(strings.Fields(r.Condition)) != 3 {
			return fmt.Errorf("alerts.rules[%d] %q: condition must be \"field op value\"", i, r.Name)
		}
		switch r.Severity {
		case "critical", "warning", "info", "":
		default:
			return fmt.Errorf("alerts.rules[%d] %q: unknown severity %q", i, r.Name, r.Severity)
		}
	}
	for i, w := range cfg.Alerts.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("alerts.webhooks[%d]: unknown type %q", i, w.Type)
		}
	}
	return nil
}

func validateScoring(section string, th compute.Thresholds, w compute.Weights, latency bool) error {
	if th.Offset <= 0 {
		return fmt.Errorf("%s.thresholds.offset must be positive", section)
	}
	if th.Jitter <= 0 {
		return fmt.Errorf("%s.thresholds.jitter must be positive", section)
	}
	if latency && w.Latency != 0 && th.RTT <= 0 {
		return fmt.Errorf("%s.thresholds.rtt must be positive", section)
	}
	if !latency && w.Latency != 0 {
		return fmt.Errorf("%s.weights.latency is not supported: no round-trip data", section)
	}
	if w.Accuracy < 0 || w.Stability < 0 || w.Latency < 0 || w.Outlier < 0 {
		return fmt.Errorf("%s.weights must not be negative", section)
	}
	if w.Accuracy+w.Stability+w.Latency == 0 {
		return fmt.Errorf("%s.weights: at least one of accuracy, stability, latency must be set", section)
	}
	return nil
}

// Inputs returns the input files of the analyser named kind ("pool" or
// "local").
func (c *Config) Inputs(kind string) []string {
	switch kind {
	case "pool":
		return []string{c.Pool.Input}
	case "local":
		return []string{c.Local.Loopstats, c.Local.Peerstats, c.Local.Clockstats}
	default:
		return nil
	}
}
