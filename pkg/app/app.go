package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/ntpscope/ntpscope/pkg/alerts"
	"github.com/ntpscope/ntpscope/pkg/config"
	"github.com/ntpscope/ntpscope/pkg/export"
	"github.com/ntpscope/ntpscope/pkg/logging"
	"github.com/ntpscope/ntpscope/pkg/store"
	"github.com/ntpscope/ntpscope/pkg/types"
	"github.com/ntpscope/ntpscope/pkg/ws"
)

const publishTimeout = 5 * time.Second

// Reporter produces one report from the configured inputs. Run prints its
// console tables to out and writes its charts into cfg.OutputDir.
type Reporter interface {
	Kind() types.Kind
	Inputs(cfg *config.Config) []string
	Run(ctx context.Context, cfg *config.Config, out io.Writer) (*types.Report, error)
}

// App runs a Reporter and publishes its results.
type App struct {
	opts *Options
	rep  Reporter
	out  io.Writer

	mu  sync.Mutex // serialises runs and config swaps
	cfg *config.Config

	metrics *export.Metrics
	alerts  *alerts.Engine
	redis   *export.RedisSink
	store   *store.Store
	hub     *ws.Hub
}

// New loads the config named by opts, installs the default logger and
// builds the publication sinks.
func New(opts *Options, rep Reporter, out io.Writer) (*App, error) {
	cfg, err := opts.LoadConfig()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr))

	eng, err := alerts.New(cfg.Alerts)
	if err != nil {
		return nil, err
	}

	a := &App{
		opts:    opts,
		rep:     rep,
		out:     out,
		cfg:     cfg,
		metrics: export.NewMetrics(cfg.Server.Listen != ""),
		alerts:  eng,
		store:   store.New(),
	}
	a.hub = ws.New(a.store, a.alerts, cfg.Server.BroadcastInterval)
	if cfg.Export.Redis.Addr != "" {
		a.redis = export.NewRedisSink(cfg.Export.Redis)
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := a.redis.Check(ctx); err != nil {
			slog.Warn("app: redis unreachable, publishing will be retried every run", "addr", cfg.Export.Redis.Addr, "err", err)
		}
		cancel()
	}

	slog.Info("app: config loaded",
		"kind", rep.Kind(),
		"config", opts.ConfigPath,
		"output_dir", cfg.OutputDir,
		"alert_rules", len(cfg.Alerts.Rules),
		"redis", cfg.Export.Redis.Addr,
		"listen", cfg.Server.Listen,
		"watch", opts.Watch,
	)
	return a, nil
}

// Config returns the active configuration.
func (a *App) Config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Close releases the Redis connection, if any.
func (a *App) Close() error {
	if a.redis == nil {
		return nil
	}
	return a.redis.Close()
}

// Run executes the report once. In watch or serve mode it then keeps
// running until ctx is cancelled or a background task fails.
func (a *App) Run(ctx context.Context) error {
	if err := a.RunOnce(ctx); err != nil {
		return err
	}

	cfg := a.Config()
	if !a.opts.Watch && cfg.Server.Listen == "" {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	start := func(task func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := task(ctx); err != nil {
				once.Do(func() { firstErr = err })
				cancel()
			}
		}()
	}

	if cfg.Server.Listen != "" {
		start(a.serve)
	}
	if a.opts.Watch {
		start(a.watch)
	}

	wg.Wait()
	return firstErr
}

// RunOnce runs the reporter and publishes the report to every configured
// sink. Only reporter and summary-file failures are returned; the other
// sinks log their errors.
func (a *App) RunOnce(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	cfg := a.cfg
	kind := a.rep.Kind()
	start := time.Now()

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("app: create output dir: %w", err)
	}

	r, err := a.rep.Run(ctx, cfg, a.out)
	a.metrics.ObserveRun(kind, err, time.Since(start))
	if err != nil {
		return fmt.Errorf("%s report: %w", kind, err)
	}

	path, err := export.WriteSummary(cfg.OutputDir, r)
	if err != nil {
		return err
	}

	a.metrics.Observe(r)
	if tf := cfg.Export.PrometheusTextfile; tf != "" {
		if err := a.metrics.WriteTextfile(tf); err != nil {
			slog.Error("app: write prometheus textfile", "path", tf, "err", err)
		}
	}

	if changed := a.alerts.Evaluate(r); len(changed) > 0 {
		PrintAlerts(a.out, changed)
		a.alerts.Wait()
	}

	if a.redis != nil {
		pctx, cancel := context.WithTimeout(ctx, publishTimeout)
		if err := a.redis.Publish(pctx, r); err != nil {
			slog.Error("app: publish to redis", "addr", cfg.Export.Redis.Addr, "err", err)
		}
		cancel()
	}

	a.store.Put(r)
	a.hub.Notify()

	slog.Info("app: report complete",
		"kind", kind,
		"samples", r.Samples,
		"dropped", r.Dropped,
		"sources", len(r.Sources),
		"charts", len(r.Charts),
		"summary", path,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// watch re-runs the report on changes to the config or the inputs. A
// reload that changes the input paths restarts the watcher on the new set.
func (a *App) watch(ctx context.Context) error {
	for {
		paths := a.watchPaths()
		wctx, stop := context.WithCancel(ctx)
		moved := false
		err := config.Watch(wctx, paths, a.Config().Watch.Debounce, func(changed []string) {
			if a.onChange(ctx, changed) && !slices.Equal(paths, a.watchPaths()) {
				moved = true
				stop()
			}
		})
		stop()
		if err != nil || !moved || ctx.Err() != nil {
			return err
		}
		slog.Info("app: watch set changed", "paths", a.watchPaths())
	}
}

// onChange reloads the config when it is among the changed files, then
// re-runs the report. A config that fails to load keeps the previous one.
// It reports whether the config was reloaded.
func (a *App) onChange(ctx context.Context, changed []string) bool {
	reloaded := false
	if a.opts.ConfigPath != "" && slices.ContainsFunc(changed, func(p string) bool {
		return samePath(p, a.opts.ConfigPath)
	}) {
		reloaded = a.reload()
	}

	slog.Info("app: input changed, re-running report", "paths", changed)
	if err := a.RunOnce(ctx); err != nil {
		slog.Error("app: report failed", "err", err)
	}
	return reloaded
}

func (a *App) reload() bool {
	cfg, err := a.opts.LoadConfig()
	if err != nil {
		slog.Error("app: reload config, keeping previous", "err", err)
		return false
	}
	if err := a.alerts.Reload(cfg.Alerts); err != nil {
		slog.Error("app: reload alert rules, keeping previous", "err", err)
		return false
	}
	slog.SetDefault(logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr))
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
	slog.Info("app: config reloaded", "path", a.opts.ConfigPath)
	return true
}

// watchPaths returns the config file plus the reporter's inputs.
func (a *App) watchPaths() []string {
	cfg := a.Config()
	paths := append([]string{}, a.rep.Inputs(cfg)...)
	if a.opts.ConfigPath != "" {
		paths = append(paths, a.opts.ConfigPath)
	}
	return paths
}

func samePath(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}

// PrintAlerts writes the alerts that fired or resolved in a run as a table.
func PrintAlerts(w io.Writer, changed []alerts.Alert) {
	fmt.Fprintf(w, "\nAlerts (%d):\n", len(changed))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATE\tSEVERITY\tRULE\tKIND\tSUBJECT\tVALUE")
	for _, al := range changed {
		v := "nan"
		if !math.IsNaN(al.Value) {
			v = fmt.Sprintf("%.6g", al.Value)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", al.State, al.Severity, al.RuleName, al.Kind, al.SubjectID, v)
	}
	tw.Flush()
}
