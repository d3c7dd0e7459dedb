package app

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/ntpscope/ntpscope/pkg/config"
	"github.com/ntpscope/ntpscope/pkg/export"
	"github.com/ntpscope/ntpscope/pkg/types"
)

// fakeReporter returns a fixed two-monitor pool report and counts runs.
type fakeReporter struct {
	input string
	runs  atomic.Int32
	err   error
}

func (f *fakeReporter) Kind() types.Kind { return types.KindPool }

// Inputs returns the fixed input when set, else pool.input from cfg.
func (f *fakeReporter) Inputs(cfg *config.Config) []string {
	if f.input != "" {
		return []string{f.input}
	}
	return []string{cfg.Pool.Input}
}

func (f *fakeReporter) Run(_ context.Context, cfg *config.Config, out io.Writer) (*types.Report, error) {
	f.runs.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if err := os.WriteFile(filepath.Join(cfg.OutputDir, "chart.png"), []byte("png"), 0o644); err != nil {
		return nil, err
	}
	fmt.Fprintln(out, "table")
	return &types.Report{
		Kind:        types.KindPool,
		GeneratedAt: time.Now(),
		Samples:     10,
		Sources: []types.SourceScore{
			{ID: "deams1", Group: "de", Samples: 5, Score: 0.9},
			{ID: "usnyc1", Group: "us", Samples: 5, Score: 0.2},
		},
		Charts: []string{"chart.png"},
	}, nil
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "ntpscope.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func newApp(t *testing.T, rep Reporter, out io.Writer, args ...string) *App {
	t.Helper()
	opts, exit, err := ParseFlags("pool-report", "test", args, io.Discard, nil)
	if err != nil || exit {
		t.Fatalf("ParseFlags: exit=%v err=%v", exit, err)
	}
	a, err := New(opts, rep, out)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestParseFlags(t *testing.T) {
	var help bytes.Buffer
	_, exit, err := ParseFlags("pool-report", "pool analysis", []string{"-h"}, &help, nil)
	if err != nil || !exit {
		t.Errorf("-h: exit=%v err=%v", exit, err)
	}
	if !strings.Contains(help.String(), "-watch") {
		t.Errorf("usage does not list -watch:\n%s", help.String())
	}

	_, _, err = ParseFlags("pool-report", "", []string{"-nope"}, io.Discard, nil)
	if ExitCode(err) != 2 {
		t.Errorf("unknown flag: exit code %d, want 2", ExitCode(err))
	}
	_, _, err = ParseFlags("pool-report", "", []string{"stray"}, io.Discard, nil)
	if ExitCode(err) != 2 {
		t.Errorf("stray argument: exit code %d, want 2", ExitCode(err))
	}
	if ExitCode(nil) != 0 || ExitCode(errors.New("x")) != 1 {
		t.Error("ExitCode: wrong default mapping")
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "output_dir: from-file\nlog:\n  level: debug\npool:\n  input: file.csv\n")

	var input string
	bind := func(fs *flag.FlagSet) func(*config.Config) {
		fs.StringVar(&input, "input", "", "monitor CSV")
		return func(c *config.Config) {
			if input != "" {
				c.Pool.Input = input
			}
		}
	}
	opts, _, err := ParseFlags("pool-report", "", []string{"-config", cfgPath, "-out", "flag-out", "-input", "flag.csv"}, io.Discard, bind)
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	cfg, err := opts.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.OutputDir != "flag-out" {
		t.Errorf("OutputDir: got %q, want flag-out", cfg.OutputDir)
	}
	if cfg.Pool.Input != "flag.csv" {
		t.Errorf("Pool.Input: got %q, want flag.csv", cfg.Pool.Input)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level: got %q, want debug from file", cfg.Log.Level)
	}

	opts, _, _ = ParseFlags("pool-report", "", []string{"-log-format", "xml"}, io.Discard, nil)
	if _, err := opts.LoadConfig(); err == nil {
		t.Error("invalid -log-format: expected validation error")
	}
}

func TestRunOnce_PublishesEverywhere(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	textfile := filepath.Join(dir, "ntpscope.prom")
	cfgPath := writeConfig(t, dir, fmt.Sprintf(`
output_dir: %s
export:
  prometheus_textfile: %s
  redis:
    addr: %s
alerts:
  rules:
    - name: low-score
      condition: score < 0.5
      severity: critical
`, out, textfile, mr.Addr()))

	rep := &fakeReporter{}
	var console bytes.Buffer
	a := newApp(t, rep, &console, "-config", cfgPath)

	if err := a.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(out, export.SummaryFile))
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	r, err := export.UnmarshalReport(data)
	if err != nil || len(r.Sources) != 2 {
		t.Fatalf("summary report: %+v, %v", r, err)
	}

	prom, err := os.ReadFile(textfile)
	if err != nil {
		t.Fatalf("textfile: %v", err)
	}
	if !strings.Contains(string(prom), `ntpscope_source_score{group="de",kind="pool",source="deams1"} 0.9`) {
		t.Errorf("textfile missing deams1 score:\n%s", prom)
	}

	if !strings.Contains(console.String(), "low-score") || !strings.Contains(console.String(), "usnyc1") {
		t.Errorf("console missing alert table:\n%s", console.String())
	}

	if !mr.Exists("ntpscope:pool:latest") {
		t.Error("redis: latest key not written")
	}
	if _, ok := a.store.Get(types.KindPool); !ok {
		t.Error("store: report not stored")
	}
}

func TestRunOnce_ReporterError(t *testing.T) {
	rep := &fakeReporter{err: errors.New("boom")}
	a := newApp(t, rep, io.Discard, "-out", t.TempDir())

	err := a.RunOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("RunOnce: got %v, want boom", err)
	}
	if a.store.Count() != 0 {
		t.Error("store: failed run must not store a report")
	}
}

func TestHandler(t *testing.T) {
	rep := &fakeReporter{}
	a := newApp(t, rep, io.Discard, "-out", t.TempDir())
	if err := a.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	for path, want := range map[string]string{
		"/api/v1/reports/pool":          `"deams1"`,
		"/charts/chart.png":             "png",
		"/charts/" + export.SummaryFile: `"pool"`,
		"/metrics":                      `ntpscope_report_runs_total{kind="pool",result="ok"} 1`,
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: status %d", path, resp.StatusCode)
			continue
		}
		if !strings.Contains(string(body), want) {
			t.Errorf("GET %s: body does not contain %s", path, want)
		}
	}
}

func TestRun_WatchReruns(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "ntp.txt")
	if err := os.WriteFile(input, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgPath := writeConfig(t, dir, "output_dir: "+filepath.Join(dir, "out")+"\nwatch:\n  debounce: 10ms\n")

	rep := &fakeReporter{input: input}
	a := newApp(t, rep, io.Discard, "-config", cfgPath, "-watch")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for rep.runs.Load() < 2 && time.Now().Before(deadline) {
		os.WriteFile(input, []byte(time.Now().String()), 0o644) //nolint:errcheck
		time.Sleep(50 * time.Millisecond)
	}
	cancel()

	if n := rep.runs.Load(); n < 2 {
		t.Errorf("runs: got %d, want at least 2", n)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_WatchFollowsReloadedInputs(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.csv")
	second := filepath.Join(dir, "second.csv")
	for _, p := range []string{first, second} {
		if err := os.WriteFile(p, []byte("v1"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	base := "output_dir: " + filepath.Join(dir, "out") + "\nwatch:\n  debounce: 10ms\npool:\n  input: "
	cfgPath := writeConfig(t, dir, base+first+"\n")

	rep := &fakeReporter{}
	a := newApp(t, rep, io.Discard, "-config", cfgPath, "-watch")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	waitRuns := func(n int32, touch func()) {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		for rep.runs.Load() < n && time.Now().Before(deadline) {
			touch()
			time.Sleep(50 * time.Millisecond)
		}
		if got := rep.runs.Load(); got < n {
			t.Fatalf("runs: got %d, want at least %d", got, n)
		}
	}

	// Replace the config atomically so a reload never reads a partial file.
	rewrite := func() {
		tmp := cfgPath + ".tmp"
		os.WriteFile(tmp, []byte(base+second+"\n"), 0o644) //nolint:errcheck
		os.Rename(tmp, cfgPath)                            //nolint:errcheck
	}
	// The reload itself re-runs the report.
	waitRuns(2, rewrite)
	if got := a.Config().Pool.Input; got != second {
		t.Fatalf("Pool.Input after reload: got %q, want %q", got, second)
	}

	// Writes to the new input are now watched.
	n := rep.runs.Load()
	waitRuns(n+1, func() { os.WriteFile(second, []byte(time.Now().String()), 0o644) }) //nolint:errcheck

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNew_UnreachableRedisIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "output_dir: "+filepath.Join(dir, "out")+"\nexport:\n  redis:\n    addr: 127.0.0.1:1\n")

	rep := &fakeReporter{}
	a := newApp(t, rep, io.Discard, "-config", cfgPath)
	if a.redis == nil {
		t.Fatal("redis sink not created")
	}
	if err := a.RunOnce(context.Background()); err != nil {
		t.Errorf("RunOnce with unreachable redis: %v", err)
	}
	if _, ok := a.store.Get(types.KindPool); !ok {
		t.Error("store: report not stored")
	}
}
