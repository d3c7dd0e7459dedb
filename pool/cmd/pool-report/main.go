// Command pool-report analyses an NTP pool monitor CSV export: it prints
// outlier, peer, monitor score, country score and compliance tables and
// writes the charts and summary.json to the output directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ntpscope/ntpscope/pkg/app"
	"github.com/ntpscope/ntpscope/pkg/config"
	"github.com/ntpscope/ntpscope/pkg/logging"
	"github.com/ntpscope/ntpscope/pkg/ntpdata"
	"github.com/ntpscope/ntpscope/pkg/types"
	"github.com/ntpscope/ntpscope/pool/internal/analysis"
	"github.com/ntpscope/ntpscope/pool/internal/render"
)

func main() {
	// Replaced by app.New once the config is loaded.
	slog.SetDefault(logging.New("info", "auto", os.Stderr))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(app.ExitCode(err))
	}
}

func run(ctx context.Context, outW io.Writer, args []string) error {
	var input, exclude string
	bind := func(fs *flag.FlagSet) func(*config.Config) {
		fs.StringVar(&input, "input", "", "Pool monitor CSV export (overrides pool.input).")
		fs.StringVar(&exclude, "exclude", "", "Drop monitors whose name contains this text (overrides pool.exclude).")
		return func(c *config.Config) {
			if input != "" {
				c.Pool.Input = input
			}
			if exclude != "" {
				c.Pool.Exclude = exclude
			}
		}
	}

	opts, exit, err := app.ParseFlags("pool-report", "NTP pool monitor analysis", args, outW, bind)
	if err != nil || exit {
		return err
	}

	a, err := app.New(opts, reporter{}, outW)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Run(ctx)
}

// reporter runs the pool analysis for app.App.
type reporter struct{}

func (reporter) Kind() types.Kind { return types.KindPool }

func (reporter) Inputs(cfg *config.Config) []string { return cfg.Inputs(string(types.KindPool)) }

func (r reporter) Run(ctx context.Context, cfg *config.Config, out io.Writer) (*types.Report, error) {
	pc := cfg.Pool
	raw, err := ntpdata.ReadMonitorCSV(pc.Input)
	if err != nil {
		return nil, err
	}

	res := analysis.Analyze(raw, pc)
	slog.Info("pool: samples loaded",
		"input", pc.Input,
		"rows", len(raw),
		"kept", len(res.Samples),
		"dropped", res.Dropped,
		"monitors", len(res.Scores),
	)
	res.PrintTables(out, pc.Thresholds.Offset)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	charts := render.All(res, render.Options{
		Bins:            pc.Bins,
		TopN:            pc.TopN,
		OffsetThreshold: pc.Thresholds.Offset,
		RollingWindow:   pc.RollingWindow,
	}, cfg.OutputDir)

	return res.Report(r.Inputs(cfg), charts, time.Now()), nil
}
