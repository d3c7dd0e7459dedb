// Command local-report analyses the loopstats, peerstats and clockstats
// files of a local ntpd: it prints the per-peer compliance table and writes
// the charts and summary.json to the output directory.
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

	"github.com/ntpscope/ntpscope/local/internal/analysis"
	"github.com/ntpscope/ntpscope/local/internal/render"
	"github.com/ntpscope/ntpscope/pkg/app"
	"github.com/ntpscope/ntpscope/pkg/config"
	"github.com/ntpscope/ntpscope/pkg/logging"
	"github.com/ntpscope/ntpscope/pkg/ntpdata"
	"github.com/ntpscope/ntpscope/pkg/types"
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
	var loopstats, peerstats, clockstats, ppsPeer string
	bind := func(fs *flag.FlagSet) func(*config.Config) {
		fs.StringVar(&loopstats, "loopstats", "", "ntpd loopstats file (overrides local.loopstats).")
		fs.StringVar(&peerstats, "peerstats", "", "ntpd peerstats file (overrides local.peerstats).")
		fs.StringVar(&clockstats, "clockstats", "", "ntpd clockstats file (overrides local.clockstats).")
		fs.StringVar(&ppsPeer, "pps-peer", "", "Refclock address of the PPS driver (overrides local.pps_peer).")
		return func(c *config.Config) {
			if loopstats != "" {
				c.Local.Loopstats = loopstats
			}
			if peerstats != "" {
				c.Local.Peerstats = peerstats
			}
			if clockstats != "" {
				c.Local.Clockstats = clockstats
			}
			if ppsPeer != "" {
				c.Local.PPSPeer = ppsPeer
			}
		}
	}

	opts, exit, err := app.ParseFlags("local-report", "Local ntpd statistics analysis", args, outW, bind)
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

// reporter runs the local analysis for app.App.
type reporter struct{}

func (reporter) Kind() types.Kind { return types.KindLocal }

func (reporter) Inputs(cfg *config.Config) []string { return cfg.Inputs(string(types.KindLocal)) }

func (r reporter) Run(ctx context.Context, cfg *config.Config, out io.Writer) (*types.Report, error) {
	lc := cfg.Local
	in, err := load(lc)
	if err != nil {
		return nil, err
	}

	res := analysis.Analyze(in, lc)
	slog.Info("local: stats loaded",
		"loopstats", len(in.Loop),
		"peerstats", len(in.Peer),
		"clockstats", len(in.Clock),
		"skipped", in.Skipped,
		"peers", len(res.Peers),
	)
	res.PrintScores(out)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	charts := render.All(res, render.Options{
		Bins:            lc.Bins,
		RollingWindow:   lc.RollingWindow,
		StabilityWindow: lc.StabilityWindow,
	}, cfg.OutputDir)
	analysis.PrintCharts(out, charts)

	return res.Report(r.Inputs(cfg), charts, time.Now()), nil
}

func load(lc config.LocalConfig) (analysis.Input, error) {
	var (
		in      analysis.Input
		skipped int
		err     error
	)
	if in.Loop, skipped, err = ntpdata.ReadLoopstats(lc.Loopstats); err != nil {
		return in, err
	}
	in.Skipped += skipped
	if in.Peer, skipped, err = ntpdata.ReadPeerstats(lc.Peerstats); err != nil {
		return in, err
	}
	in.Skipped += skipped
	if in.Clock, skipped, err = ntpdata.ReadClockstats(lc.Clockstats); err != nil {
		return in, err
	}
	in.Skipped += skipped
	return in, nil
}
