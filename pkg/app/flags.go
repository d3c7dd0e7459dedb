package app

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/ntpscope/ntpscope/pkg/config"
)

// ExitError carries the process exit code for an error.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// ExitCode maps err to a process exit code: 0 for nil, the embedded code for
// an ExitError and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return 1
}

// Options are the command-line settings common to both report commands.
type Options struct {
	ConfigPath string
	Watch      bool

	listen    string
	outputDir string
	logLevel  string
	logFormat string

	// override applies command-specific flags on top of a loaded config.
	override func(*config.Config)
}

// BindFunc registers command-specific flags on fs and returns a function
// that copies the flags that were set into a loaded config.
type BindFunc func(fs *flag.FlagSet) func(*config.Config)

// ParseFlags parses args for the command name. It returns exit=true when
// the caller should stop without error (after -h). Usage errors are
// returned as an *ExitError with code 2.
func ParseFlags(name, summary string, args []string, out io.Writer, bind BindFunc) (*Options, bool, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprintf(out, "%s - %s\n\nUsage:\n  %s [options]\n\nOptions:\n", name, summary, name)
		fs.PrintDefaults()
	}

	opts := &Options{}
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to the YAML config file. Defaults apply when empty.")
	fs.BoolVar(&opts.Watch, "watch", false, "Re-run the report when the config or an input file changes.")
	fs.StringVar(&opts.listen, "listen", "", "Serve the API, charts, metrics and WebSocket stream on this address (e.g. :8080).")
	fs.StringVar(&opts.outputDir, "out", "", "Directory for charts and summary.json (overrides output_dir).")
	fs.StringVar(&opts.logLevel, "log-level", "", "Logging level: debug, info, warn or error.")
	fs.StringVar(&opts.logFormat, "log-format", "", "Log output format: auto, json or text.")
	if bind != nil {
		opts.override = bind(fs)
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if fs.NArg() > 0 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unexpected argument %q", fs.Arg(0))}
	}
	return opts, false, nil
}

// LoadConfig loads the config file named by o (or the defaults) and applies
// the flag overrides. It is called again on every config reload.
func (o *Options) LoadConfig() (*config.Config, error) {
	cfg := config.Default()
	if o.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(o.ConfigPath); err != nil {
			return nil, err
		}
	}

	if o.outputDir != "" {
		cfg.OutputDir = o.outputDir
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	if o.listen != "" {
		cfg.Server.Listen = o.listen
	}
	if o.override != nil {
		o.override(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
