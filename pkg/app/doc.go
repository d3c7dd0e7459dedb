// Package app is the command shell shared by pool-report and local-report.
//
// It parses flags, loads the YAML config, runs a Reporter and fans the
// finished report out to the summary file, Prometheus, alert rules, Redis
// and the serve-mode store. With -watch the report re-runs whenever the
// config or an input file changes; with -listen the results are served over
// HTTP until the process is interrupted.
package app
