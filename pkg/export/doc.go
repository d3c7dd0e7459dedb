// Package export publishes finished reports: a summary.json file next to
// the charts, Prometheus gauges (scraped from /metrics or written to a
// node_exporter textfile) and a Redis copy of the latest reports.
package export
