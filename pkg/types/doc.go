// Package types defines the report types shared by the pool and local
// analysers and every output surface (console, JSON summary, Prometheus,
// Redis, HTTP API). A Report is the canonical in-memory result of one
// analysis run, independent of how it is rendered or shipped.
package types
