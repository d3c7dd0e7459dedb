// Package ws pushes the latest reports and alerts to WebSocket clients at
// /ws/stream. Each client receives a snapshot on connect and again on every
// broadcast tick, or immediately when Notify is called after a new report.
package ws
