// Package status builds point-in-time summaries of a task store.
//
// An Aggregator reads the four partitions concurrently and folds them into a
// Snapshot: per-partition counts, the pending, running and failed lists, and
// the most recently completed tasks. Publish writes the snapshot to
// tasks/status.json for consumers outside the queue (dashboards, the UI
// server). Render formats a snapshot for a terminal as a table, or as JSON
// or YAML.
package status
