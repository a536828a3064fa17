// Package progress carries run, batch and task milestones from the harvest
// scheduler to pluggable sinks. Emitters never block: events are buffered,
// batched on a background goroutine and fanned out to sinks such as the
// structured log or Prometheus.
package progress
