// Package progress provides the event primitives, non-blocking hub, and emitter
// interfaces that the crawl orchestrator uses to report run progress. Events
// are batched on a background goroutine and fanned out to pluggable sinks such
// as structured logs, Prometheus gauges or the in-memory status view served by
// the API.
package progress
