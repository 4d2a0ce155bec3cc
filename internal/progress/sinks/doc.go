// Package sinks implements concrete progress consumers: structured logging,
// Prometheus gauges and an in-memory status view. Each sink satisfies the
// progress.Sink interface and is safe for repeated Consume/Close cycles.
package sinks
