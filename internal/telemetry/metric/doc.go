// Package metric provides Prometheus metrics for the connection pool.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: Prometheus registry and HTTP handler
//   - collector.go: Live pool-state collector
//
// Metrics include:
//
//   - Connection lifecycle counters (created, opened, failed, closed)
//   - Message and byte counters for both directions
//   - A per-state gauge sampled from the live pool
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
