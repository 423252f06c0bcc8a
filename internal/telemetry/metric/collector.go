// Package metric provides Prometheus metrics for the connection pool.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/wspool-go/pkg/wspool"
)

// Pool is the slice of the manager the collector samples.
type Pool interface {
	Connections() []*wspool.Connection
}

// PoolCollector samples per-state connection counts from a live pool
// on every scrape.
type PoolCollector struct {
	pool   Pool
	states *prometheus.Desc
}

// NewPoolCollector creates a collector reading from the given pool.
func NewPoolCollector(pool Pool) *PoolCollector {
	return &PoolCollector{
		pool: pool,
		states: prometheus.NewDesc(
			"wspool_pool_connections",
			"Connections in the pool by lifecycle state.",
			[]string{"state"},
			nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.states
}

// Collect implements prometheus.Collector. Every known state is
// reported, zero included, so scrapes always see the full series set.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	counts := map[wspool.State]int{
		wspool.StateConnecting: 0,
		wspool.StateOpen:       0,
		wspool.StateFailing:    0,
		wspool.StateFailed:     0,
		wspool.StateClosing:    0,
		wspool.StateClosed:     0,
	}

	for _, conn := range c.pool.Connections() {
		counts[conn.State()]++
	}

	for state, n := range counts {
		ch <- prometheus.MustNewConstMetric(
			c.states,
			prometheus.GaugeValue,
			float64(n),
			state.String(),
		)
	}
}
