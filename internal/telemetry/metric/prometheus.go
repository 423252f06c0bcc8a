// Package metric provides Prometheus metrics for the connection pool.
package metric

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yndnr/wspool-go/pkg/wspool"
)

// Registry holds all pool metrics. It implements wspool.Metrics, so a
// manager built with WithMetrics(metric.Global()) reports straight
// into Prometheus.
type Registry struct {
	registry *prometheus.Registry

	// Lifecycle counters
	ConnectionsCreated   prometheus.Counter
	HandshakesSucceeded  prometheus.Counter
	HandshakesFailed     prometheus.Counter
	ConnectionsFailed    prometheus.Counter
	ConnectionsClosed    prometheus.Counter

	// ConnectionsActive counts connections not yet in a terminal state.
	ConnectionsActive prometheus.Gauge

	// Message counters
	MessagesSent       prometheus.Counter
	MessagesSentBytes  prometheus.Counter
	MessagesReceived   prometheus.Counter
	MessagesRecvBytes  prometheus.Counter
}

var _ wspool.Metrics = (*Registry)(nil)

// NewRegistry creates a new metrics registry with all pool metrics and
// the standard Go runtime and process collectors registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,

		ConnectionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wspool_connections_created_total",
			Help: "Connections registered by CreateConnection.",
		}),
		HandshakesSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wspool_handshakes_succeeded_total",
			Help: "Handshakes that completed and opened a connection.",
		}),
		HandshakesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wspool_handshakes_failed_total",
			Help: "Handshakes that failed before the connection opened.",
		}),
		ConnectionsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wspool_connections_failed_total",
			Help: "Open connections that ended in a transport failure.",
		}),
		ConnectionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wspool_connections_closed_total",
			Help: "Connections that reached the closed state.",
		}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wspool_connections_active",
			Help: "Connections not yet in a terminal state.",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wspool_messages_sent_total",
			Help: "Outbound text frames written to the transport.",
		}),
		MessagesSentBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wspool_sent_bytes_total",
			Help: "Payload bytes written to the transport.",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wspool_messages_received_total",
			Help: "Inbound text frames delivered to callbacks.",
		}),
		MessagesRecvBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wspool_received_bytes_total",
			Help: "Payload bytes received from the transport.",
		}),
	}

	reg.MustRegister(
		r.ConnectionsCreated,
		r.HandshakesSucceeded,
		r.HandshakesFailed,
		r.ConnectionsFailed,
		r.ConnectionsClosed,
		r.ConnectionsActive,
		r.MessagesSent,
		r.MessagesSentBytes,
		r.MessagesReceived,
		r.MessagesRecvBytes,
	)

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// ConnectionCreated implements wspool.Metrics.
func (r *Registry) ConnectionCreated() {
	r.ConnectionsCreated.Inc()
	r.ConnectionsActive.Inc()
}

// HandshakeSucceeded implements wspool.Metrics.
func (r *Registry) HandshakeSucceeded() {
	r.HandshakesSucceeded.Inc()
}

// HandshakeFailed implements wspool.Metrics. The connection is
// terminal, so it also leaves the active set.
func (r *Registry) HandshakeFailed() {
	r.HandshakesFailed.Inc()
	r.ConnectionsActive.Dec()
}

// ConnectionFailed implements wspool.Metrics.
func (r *Registry) ConnectionFailed() {
	r.ConnectionsFailed.Inc()
	r.ConnectionsActive.Dec()
}

// ConnectionClosed implements wspool.Metrics.
func (r *Registry) ConnectionClosed() {
	r.ConnectionsClosed.Inc()
	r.ConnectionsActive.Dec()
}

// MessageSent implements wspool.Metrics.
func (r *Registry) MessageSent(bytes int) {
	r.MessagesSent.Inc()
	r.MessagesSentBytes.Add(float64(bytes))
}

// MessageReceived implements wspool.Metrics.
func (r *Registry) MessageReceived(bytes int) {
	r.MessagesReceived.Inc()
	r.MessagesRecvBytes.Add(float64(bytes))
}

// MustRegister registers extra collectors, such as the pool-state
// collector, with this registry.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.registry.MustRegister(cs...)
}

// Handler returns an HTTP handler serving this registry's metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

var (
	global     *Registry
	globalOnce sync.Once
)

// Global returns the process-wide metrics registry, creating it on
// first use.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewRegistry()
	})
	return global
}

// Handler returns an HTTP handler for the global registry's /metrics
// endpoint.
func Handler() http.Handler {
	return Global().Handler()
}
