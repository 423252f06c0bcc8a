// Package config defines the probe configuration structure.
package config

import "time"

// ProbeConfig is the root configuration for wspool-probe.
type ProbeConfig struct {
	Probe   ProbeSection   `koanf:"probe"`
	TLS     TLSSection     `koanf:"tls"`
	Log     LogSection     `koanf:"log"`
	Metrics MetricsSection `koanf:"metrics"`
	Output  OutputSection  `koanf:"output"`
}

// ProbeSection configures the connection exercise itself.
type ProbeSection struct {
	// Server is the wss:// URL every connection dials.
	Server string `koanf:"server"`

	// Connections is the number of connections to create.
	Connections int `koanf:"connections"`

	// HandshakeWait bounds the wait for handshakes to settle after
	// opening, before the synchronous sends start.
	HandshakeWait time.Duration `koanf:"handshake_wait"`

	// Linger is how long to keep connections up after sending, so
	// server replies can arrive.
	Linger time.Duration `koanf:"linger"`

	// CloseTimeout bounds the final close of all connections.
	CloseTimeout time.Duration `koanf:"close_timeout"`

	// SendRate paces the repeated message barrage in messages per
	// second. Zero sends unpaced.
	SendRate float64 `koanf:"send_rate"`

	// Repeat is how many extra rounds of the positional messages each
	// open connection sends after the synchronous round. Zero disables
	// the barrage.
	Repeat int `koanf:"repeat"`
}

// TLSSection configures client TLS material.
type TLSSection struct {
	CAFile   string `koanf:"ca_file"`
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`

	// Watch enables reloading the certificate files when they change
	// on disk.
	Watch bool `koanf:"watch"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	// Addr is the listen address for /metrics. Empty disables the
	// endpoint.
	Addr string `koanf:"addr"`
}

// OutputSection configures the final report rendering.
type OutputSection struct {
	Format string `koanf:"format"`
}
