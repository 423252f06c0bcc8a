// Package config defines the probe configuration structure.
package config

import "time"

// Default configuration values.
const (
	DefaultServer      = "wss://localhost:8090/wspool/"
	DefaultConnections = 1

	DefaultCAFile   = "./test-resources/ssl/ca/ca_crt.pem"
	DefaultCertFile = "./test-resources/ssl/certs/wspool-client.pem"
	DefaultKeyFile  = "./test-resources/ssl/private_keys/wspool-client.pem"

	DefaultHandshakeWait = 4 * time.Second
	DefaultLinger        = 4 * time.Second
	DefaultCloseTimeout  = 10 * time.Second

	DefaultLogLevel  = "debug"
	DefaultLogFormat = "text"

	DefaultOutputFormat = "table"
)

// Default returns the default probe configuration.
func Default() *ProbeConfig {
	return &ProbeConfig{
		Probe: ProbeSection{
			Server:        DefaultServer,
			Connections:   DefaultConnections,
			HandshakeWait: DefaultHandshakeWait,
			Linger:        DefaultLinger,
			CloseTimeout:  DefaultCloseTimeout,
		},
		TLS: TLSSection{
			CAFile:   DefaultCAFile,
			CertFile: DefaultCertFile,
			KeyFile:  DefaultKeyFile,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Output: OutputSection{
			Format: DefaultOutputFormat,
		},
	}
}
