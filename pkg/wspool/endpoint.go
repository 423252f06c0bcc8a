// Package wspool manages a pool of secure WebSocket client connections.
package wspool

import (
	"github.com/gorilla/websocket"

	"github.com/yndnr/wspool-go/pkg/tlsroots"
)

// endpoint holds the process-wide client TLS identity and the dialer
// built from it. It is created once by ConfigureSecureEndpoint and
// never mutated afterwards.
type endpoint struct {
	caFile   string
	certFile string
	keyFile  string

	dialer  *websocket.Dialer
	watcher *tlsroots.Watcher
}

// newEndpoint loads and validates the TLS material eagerly, so a
// broken configuration fails here instead of on the first dial.
func newEndpoint(caFile, certFile, keyFile string, cfg managerConfig) (*endpoint, error) {
	if caFile == "" || certFile == "" || keyFile == "" {
		return nil, ErrConfiguration.WithDetails("ca, certificate, and key paths are all required")
	}

	pool := tlsroots.NewEmptyPool()
	if err := pool.AddCertFile(caFile); err != nil {
		return nil, ErrConfiguration.WithDetails("ca certificate").WithCause(err)
	}

	tlsCfg, err := pool.ClientConfig(certFile, keyFile)
	if err != nil {
		return nil, ErrConfiguration.WithDetails("client credentials").WithCause(err)
	}

	ep := &endpoint{
		caFile:   caFile,
		certFile: certFile,
		keyFile:  keyFile,
	}

	if cfg.certRotation {
		w, err := tlsroots.NewWatcher(certFile, keyFile, tlsroots.WithLogger(cfg.logger))
		if err != nil {
			return nil, ErrConfiguration.WithDetails("rotation watcher").WithCause(err)
		}
		// Future handshakes serve the freshest keypair; the configured
		// paths themselves never change.
		tlsCfg.Certificates = nil
		tlsCfg.GetClientCertificate = w.GetClientCertificate
		w.StartAsync()
		ep.watcher = w
	}

	ep.dialer = &websocket.Dialer{
		Proxy:            nil,
		HandshakeTimeout: cfg.handshakeTimeout,
		TLSClientConfig:  tlsCfg,
	}

	return ep, nil
}

// stop releases endpoint resources.
func (e *endpoint) stop() {
	if e.watcher != nil {
		e.watcher.Stop()
	}
}
