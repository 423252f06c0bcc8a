// Package tlsroots provides TLS trust and client-credential management
// for outbound secure connections.
//
// This package handles the certificate material a TLS client needs:
//
//   - Trust Anchors: loading CA certificates from files, PEM blobs,
//     or directories into an x509.CertPool
//   - Client Credentials: loading a client certificate and private key
//     for mutual TLS
//   - Rotation: watching certificate files and serving the freshest
//     keypair to new handshakes via GetClientCertificate
//
// Usage:
//
//	pool := tlsroots.NewEmptyPool()
//	if err := pool.AddCertFile(caPath); err != nil { ... }
//	cfg, err := pool.ClientConfig(certPath, keyPath)
//
// Established connections are never affected by rotation; only new
// handshakes observe a reloaded keypair.
package tlsroots
