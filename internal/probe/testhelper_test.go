package probe

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yndnr/wspool-go/internal/config"
	"github.com/yndnr/wspool-go/internal/telemetry/logger"
	"github.com/yndnr/wspool-go/pkg/wspool"
)

// testPKI is an on-disk certificate chain for mutual TLS tests: one
// CA, a server leaf for the loopback address, and a client leaf.
type testPKI struct {
	CAFile   string
	CertFile string
	KeyFile  string

	serverCert tls.Certificate
	caPool     *x509.CertPool
}

// generateTestPKI builds the chain and writes the client-side files
// into a temp directory.
func generateTestPKI(t *testing.T) *testPKI {
	t.Helper()

	dir := t.TempDir()

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey(ca) error = %v", err)
	}
	caTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"Test Org"},
			CommonName:   "probe test ca",
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	if err != nil {
		t.Fatalf("CreateCertificate(ca) error = %v", err)
	}
	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		t.Fatalf("ParseCertificate(ca) error = %v", err)
	}

	caFile := filepath.Join(dir, "ca.pem")
	caPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caDER})
	if err := os.WriteFile(caFile, caPEM, 0644); err != nil {
		t.Fatalf("WriteFile(ca) error = %v", err)
	}

	serverKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey(server) error = %v", err)
	}
	serverTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject: pkix.Name{
			Organization: []string{"Test Org"},
			CommonName:   "127.0.0.1",
		},
		NotBefore:   time.Now().Add(-time.Hour),
		NotAfter:    time.Now().Add(24 * time.Hour),
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:    []string{"localhost"},
		IPAddresses: []net.IP{net.ParseIP("127.0.0.1"), net.IPv6loopback},
	}
	serverDER, err := x509.CreateCertificate(rand.Reader, serverTemplate, caCert, &serverKey.PublicKey, caKey)
	if err != nil {
		t.Fatalf("CreateCertificate(server) error = %v", err)
	}

	clientKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey(client) error = %v", err)
	}
	clientTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(3),
		Subject: pkix.Name{
			Organization: []string{"Test Org"},
			CommonName:   "probe test client",
		},
		NotBefore:   time.Now().Add(-time.Hour),
		NotAfter:    time.Now().Add(24 * time.Hour),
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	clientDER, err := x509.CreateCertificate(rand.Reader, clientTemplate, caCert, &clientKey.PublicKey, caKey)
	if err != nil {
		t.Fatalf("CreateCertificate(client) error = %v", err)
	}
	clientKeyDER, err := x509.MarshalECPrivateKey(clientKey)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey() error = %v", err)
	}

	certFile := filepath.Join(dir, "client.crt")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: clientDER})
	if err := os.WriteFile(certFile, certPEM, 0644); err != nil {
		t.Fatalf("WriteFile(client cert) error = %v", err)
	}
	keyFile := filepath.Join(dir, "client.key")
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: clientKeyDER})
	if err := os.WriteFile(keyFile, keyPEM, 0600); err != nil {
		t.Fatalf("WriteFile(client key) error = %v", err)
	}

	caPool := x509.NewCertPool()
	caPool.AddCert(caCert)

	return &testPKI{
		CAFile:   caFile,
		CertFile: certFile,
		KeyFile:  keyFile,
		serverCert: tls.Certificate{
			Certificate: [][]byte{serverDER},
			PrivateKey:  serverKey,
		},
		caPool: caPool,
	}
}

// startEchoServer starts a TLS test server that upgrades every request
// and echoes every frame back. A client certificate signed by the test
// CA is required.
func startEchoServer(t *testing.T, pki *testPKI) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	ts := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(msgType, data); err != nil {
				return
			}
		}
	}))
	ts.TLS = &tls.Config{
		Certificates: []tls.Certificate{pki.serverCert},
		ClientCAs:    pki.caPool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS12,
	}
	ts.StartTLS()
	t.Cleanup(ts.Close)
	return ts
}

// wssURL rewrites an httptest TLS server URL to the wss scheme.
func wssURL(ts *httptest.Server) string {
	return "wss" + strings.TrimPrefix(ts.URL, "https")
}

// quietLogger returns a logger that swallows everything below error.
func quietLogger(t *testing.T) logger.Logger {
	t.Helper()

	l, err := logger.New(logger.Config{Level: "error", Format: "text", Output: io.Discard})
	if err != nil {
		t.Fatalf("logger.New() error = %v", err)
	}
	return l
}

// testRunConfig returns a configuration pointed at the given server,
// with waits short enough for tests. JSON output keeps the progress
// widgets quiet.
func testRunConfig(server string, pki *testPKI) *config.ProbeConfig {
	cfg := config.Default()
	cfg.Probe.Server = server
	cfg.Probe.HandshakeWait = 5 * time.Second
	cfg.Probe.Linger = 300 * time.Millisecond
	cfg.Probe.CloseTimeout = 5 * time.Second
	cfg.TLS.CAFile = pki.CAFile
	cfg.TLS.CertFile = pki.CertFile
	cfg.TLS.KeyFile = pki.KeyFile
	cfg.Output.Format = "json"
	return cfg
}

// newTestShell builds a shell over a configured pool and registers a
// cleanup shutdown.
func newTestShell(t *testing.T, pki *testPKI, server string) *Shell {
	t.Helper()

	cfg := testRunConfig(server, pki)
	m := NewPool(cfg, quietLogger(t), nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		m.Shutdown(ctx)
	})
	if err := m.ConfigureSecureEndpoint(pki.CAFile, pki.CertFile, pki.KeyFile); err != nil {
		t.Fatalf("ConfigureSecureEndpoint() error = %v", err)
	}
	return NewShell(m, server, quietLogger(t))
}

// waitState polls until the connection reaches the given state.
func waitState(t *testing.T, c *wspool.Connection, want wspool.State) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("connection %s state = %s, want %s", c.ID(), c.State(), want)
}
