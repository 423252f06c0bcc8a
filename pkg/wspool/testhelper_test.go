package wspool

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
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/goleak"
)

// goleakOptions returns standard goleak options for manager tests.
// Goroutines parked in netpoll are filtered: the test servers' accept
// loops and connection readers wind down in t.Cleanup, after the leak
// check has already run.
func goleakOptions() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*Server).Serve"),
	}
}

// testPKI is an on-disk certificate chain for mutual TLS tests: one
// CA, a server leaf for the loopback address, and a client leaf, all
// signed by the same CA.
type testPKI struct {
	CAFile   string
	CertFile string
	KeyFile  string

	serverCert tls.Certificate
	caPool     *x509.CertPool

	caKey        *ecdsa.PrivateKey
	caCert       *x509.Certificate
	clientSerial int64
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
			CommonName:   "wspool test ca",
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

	caPool := x509.NewCertPool()
	caPool.AddCert(caCert)

	pki := &testPKI{
		CAFile:   caFile,
		CertFile: filepath.Join(dir, "client.crt"),
		KeyFile:  filepath.Join(dir, "client.key"),
		serverCert: tls.Certificate{
			Certificate: [][]byte{serverDER},
			PrivateKey:  serverKey,
		},
		caPool:       caPool,
		caKey:        caKey,
		caCert:       caCert,
		clientSerial: 2,
	}
	pki.RotateClientCert(t)
	return pki
}

// RotateClientCert writes a fresh client leaf over the configured cert
// and key files and returns its serial number.
func (p *testPKI) RotateClientCert(t *testing.T) int64 {
	t.Helper()

	p.clientSerial++
	serial := p.clientSerial

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey(client) error = %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject: pkix.Name{
			Organization: []string{"Test Org"},
			CommonName:   "wspool test client",
		},
		NotBefore:   time.Now().Add(-time.Hour),
		NotAfter:    time.Now().Add(24 * time.Hour),
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, p.caCert, &key.PublicKey, p.caKey)
	if err != nil {
		t.Fatalf("CreateCertificate(client) error = %v", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalECPrivateKey() error = %v", err)
	}

	// Key first, then cert, so a reload triggered by the first write
	// still reads a matched pair after its settle delay.
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(p.KeyFile, keyPEM, 0600); err != nil {
		t.Fatalf("WriteFile(client key) error = %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(p.CertFile, certPEM, 0644); err != nil {
		t.Fatalf("WriteFile(client cert) error = %v", err)
	}
	return serial
}

// serverTLS returns the server-side TLS config requiring a client
// certificate signed by the test CA.
func (p *testPKI) serverTLS() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{p.serverCert},
		ClientCAs:    p.caPool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS12,
	}
}

// startWSServer starts a TLS test server that upgrades every request
// and hands the socket to fn. A client certificate signed by the test
// CA is required.
func startWSServer(t *testing.T, pki *testPKI, fn func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	ts := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		fn(conn)
	}))
	ts.TLS = pki.serverTLS()
	ts.StartTLS()
	t.Cleanup(ts.Close)
	return ts
}

// startEchoServer starts a server that echoes every frame back.
func startEchoServer(t *testing.T, pki *testPKI) *httptest.Server {
	t.Helper()

	return startWSServer(t, pki, func(conn *websocket.Conn) {
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(msgType, data); err != nil {
				return
			}
		}
	})
}

// startStallListener returns a TCP listener that accepts connections
// and never answers, so TLS handshakes hang until cancelled.
func startStallListener(t *testing.T) net.Listener {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	var mu sync.Mutex
	var held []net.Conn
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			held = append(held, conn)
			mu.Unlock()
		}
	}()

	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		for _, conn := range held {
			conn.Close()
		}
		mu.Unlock()
	})
	return ln
}

// wssURL rewrites an httptest TLS server URL to the wss scheme.
func wssURL(ts *httptest.Server) string {
	return "wss" + strings.TrimPrefix(ts.URL, "https")
}

// newTestManager creates a manager with a quiet logger and registers a
// cleanup shutdown.
func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()

	base := []Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}
	m := NewManager(append(base, opts...)...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		m.Shutdown(ctx)
	})
	return m
}

// configureTestEndpoint points the manager at the test PKI.
func configureTestEndpoint(t *testing.T, m *Manager, pki *testPKI) {
	t.Helper()

	if err := m.ConfigureSecureEndpoint(pki.CAFile, pki.CertFile, pki.KeyFile); err != nil {
		t.Fatalf("ConfigureSecureEndpoint() error = %v", err)
	}
}

// connEvents wires a connection's callbacks to channels and counters
// so tests can wait on lifecycle events and assert exactly-once
// delivery afterwards.
type connEvents struct {
	opened chan struct{}
	failed chan error
	closed chan struct{}
	msgs   chan string

	openCount  atomic.Int32
	failCount  atomic.Int32
	closeCount atomic.Int32
}

func watchConn(t *testing.T, c *Connection) *connEvents {
	t.Helper()

	ev := &connEvents{
		opened: make(chan struct{}, 4),
		failed: make(chan error, 4),
		closed: make(chan struct{}, 4),
		msgs:   make(chan string, 256),
	}
	err := c.SetCallbacks(Callbacks{
		OnOpen: func(id string) {
			ev.openCount.Add(1)
			ev.opened <- struct{}{}
		},
		OnFail: func(id string, reason error) {
			ev.failCount.Add(1)
			ev.failed <- reason
		},
		OnClose: func(id string) {
			ev.closeCount.Add(1)
			ev.closed <- struct{}{}
		},
		OnMessage: func(id, payload string) {
			ev.msgs <- payload
		},
	})
	if err != nil {
		t.Fatalf("SetCallbacks() error = %v", err)
	}
	return ev
}

// waitSignal waits for a signal on ch or fails the test.
func waitSignal(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()

	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout waiting for %s", what)
	}
}

// waitError waits for an error on ch or fails the test.
func waitError(t *testing.T, ch <-chan error, what string) error {
	t.Helper()

	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout waiting for %s", what)
		return nil
	}
}

// waitMessage waits for a payload on ch or fails the test.
func waitMessage(t *testing.T, ch <-chan string, what string) string {
	t.Helper()

	select {
	case payload := <-ch:
		return payload
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout waiting for %s", what)
		return ""
	}
}

// waitDone waits for the connection to reach a terminal state.
func waitDone(t *testing.T, c *Connection) {
	t.Helper()

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout waiting for connection %s to settle, state %s", c.ID(), c.State())
	}
}

// recordingMetrics counts metric callbacks for assertions.
type recordingMetrics struct {
	created       atomic.Int64
	handshakeOK   atomic.Int64
	handshakeFail atomic.Int64
	failed        atomic.Int64
	closed        atomic.Int64
	sentMsgs      atomic.Int64
	sentBytes     atomic.Int64
	receivedMsgs  atomic.Int64
	receivedBytes atomic.Int64
}

func (r *recordingMetrics) ConnectionCreated()  { r.created.Add(1) }
func (r *recordingMetrics) HandshakeSucceeded() { r.handshakeOK.Add(1) }
func (r *recordingMetrics) HandshakeFailed()    { r.handshakeFail.Add(1) }
func (r *recordingMetrics) ConnectionFailed()   { r.failed.Add(1) }
func (r *recordingMetrics) ConnectionClosed()   { r.closed.Add(1) }

func (r *recordingMetrics) MessageSent(bytes int) {
	r.sentMsgs.Add(1)
	r.sentBytes.Add(int64(bytes))
}

func (r *recordingMetrics) MessageReceived(bytes int) {
	r.receivedMsgs.Add(1)
	r.receivedBytes.Add(int64(bytes))
}
