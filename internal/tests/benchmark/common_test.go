package benchmark

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yndnr/wspool-go/pkg/wspool"
)

// PoolCounts defines the pool sizes for benchmarking.
var PoolCounts = []int{100, 1000, 10000, 50000}

// SmallPoolCounts for quick benchmarks.
var SmallPoolCounts = []int{100, 1000}

// benchURL is a syntactically valid target for registration
// benchmarks, which never dial.
const benchURL = "wss://bench.invalid:8090/wspool/"

// benchPKI is an on-disk certificate chain for benchmarks that open
// real connections.
type benchPKI struct {
	CAFile   string
	CertFile string
	KeyFile  string

	serverCert tls.Certificate
	caPool     *x509.CertPool
}

// generateBenchPKI builds a CA, a server leaf for the loopback
// address, and a client leaf, writing the client files to a temp
// directory.
func generateBenchPKI(tb testing.TB) *benchPKI {
	tb.Helper()

	dir := tb.TempDir()

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		tb.Fatalf("GenerateKey(ca) error = %v", err)
	}
	caTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"Bench Org"},
			CommonName:   "bench ca",
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	if err != nil {
		tb.Fatalf("CreateCertificate(ca) error = %v", err)
	}
	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		tb.Fatalf("ParseCertificate(ca) error = %v", err)
	}

	caFile := filepath.Join(dir, "ca.pem")
	caPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caDER})
	if err := os.WriteFile(caFile, caPEM, 0644); err != nil {
		tb.Fatalf("WriteFile(ca) error = %v", err)
	}

	serverKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		tb.Fatalf("GenerateKey(server) error = %v", err)
	}
	serverTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject: pkix.Name{
			Organization: []string{"Bench Org"},
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
		tb.Fatalf("CreateCertificate(server) error = %v", err)
	}

	clientKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		tb.Fatalf("GenerateKey(client) error = %v", err)
	}
	clientTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(3),
		Subject: pkix.Name{
			Organization: []string{"Bench Org"},
			CommonName:   "bench client",
		},
		NotBefore:   time.Now().Add(-time.Hour),
		NotAfter:    time.Now().Add(24 * time.Hour),
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	clientDER, err := x509.CreateCertificate(rand.Reader, clientTemplate, caCert, &clientKey.PublicKey, caKey)
	if err != nil {
		tb.Fatalf("CreateCertificate(client) error = %v", err)
	}
	clientKeyDER, err := x509.MarshalECPrivateKey(clientKey)
	if err != nil {
		tb.Fatalf("MarshalECPrivateKey() error = %v", err)
	}

	certFile := filepath.Join(dir, "client.crt")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: clientDER})
	if err := os.WriteFile(certFile, certPEM, 0644); err != nil {
		tb.Fatalf("WriteFile(client cert) error = %v", err)
	}
	keyFile := filepath.Join(dir, "client.key")
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: clientKeyDER})
	if err := os.WriteFile(keyFile, keyPEM, 0600); err != nil {
		tb.Fatalf("WriteFile(client key) error = %v", err)
	}

	caPool := x509.NewCertPool()
	caPool.AddCert(caCert)

	return &benchPKI{
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

// startEchoServer starts a TLS server that upgrades every request and
// echoes every frame back, requiring a client certificate signed by
// the bench CA.
func startEchoServer(tb testing.TB, pki *benchPKI) *httptest.Server {
	tb.Helper()

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
	tb.Cleanup(ts.Close)
	return ts
}

// wssURL rewrites an httptest TLS server URL to the wss scheme.
func wssURL(ts *httptest.Server) string {
	return "wss" + strings.TrimPrefix(ts.URL, "https")
}

// quietPool returns a manager that logs nowhere and shuts down on
// cleanup.
func quietPool(tb testing.TB) *wspool.Manager {
	tb.Helper()

	m := wspool.NewManager(
		wspool.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	tb.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		m.Shutdown(ctx)
	})
	return m
}

// configuredPool returns a quiet manager with the bench PKI loaded,
// ready to open connections.
func configuredPool(tb testing.TB, pki *benchPKI) *wspool.Manager {
	tb.Helper()

	m := quietPool(tb)
	if err := m.ConfigureSecureEndpoint(pki.CAFile, pki.CertFile, pki.KeyFile); err != nil {
		tb.Fatalf("ConfigureSecureEndpoint() error = %v", err)
	}
	return m
}

// prefillPool registers count connections without opening them.
func prefillPool(tb testing.TB, m *wspool.Manager, count int) []*wspool.Connection {
	tb.Helper()

	conns := make([]*wspool.Connection, count)
	for i := 0; i < count; i++ {
		c, err := m.CreateConnection(benchURL)
		if err != nil {
			tb.Fatalf("CreateConnection failed: %v", err)
		}
		conns[i] = c
	}
	return conns
}

// openConnection opens one connection against url and blocks until
// the handshake completes.
func openConnection(tb testing.TB, m *wspool.Manager, url string) *wspool.Connection {
	tb.Helper()

	c, err := m.CreateConnection(url)
	if err != nil {
		tb.Fatalf("CreateConnection failed: %v", err)
	}
	opened := make(chan struct{})
	err = c.SetCallbacks(wspool.Callbacks{
		OnOpen: func(string) { close(opened) },
	})
	if err != nil {
		tb.Fatalf("SetCallbacks failed: %v", err)
	}
	if err := m.Open(c); err != nil {
		tb.Fatalf("Open failed: %v", err)
	}
	select {
	case <-opened:
	case <-c.Done():
		tb.Fatalf("connection failed before open: %s", c.ErrorReason())
	case <-time.After(10 * time.Second):
		tb.Fatalf("handshake did not complete, state = %s", c.State())
	}
	return c
}

// payloadOfSize builds a text payload of the given byte length.
func payloadOfSize(n int) string {
	return strings.Repeat("x", n)
}

// sizeLabel formats a payload size for sub-benchmark names.
func sizeLabel(n int) string {
	if n >= 1024 {
		return fmt.Sprintf("%dKB", n/1024)
	}
	return fmt.Sprintf("%dB", n)
}

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

// runWithPoolCounts runs a benchmark function with various pool sizes.
func runWithPoolCounts(b *testing.B, counts []int, benchFn func(b *testing.B, count int)) {
	for _, count := range counts {
		b.Run(fmt.Sprintf("connections_%d", count), func(b *testing.B) {
			benchFn(b, count)
		})
	}
}
