// Package wspool manages a pool of secure WebSocket client connections.
package wspool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yndnr/wspool-go/pkg/omap"
)

// Default manager settings.
const (
	DefaultHandshakeTimeout = 30 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultCloseTimeout     = 10 * time.Second
	DefaultEventBuffer      = 64
)

// managerConfig holds manager settings filled in by options.
type managerConfig struct {
	logger           *slog.Logger
	metrics          Metrics
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	closeTimeout     time.Duration
	eventBuffer      int
	certRotation     bool
}

// Option configures a Manager.
type Option func(*managerConfig)

// WithLogger sets the manager's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *managerConfig) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(c *managerConfig) {
		c.metrics = m
	}
}

// WithHandshakeTimeout bounds the TLS and WebSocket handshakes.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *managerConfig) {
		c.handshakeTimeout = d
	}
}

// WithWriteTimeout bounds individual frame writes.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *managerConfig) {
		c.writeTimeout = d
	}
}

// WithCloseTimeout bounds how long CloseAllConnections waits per
// connection before force-releasing it.
func WithCloseTimeout(d time.Duration) Option {
	return func(c *managerConfig) {
		c.closeTimeout = d
	}
}

// WithEventBuffer sets the transport event channel capacity.
func WithEventBuffer(n int) Option {
	return func(c *managerConfig) {
		if n > 0 {
			c.eventBuffer = n
		}
	}
}

// WithCertRotation watches the configured client certificate and key
// files and serves the freshest keypair to new handshakes. Established
// connections are unaffected.
func WithCertRotation() Option {
	return func(c *managerConfig) {
		c.certRotation = true
	}
}

// Manager owns a pool of WebSocket client connections.
//
// All exported methods are safe for concurrent use. Transport events
// from every connection funnel into one dispatch goroutine, which
// applies state transitions and runs callbacks.
type Manager struct {
	cfg     managerConfig
	logger  *slog.Logger
	metrics Metrics

	// mu guards endpoint and closed, and serializes registry inserts
	// against Shutdown.
	mu       sync.Mutex
	conns    *omap.Map[string, *Connection]
	events   chan transportEvent
	stopCh   chan struct{}
	doneCh   chan struct{}
	endpoint *endpoint
	closed   bool
}

// NewManager creates a Manager and starts its dispatch goroutine.
// Call Shutdown to release it.
func NewManager(opts ...Option) *Manager {
	cfg := managerConfig{
		logger:           slog.Default(),
		metrics:          nopMetrics{},
		handshakeTimeout: DefaultHandshakeTimeout,
		writeTimeout:     DefaultWriteTimeout,
		closeTimeout:     DefaultCloseTimeout,
		eventBuffer:      DefaultEventBuffer,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.metrics == nil {
		cfg.metrics = nopMetrics{}
	}

	m := &Manager{
		cfg:     cfg,
		logger:  cfg.logger,
		metrics: cfg.metrics,
		conns:   omap.New[string, *Connection](),
		events:  make(chan transportEvent, cfg.eventBuffer),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	go m.dispatch()
	return m
}

// ConfigureSecureEndpoint loads the client TLS identity used by every
// subsequent Open: the CA bundle to trust and the client certificate
// and key to present.
//
// The endpoint can be configured exactly once per manager. A second
// successful call is rejected with ErrEndpointConfigured; a call that
// fails validation does not count and may be retried.
func (m *Manager) ConfigureSecureEndpoint(caFile, certFile, keyFile string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}
	if m.endpoint != nil {
		return ErrEndpointConfigured
	}

	ep, err := newEndpoint(caFile, certFile, keyFile, m.cfg)
	if err != nil {
		return err
	}

	m.endpoint = ep
	m.logger.Info("secure endpoint configured",
		"ca_file", caFile,
		"cert_file", certFile,
	)
	return nil
}

// CreateConnection registers a new connection for the given wss:// URL.
// No network activity happens until Open. The connection starts in
// StateConnecting.
func (m *Manager) CreateConnection(rawURL string) (*Connection, error) {
	if m.isClosed() {
		return nil, ErrManagerClosed
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, ErrInvalidURL.WithDetails(rawURL).WithCause(err)
	}
	if u.Scheme != "wss" {
		return nil, ErrUnsupportedScheme.WithDetails(fmt.Sprintf("scheme %q in %s", u.Scheme, rawURL))
	}
	if u.Host == "" {
		return nil, ErrInvalidURL.WithDetails("missing host in " + rawURL)
	}

	id, err := GenerateConnectionID()
	if err != nil {
		return nil, err
	}

	c := &Connection{
		id:    id,
		url:   u.String(),
		state: StateConnecting,
		done:  make(chan struct{}),
	}

	// The closed check and the insert must share one critical section:
	// a create racing Shutdown could otherwise register after the final
	// close sweep and never settle.
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	m.conns.Set(id, c)
	m.mu.Unlock()

	m.metrics.ConnectionCreated()
	m.logger.Debug("connection created",
		"connection_id", id,
		"url", c.url,
	)
	return c, nil
}

// Open starts the connection's handshake in the background and returns
// immediately. Completion is reported through the connection's OnOpen
// or OnFail callback.
//
// Open fails synchronously with ErrNotConfigured if the secure
// endpoint has not been configured, and with ErrInvalidState if the
// connection was already opened or closed.
func (m *Manager) Open(c *Connection) error {
	if err := m.ensure(c); err != nil {
		return err
	}

	m.mu.Lock()
	ep := m.endpoint
	m.mu.Unlock()
	if ep == nil {
		return ErrNotConfigured
	}

	c.mu.Lock()
	if c.opened || c.closeRequested || c.state != StateConnecting {
		state := c.state
		c.mu.Unlock()
		return ErrInvalidState.WithDetails(fmt.Sprintf("connection %s is %s", c.id, state))
	}
	c.opened = true
	ctx, cancel := context.WithCancel(context.Background())
	c.dialCancel = cancel
	c.mu.Unlock()

	m.logger.Debug("connection opening",
		"connection_id", c.id,
		"url", c.url,
	)
	go m.runTransport(ctx, c, ep)
	return nil
}

// Send writes a UTF-8 text frame on an open connection. It returns
// ErrNotOpen if the connection is in any other state, and a transport
// error if the write itself fails.
func (m *Manager) Send(c *Connection, payload string) error {
	if err := m.ensure(c); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen {
		return ErrNotOpen.WithDetails(fmt.Sprintf("connection %s is %s", c.id, c.state))
	}

	c.handle.SetWriteDeadline(time.Now().Add(m.cfg.writeTimeout))
	if err := c.handle.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		return ErrTransport.WithDetails("write on connection " + c.id).WithCause(err)
	}

	c.sent.Add(1)
	m.metrics.MessageSent(len(payload))
	return nil
}

// Close requests an orderly close of the connection.
//
// On an open connection it starts the close handshake; the terminal
// transition lands when the peer's close completes or the read drain
// times out. On a connection still connecting, the pending handshake
// is cancelled and the connection resolves to closed without firing
// OnFail. Closing an already-terminal connection is a no-op.
func (m *Manager) Close(c *Connection) error {
	if err := m.ensure(c); err != nil {
		return err
	}
	m.closeConn(c)
	return nil
}

// closeConn runs the close path without the liveness checks, so
// shutdown can reuse it.
func (m *Manager) closeConn(c *Connection) {
	c.mu.Lock()

	switch c.state {
	case StateFailed, StateClosed, StateClosing, StateFailing:
		c.mu.Unlock()
		return

	case StateOpen:
		c.state = StateClosing
		h := c.handle
		c.mu.Unlock()

		m.logger.Debug("connection closing", "connection_id", c.id)
		deadline := time.Now().Add(m.cfg.writeTimeout)
		h.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		// Bound the drain so a silent peer cannot hold the close open.
		h.SetReadDeadline(time.Now().Add(m.cfg.closeTimeout))
		return

	case StateConnecting:
		if c.closeRequested {
			c.mu.Unlock()
			return
		}
		c.closeRequested = true
		cancel := c.dialCancel
		opened := c.opened
		c.mu.Unlock()

		m.logger.Debug("connection close requested before open",
			"connection_id", c.id,
		)
		if opened {
			// Cancel the in-flight dial; its resolution event settles
			// the state either way.
			if cancel != nil {
				cancel()
			}
			return
		}
		// Never reached the wire: resolve through the dispatcher so the
		// transition and callback still run on the dispatch goroutine.
		// The handoff must not block: a close issued from inside a
		// callback runs on the dispatcher itself, and a blocking send
		// with a full event queue would wedge it against its own channel.
		ev := transportEvent{kind: evClosed, conn: c}
		select {
		case m.events <- ev:
		default:
			go m.publish(ev)
		}
	}
}

// CloseAllConnections closes every connection in creation order and
// waits for each to reach a terminal state, bounded by the manager's
// close timeout and the caller's context.
//
// Connections that do not settle in time are force-released and
// reported in the aggregated ErrCloseTimeout error. The call always
// returns; it never waits past its bound.
func (m *Manager) CloseAllConnections(ctx context.Context) error {
	if m.isClosed() {
		return ErrManagerClosed
	}
	return m.closeAll(ctx)
}

func (m *Manager) closeAll(ctx context.Context) error {
	conns := m.conns.Values()

	for _, c := range conns {
		m.closeConn(c)
	}

	waitCtx, cancel := context.WithTimeout(ctx, m.cfg.closeTimeout)
	defer cancel()

	var errs []error
	for _, c := range conns {
		select {
		case <-c.Done():
		case <-waitCtx.Done():
			c.forceRelease()
			errs = append(errs, ErrCloseTimeout.WithDetails("connection "+c.ID()))
		}
	}

	if len(errs) > 0 {
		m.logger.Warn("close all finished with stragglers",
			"total", len(conns),
			"timed_out", len(errs),
		)
	}
	return errors.Join(errs...)
}

// Remove closes a connection and drops it from the registry.
func (m *Manager) Remove(c *Connection) error {
	if err := m.ensure(c); err != nil {
		return err
	}
	m.closeConn(c)
	m.conns.Delete(c.id)
	return nil
}

// Get returns the managed connection with the given ID.
func (m *Manager) Get(id string) (*Connection, bool) {
	return m.conns.Get(id)
}

// Connections returns a snapshot of all managed connections in
// creation order.
func (m *Manager) Connections() []*Connection {
	return m.conns.Values()
}

// Count returns the number of managed connections.
func (m *Manager) Count() int {
	return m.conns.Count()
}

// Shutdown closes all connections, stops the dispatch goroutine, and
// releases endpoint resources. The manager is unusable afterwards;
// calling Shutdown again returns nil.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	ep := m.endpoint
	m.mu.Unlock()

	err := m.closeAll(ctx)

	close(m.stopCh)
	<-m.doneCh

	if ep != nil {
		ep.stop()
	}

	m.logger.Info("manager shut down", "connections", m.conns.Count())
	return err
}

// ensure validates that the manager is live and owns the connection.
func (m *Manager) ensure(c *Connection) error {
	if c == nil {
		return ErrNotManaged
	}
	if m.isClosed() {
		return ErrManagerClosed
	}
	got, ok := m.conns.Get(c.id)
	if !ok || got != c {
		return ErrNotManaged.WithDetails(c.id)
	}
	return nil
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// publish hands an event to the dispatcher. It reports false if the
// manager is stopping and the event was dropped.
func (m *Manager) publish(ev transportEvent) bool {
	select {
	case m.events <- ev:
		return true
	case <-m.stopCh:
		return false
	}
}

// runTransport dials the endpoint and, on success, pumps received
// frames until the connection dies. All outcomes are published as
// events; this goroutine never touches connection state directly.
func (m *Manager) runTransport(ctx context.Context, c *Connection, ep *endpoint) {
	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.handshakeTimeout)
	defer cancel()

	h, resp, err := ep.dialer.DialContext(dialCtx, c.url, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		m.publish(transportEvent{kind: evFailed, conn: c, err: err})
		return
	}

	if !m.publish(transportEvent{kind: evOpened, conn: c, handle: h}) {
		h.Close()
		return
	}
	m.readLoop(c, h)
}

// readLoop pumps frames off the wire. A clean close handshake becomes
// evClosed; anything else becomes evFailed and the dispatcher decides
// what it means for the connection's state.
func (m *Manager) readLoop(c *Connection, h *websocket.Conn) {
	for {
		msgType, data, err := h.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				m.publish(transportEvent{kind: evClosed, conn: c})
			} else {
				m.publish(transportEvent{kind: evFailed, conn: c, err: err})
			}
			return
		}

		if msgType != websocket.TextMessage {
			// Text frames only; anything else is dropped.
			continue
		}

		m.publish(transportEvent{kind: evMessage, conn: c, payload: string(data)})
	}
}

// dispatch is the single event-processing goroutine. Every transport-
// driven state transition and every callback runs here.
func (m *Manager) dispatch() {
	defer close(m.doneCh)

	for {
		select {
		case ev := <-m.events:
			m.handleEvent(ev)
		case <-m.stopCh:
			// Settle whatever is already queued before exiting.
			for {
				select {
				case ev := <-m.events:
					m.handleEvent(ev)
				default:
					return
				}
			}
		}
	}
}

func (m *Manager) handleEvent(ev transportEvent) {
	switch ev.kind {
	case evOpened:
		m.handleOpened(ev.conn, ev.handle)
	case evFailed:
		m.handleFailed(ev.conn, ev.err)
	case evClosed:
		m.handleClosed(ev.conn)
	case evMessage:
		m.handleMessage(ev.conn, ev.payload)
	}
}

// handleOpened resolves a successful handshake. If a close was
// requested while the dial was in flight, the fresh handle is shut
// down again and the connection resolves to closed.
func (m *Manager) handleOpened(c *Connection, h *websocket.Conn) {
	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		h.Close()
		return
	}

	if c.closeRequested {
		c.state = StateClosing
		c.releaseLocked()
		c.mu.Unlock()

		deadline := time.Now().Add(m.cfg.writeTimeout)
		h.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		h.Close()
		m.finishClose(c)
		return
	}

	c.handle = h
	c.everOpen = true
	c.state = StateOpen
	c.mu.Unlock()

	m.metrics.HandshakeSucceeded()
	m.logger.Debug("connection open", "connection_id", c.id, "url", c.url)

	cb := c.snapshotCallbacks()
	if cb.OnOpen != nil {
		cb.OnOpen(c.id)
	}
}

// handleFailed resolves a handshake or read failure. A failure on a
// connection that asked to close resolves to closed, not failed; the
// reason is still recorded.
func (m *Manager) handleFailed(c *Connection, err error) {
	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		return
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		c.errorReason = err.Error()
	}

	closeBound := c.closeRequested || c.state == StateClosing
	everOpen := c.everOpen

	if closeBound {
		c.state = StateClosing
		c.releaseLocked()
		c.mu.Unlock()
		m.finishClose(c)
		return
	}

	c.state = StateFailing
	c.releaseLocked()
	c.mu.Unlock()

	if everOpen {
		m.metrics.ConnectionFailed()
	} else {
		m.metrics.HandshakeFailed()
	}
	m.logger.Debug("connection failed",
		"connection_id", c.id,
		"url", c.url,
		"error", err,
	)

	cb := c.snapshotCallbacks()
	if cb.OnFail != nil {
		cb.OnFail(c.id, ErrTransport.WithDetails("connection "+c.id).WithCause(err))
	}

	c.mu.Lock()
	c.state = StateFailed
	close(c.done)
	c.mu.Unlock()
}

// handleClosed resolves an orderly close, peer- or locally initiated,
// including the synthetic close of a connection that never dialed.
func (m *Manager) handleClosed(c *Connection) {
	c.mu.Lock()
	if c.state.Terminal() {
		c.mu.Unlock()
		return
	}
	c.state = StateClosing
	c.releaseLocked()
	c.mu.Unlock()

	m.finishClose(c)
}

// finishClose runs the close callback and lands the terminal state.
// The connection must be in StateClosing with its handle released.
func (m *Manager) finishClose(c *Connection) {
	m.metrics.ConnectionClosed()
	m.logger.Debug("connection closed", "connection_id", c.id)

	cb := c.snapshotCallbacks()
	if cb.OnClose != nil {
		cb.OnClose(c.id)
	}

	c.mu.Lock()
	c.state = StateClosed
	close(c.done)
	c.mu.Unlock()
}

// handleMessage delivers a received text frame. Frames may still drain
// during a close, so closing connections deliver too.
func (m *Manager) handleMessage(c *Connection, payload string) {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	if state != StateOpen && state != StateClosing {
		return
	}

	c.received.Add(1)
	m.metrics.MessageReceived(len(payload))

	cb := c.snapshotCallbacks()
	if cb.OnMessage != nil {
		cb.OnMessage(c.id, payload)
	}
}
