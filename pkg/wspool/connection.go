// Package wspool manages a pool of secure WebSocket client connections.
package wspool

import (
	"context"
	"crypto/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
)

// ConnectionIDPrefix is the prefix for connection IDs.
// Format: wpc-{ulid_lowercase}, 30 characters total.
const ConnectionIDPrefix = "wpc-"

// Callbacks holds the per-connection event handlers.
//
// All callbacks run on the manager's dispatch goroutine and must not
// block. Nil entries are skipped. OnFail and OnClose fire at most once
// per connection, and never both.
type Callbacks struct {
	// OnOpen fires when the handshake completes and the connection
	// becomes open.
	OnOpen func(id string)

	// OnFail fires when the connection ends in failure. The reason is
	// a transport error carrying the underlying cause.
	OnFail func(id string, reason error)

	// OnClose fires when the connection closes, whether initiated
	// locally or by the peer.
	OnClose func(id string)

	// OnMessage fires for every received text frame.
	OnMessage func(id string, payload string)
}

// Connection is a single managed WebSocket connection.
//
// Connections are created by Manager.CreateConnection and must only be
// used with the manager that created them. All methods are safe for
// concurrent use.
type Connection struct {
	id  string
	url string

	mu             sync.Mutex
	state          State
	handle         *websocket.Conn
	errorReason    string
	opened         bool // Open() was accepted
	everOpen       bool // handshake completed at least once
	closeRequested bool
	callbacks      Callbacks
	callbacksSet   bool
	dialCancel     context.CancelFunc
	done           chan struct{}

	sent     atomic.Int64
	received atomic.Int64
}

// ID returns the connection identifier, assigned at creation.
func (c *Connection) ID() string {
	return c.id
}

// URL returns the target address, immutable after creation.
func (c *Connection) URL() string {
	return c.url
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ErrorReason returns a description of the last failure observed on
// this connection. It is empty until a failure occurs and is never
// cleared afterwards.
func (c *Connection) ErrorReason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errorReason
}

// Done returns a channel that closes when the connection reaches a
// terminal state (failed or closed).
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// SetCallbacks registers the event handlers for this connection.
// It may be called at most once, and only before the connection is
// opened; later calls return ErrInvalidState.
func (c *Connection) SetCallbacks(cb Callbacks) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opened || c.state != StateConnecting {
		return ErrInvalidState.WithDetails("callbacks must be set before open")
	}
	if c.callbacksSet {
		return ErrInvalidState.WithDetails("callbacks already set")
	}
	c.callbacks = cb
	c.callbacksSet = true
	return nil
}

// Sent returns the number of text frames written on this connection.
func (c *Connection) Sent() int64 {
	return c.sent.Load()
}

// Received returns the number of text frames received on this connection.
func (c *Connection) Received() int64 {
	return c.received.Load()
}

// Info is a point-in-time snapshot of a connection.
type Info struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	State       string `json:"state"`
	ErrorReason string `json:"error_reason,omitempty"`
	Sent        int64  `json:"sent"`
	Received    int64  `json:"received"`
}

// Info returns a snapshot of the connection for reporting.
func (c *Connection) Info() Info {
	c.mu.Lock()
	state := c.state
	reason := c.errorReason
	c.mu.Unlock()

	return Info{
		ID:          c.id,
		URL:         c.url,
		State:       state.String(),
		ErrorReason: reason,
		Sent:        c.sent.Load(),
		Received:    c.received.Load(),
	}
}

// snapshotCallbacks returns the registered callbacks. Caller must not
// hold c.mu.
func (c *Connection) snapshotCallbacks() Callbacks {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callbacks
}

// releaseLocked closes and discards the transport handle, if any.
// Caller holds c.mu.
func (c *Connection) releaseLocked() {
	if c.handle != nil {
		c.handle.Close()
		c.handle = nil
	}
	if c.dialCancel != nil {
		c.dialCancel()
		c.dialCancel = nil
	}
}

// forceRelease tears down the transport without waiting for the close
// handshake. The read loop notices and publishes the terminal event.
func (c *Connection) forceRelease() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != nil {
		c.handle.Close()
	}
	if c.dialCancel != nil {
		c.dialCancel()
	}
}

// GenerateConnectionID generates a new connection ID using ULID.
// Format: wpc-{ulid_lowercase}, 30 characters total.
func GenerateConnectionID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", ErrInternal.WithCause(err)
	}
	return ConnectionIDPrefix + strings.ToLower(id.String()), nil
}

// IsValidConnectionID checks if a string is a valid connection ID format.
// It normalizes the ID to lowercase before validation.
func IsValidConnectionID(id string) bool {
	id = strings.ToLower(id)

	if !strings.HasPrefix(id, ConnectionIDPrefix) {
		return false
	}

	// wpc- (4) + ULID (26) = 30 characters
	if len(id) != 30 {
		return false
	}

	ulidPart := strings.ToUpper(id[len(ConnectionIDPrefix):])
	_, err := ulid.Parse(ulidPart)
	return err == nil
}
