// Package wspool manages a pool of secure WebSocket client connections.
package wspool

import "github.com/gorilla/websocket"

// eventKind identifies a transport event.
type eventKind int

const (
	// evOpened: the handshake completed, the event carries the handle.
	evOpened eventKind = iota

	// evFailed: the handshake or a read failed, the event carries the error.
	evFailed

	// evClosed: the peer completed a close handshake, or a synthetic
	// close for a connection that never reached the wire.
	evClosed

	// evMessage: a text frame arrived, the event carries the payload.
	evMessage
)

// String returns the event kind name for logging.
func (k eventKind) String() string {
	switch k {
	case evOpened:
		return "opened"
	case evFailed:
		return "failed"
	case evClosed:
		return "closed"
	case evMessage:
		return "message"
	default:
		return "unknown"
	}
}

// transportEvent is what transport goroutines publish and the dispatch
// goroutine consumes. Events for a single connection are published in
// order, so per-connection delivery order matches the wire.
type transportEvent struct {
	kind    eventKind
	conn    *Connection
	handle  *websocket.Conn // evOpened only
	err     error           // evFailed only
	payload string          // evMessage only
}
