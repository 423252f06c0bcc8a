// Package wspool manages a pool of secure WebSocket client connections.
package wspool

// State is the lifecycle state of a connection.
//
// A connection starts in StateConnecting when created and stays there
// until its handshake resolves. StateFailing and StateClosing are the
// windows in which the matching callback runs; StateFailed and
// StateClosed are terminal.
type State int32

const (
	// StateConnecting means the connection is created or its handshake
	// is in flight.
	StateConnecting State = iota

	// StateOpen means the handshake completed and the connection can
	// send and receive messages.
	StateOpen

	// StateFailing means a failure was detected and the failure
	// handler is running.
	StateFailing

	// StateFailed means the connection ended in failure. Terminal.
	StateFailed

	// StateClosing means a close is in progress.
	StateClosing

	// StateClosed means the connection closed. Terminal.
	StateClosed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateFailing:
		return "failing"
	case StateFailed:
		return "failed"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final.
// No transition leaves a terminal state.
func (s State) Terminal() bool {
	return s == StateFailed || s == StateClosed
}
