// Package wspool manages a pool of secure WebSocket client connections.
package wspool

// Metrics receives counters from the manager. Implementations must be
// safe for concurrent use; calls are cheap and never block the caller.
type Metrics interface {
	// ConnectionCreated fires when CreateConnection registers a connection.
	ConnectionCreated()

	// HandshakeSucceeded fires when a connection reaches open.
	HandshakeSucceeded()

	// HandshakeFailed fires when a connection fails before opening.
	HandshakeFailed()

	// ConnectionFailed fires when an open connection ends in failure.
	ConnectionFailed()

	// ConnectionClosed fires when a connection reaches closed.
	ConnectionClosed()

	// MessageSent fires for every outbound text frame.
	MessageSent(bytes int)

	// MessageReceived fires for every inbound text frame.
	MessageReceived(bytes int)
}

// nopMetrics is the default Metrics sink.
type nopMetrics struct{}

func (nopMetrics) ConnectionCreated()  {}
func (nopMetrics) HandshakeSucceeded() {}
func (nopMetrics) HandshakeFailed()    {}
func (nopMetrics) ConnectionFailed()   {}
func (nopMetrics) ConnectionClosed()   {}
func (nopMetrics) MessageSent(int)     {}
func (nopMetrics) MessageReceived(int) {}
