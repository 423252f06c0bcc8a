// Package wspool manages a pool of secure WebSocket client connections.
//
// A Manager owns every connection it creates: it dials TLS WebSocket
// endpoints with mutual authentication, tracks each connection through
// its lifecycle, and delivers transport events to per-connection
// callbacks. The package provides:
//
//   - Secure Endpoint: process-wide client TLS material (CA, client
//     certificate, private key), configured once before any connection
//     is opened
//   - Asynchronous Open: the TLS and WebSocket handshakes run in the
//     background; completion is reported through OnOpen or OnFail
//   - Serialized Dispatch: a single dispatch goroutine applies all
//     transport-driven state transitions and runs all callbacks, so
//     callbacks for one connection never race each other
//   - Bounded Teardown: CloseAllConnections walks connections in
//     creation order and never blocks past its timeout
//
// Usage:
//
//	m := wspool.NewManager(wspool.WithLogger(log))
//	if err := m.ConfigureSecureEndpoint(ca, cert, key); err != nil { ... }
//	c, err := m.CreateConnection("wss://broker.example:8090/ws/")
//	c.SetCallbacks(wspool.Callbacks{
//		OnOpen: func(id string) { _ = m.Send(c, "hello") },
//	})
//	if err := m.Open(c); err != nil { ... }
//	...
//	_ = m.Shutdown(ctx)
//
// Callback Discipline:
//
// Callbacks run on the dispatch goroutine. A callback that blocks
// stalls event delivery for every connection in the pool. Calling
// Send or Close on any connection from a callback is safe; calling
// CloseAllConnections or Shutdown from a callback deadlocks.
package wspool
