// Package probe drives diagnostic runs against a secure WebSocket
// server.
//
// A Runner owns one connection pool and walks it through the full
// exercise: configure the client TLS material, create and open a batch
// of connections, send the configured messages, wait for replies, then
// close everything down and summarize the outcome in a Report.
//
// The phases, in order:
//   - ConfigureSecureEndpoint with the CA bundle and client keypair
//   - create and open every connection; each sends the positional
//     messages from its OnOpen callback
//   - bounded wait for the handshakes to settle
//   - one numbered synchronous message per open connection
//   - optional rate-paced barrage of repeated messages
//   - linger so late server replies still arrive
//   - close all connections and build the report
//
// The package also provides the Shell behind the interactive mode,
// which drives the same pool one command at a time.
package probe
