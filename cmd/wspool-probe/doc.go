// Package main provides the entry point for wspool-probe.
//
// The probe drives a pool of mutually-authenticated WebSocket
// connections against a live broker:
//
//   - One-shot probe runs (create, open, send, linger, report)
//   - Interactive shell for manual connection control
//   - Configuration inspection and validation
//   - Prometheus metrics for long barrage runs
//
// Usage:
//
//	wspool-probe [flags] [MESSAGE...]
//	wspool-probe run --server wss://broker:8090/wspool/ -n 4 hello
//	wspool-probe shell
//	wspool-probe config show -o yaml
//
// Exit codes: 0 on success, 1 on configuration or transport errors,
// 2 when every connection in a run failed to open.
package main
