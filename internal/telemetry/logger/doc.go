// Package logger provides structured logging for the connection pool
// and its diagnostic driver.
//
// This package wraps log/slog for structured logging:
//
//   - logger.go: Logger interface, handler construction, level control
//   - context.go: Context-aware logging with run and connection IDs
//   - redact.go: Credential redaction and payload truncation
//
// Features:
//
//   - JSON and text output formats
//   - Runtime log level adjustment
//   - Automatic masking of credential-like attributes
//   - Frame payloads truncated to a loggable size
//   - Context propagation for correlating a probe run's log lines
package logger
