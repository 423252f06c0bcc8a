// Package wspool manages a pool of secure WebSocket client connections.
package wspool

import (
	"errors"
	"fmt"
)

// PoolError represents a connection pool error with a structured error code.
type PoolError struct {
	Code    string // Error code (e.g., "WP-CONF-4000")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *PoolError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *PoolError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *PoolError) Is(target error) bool {
	t, ok := target.(*PoolError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewPoolError creates a new PoolError with the given code and message.
func NewPoolError(code, message string) *PoolError {
	return &PoolError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *PoolError) WithDetails(details string) *PoolError {
	return &PoolError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *PoolError) WithCause(cause error) *PoolError {
	return &PoolError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsPoolError checks if an error is a PoolError with the given code.
// If code is empty, it only checks if the error is a PoolError.
func IsPoolError(err error, code string) bool {
	var pe *PoolError
	if errors.As(err, &pe) {
		if code == "" {
			return true
		}
		return pe.Code == code
	}
	return false
}

// ErrorCode extracts the error code from an error if it's a PoolError.
func ErrorCode(err error) string {
	var pe *PoolError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// ============================================================================
// Endpoint Configuration Errors (CONF)
// ============================================================================

var (
	// ErrConfiguration indicates invalid or unreadable TLS material.
	ErrConfiguration = NewPoolError("WP-CONF-4000", "invalid secure endpoint configuration")

	// ErrNotConfigured indicates an open attempt before the secure
	// endpoint was configured.
	ErrNotConfigured = NewPoolError("WP-CONF-4001", "secure endpoint not configured")

	// ErrEndpointConfigured indicates the secure endpoint was already
	// configured; it cannot be reconfigured.
	ErrEndpointConfigured = NewPoolError("WP-CONF-4090", "secure endpoint already configured")
)

// ============================================================================
// Target URL Errors (URL)
// ============================================================================

var (
	// ErrInvalidURL indicates a malformed connection URL.
	ErrInvalidURL = NewPoolError("WP-URL-4000", "invalid connection url")

	// ErrUnsupportedScheme indicates a URL scheme other than wss.
	ErrUnsupportedScheme = NewPoolError("WP-URL-4001", "unsupported url scheme, only wss is accepted")
)

// ============================================================================
// Connection State Errors (STATE, CONN)
// ============================================================================

var (
	// ErrInvalidState indicates the operation is not allowed in the
	// connection's current state.
	ErrInvalidState = NewPoolError("WP-STATE-4090", "operation not allowed in current state")

	// ErrNotOpen indicates a send on a connection that is not open.
	ErrNotOpen = NewPoolError("WP-STATE-4091", "connection not open")

	// ErrNotManaged indicates the connection does not belong to this manager.
	ErrNotManaged = NewPoolError("WP-CONN-4040", "connection not managed")
)

// ============================================================================
// Transport and Pool Errors (TRAN, POOL, SYS)
// ============================================================================

var (
	// ErrTransport indicates a handshake or I/O failure on the wire.
	ErrTransport = NewPoolError("WP-TRAN-5000", "transport failure")

	// ErrCloseTimeout indicates a connection did not finish closing
	// within the allowed time.
	ErrCloseTimeout = NewPoolError("WP-POOL-5030", "close timed out")

	// ErrManagerClosed indicates an operation on a shut-down manager.
	ErrManagerClosed = NewPoolError("WP-POOL-5031", "manager closed")

	// ErrInternal indicates an unexpected internal failure.
	ErrInternal = NewPoolError("WP-SYS-5000", "internal error")
)
