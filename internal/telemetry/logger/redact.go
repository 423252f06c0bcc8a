// Package logger provides structured logging for the connection pool
// and its diagnostic driver.
package logger

import (
	"fmt"
	"log/slog"
	"strings"
)

// Value prefixes that mark raw key material. A PEM block in a log
// attribute is always a mistake; only the fact that it was logged
// survives.
var sensitiveValuePrefixes = []string{
	"-----BEGIN",
}

// Key patterns that suggest credential content.
var sensitiveKeyPatterns = []string{
	"password",
	"passphrase",
	"secret",
	"credential",
	"bearer",
	"private_key",
}

// Key suffixes that mark filesystem paths. Paths to credential files
// are not themselves credentials, so "key_file" and friends pass
// through untouched.
var pathKeySuffixes = []string{
	"_file",
	"_path",
	"_dir",
}

// Keys that carry frame payloads. Payloads are user data of unbounded
// size; they are truncated, not redacted.
var payloadKeys = []string{
	"payload",
	"message_body",
	"frame",
}

// maxPayloadLen is the longest payload attribute emitted verbatim.
const maxPayloadLen = 256

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive checks if an attribute contains sensitive data and
// redacts it, or truncates an oversized payload attribute.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		strVal := a.Value.String()

		for _, prefix := range sensitiveValuePrefixes {
			if strings.HasPrefix(strVal, prefix) {
				return slog.String(a.Key, redactedValue)
			}
		}

		keyLower := strings.ToLower(a.Key)

		if isPayloadKey(keyLower) {
			return slog.String(a.Key, TruncatePayload(strVal))
		}

		if IsSensitiveKey(keyLower) && strVal != "" {
			return slog.String(a.Key, redactedValue)
		}
	}

	// Handle nested groups recursively
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	return a
}

// isPayloadKey reports whether the key carries frame payload data.
func isPayloadKey(keyLower string) bool {
	for _, k := range payloadKeys {
		if keyLower == k {
			return true
		}
	}
	return false
}

// TruncatePayload shortens a frame payload to a loggable size,
// appending the count of elided bytes. Payloads at or under the limit
// come back unchanged.
func TruncatePayload(payload string) string {
	if len(payload) <= maxPayloadLen {
		return payload
	}
	return fmt.Sprintf("%s...(+%d bytes)", payload[:maxPayloadLen], len(payload)-maxPayloadLen)
}

// IsSensitiveKey checks if a key name suggests credential content.
// Keys naming filesystem paths are never sensitive.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, suffix := range pathKeySuffixes {
		if strings.HasSuffix(keyLower, suffix) {
			return false
		}
	}
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// IsSensitiveValue checks if a value appears to be raw key material.
func IsSensitiveValue(value string) bool {
	for _, prefix := range sensitiveValuePrefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}
