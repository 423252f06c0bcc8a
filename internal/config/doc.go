// Package config provides probe configuration for wspool-probe.
//
// This package defines the probe configuration structure and validation:
//
//   - spec.go: ProbeConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: Business validation (URL scheme, ranges, formats)
//
// Configuration is loaded via internal/infra/confloader and supports
// multiple sources: files, environment variables, and flags.
package config
