// Package command provides CLI command definitions for wspool-probe.
//
// This package defines all commands using urfave/cli/v2:
//
//   - root.go: application, global flags, default action
//   - run.go: the connection exercise (also the default command)
//   - shell.go: interactive shell mode
//   - config.go: effective-configuration inspection
//   - version.go: build information
//
// Configuration is assembled once per invocation in setup.go with the
// priority: flags > environment > config file > defaults.
package command
