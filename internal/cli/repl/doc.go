// Package repl provides the interactive shell mode for wspool-probe.
//
// This package implements the Read-Eval-Print Loop for interactive sessions:
//
//   - repl.go: Main REPL loop and command dispatch
//   - completer.go: Prefix completion for commands
//   - history.go: Command history persistence (~/.wspool/history)
//
// The loop itself knows nothing about connections; commands are parsed
// into fields and handed to an Executor supplied by the caller.
package repl
