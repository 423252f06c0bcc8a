// Package pathexpand provides shell-style path expansion.
//
// This package expands leading tildes in filesystem paths the way an
// interactive shell would:
//
//   - "~"       -> current user's home directory
//   - "~/x"     -> home directory joined with "x"
//   - "~name/x" -> named user's home directory joined with "x"
//
// Paths without a leading tilde pass through unchanged. A tilde
// referencing an unknown user is left literal, matching shell
// behavior.
package pathexpand
