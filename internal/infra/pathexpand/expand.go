// Package pathexpand provides shell-style path expansion.
package pathexpand

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// Expand resolves a leading tilde in path.
//
// "~" and "~/..." expand to the current user's home directory.
// "~name" and "~name/..." expand to the named user's home directory;
// if the user cannot be resolved the path is returned unchanged.
// Paths without a leading tilde are returned as-is.
func Expand(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}

	name, rest, _ := strings.Cut(path[1:], "/")

	if name == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("pathexpand: resolve home directory: %w", err)
		}
		return filepath.Join(home, rest), nil
	}

	u, err := user.Lookup(name)
	if err != nil {
		// Unknown user: the shell leaves the tilde literal.
		return path, nil
	}
	return filepath.Join(u.HomeDir, rest), nil
}
