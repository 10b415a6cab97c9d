//go:build !windows

// Package privilege reports whether the broker can act for other users.
package privilege

import "os"

// IsRunningAsRoot returns true if the broker is running with UID 0 (root).
func IsRunningAsRoot() bool {
	return os.Geteuid() == 0
}
