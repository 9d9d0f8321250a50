//go:build !windows

// Package stdin reports whether anything is piped into the process.
package stdin

import "os"

// IsPipe reports whether stdin is a pipe or redirection rather than a
// terminal.
func IsPipe() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}
