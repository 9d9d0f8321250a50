//go:build windows

package stdin

import "os"

func IsPipe() bool {
	// On Windows, os.Stdin.Stat() errors when there is no pipe.
	_, err := os.Stdin.Stat()
	return err == nil
}
