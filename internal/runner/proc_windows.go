//go:build windows

package runner

import "os/exec"

// setupProcessGroup is a no-op on Windows: exec.CommandContext's default
// Kill is the best readily available option.
func setupProcessGroup(cmd *exec.Cmd) {}
