//go:build windows

// Package osutil isolates hook commands in their own process group so a
// timeout stops the command and everything it spawned.
package osutil

import (
	"os"
	"os/exec"
	"time"
)

// DefaultGrace is unused on Windows, where cancellation kills at once
const DefaultGrace = 2 * time.Second

// Isolate kills the command on cancellation. Children may survive; Windows
// has no unix-style process groups.
func Isolate(cmd *exec.Cmd, grace time.Duration) {
	cmd.WaitDelay = grace + time.Second
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Kill)
	}
}
