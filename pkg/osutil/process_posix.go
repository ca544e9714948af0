//go:build unix

// Package osutil isolates hook commands in their own process group so a
// timeout stops the command and everything it spawned.
package osutil

import (
	"errors"
	"os/exec"
	"syscall"
	"time"
)

// DefaultGrace is the time a cancelled command has between SIGTERM and
// SIGKILL
const DefaultGrace = 2 * time.Second

// Isolate starts cmd in a new process group. When the command's context is
// cancelled the group receives SIGTERM and, grace later, SIGKILL. Wait gives
// up on output still held open by orphaned children one second after that.
// Call before cmd.Start.
func Isolate(cmd *exec.Cmd, grace time.Duration) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
	cmd.WaitDelay = grace + time.Second

	cmd.Cancel = func() error {
		pgid := -cmd.Process.Pid
		if err := syscall.Kill(pgid, syscall.SIGTERM); err != nil {
			if errors.Is(err, syscall.ESRCH) {
				return nil
			}
			return err
		}
		time.AfterFunc(grace, func() {
			_ = syscall.Kill(pgid, syscall.SIGKILL)
		})
		return nil
	}
}
