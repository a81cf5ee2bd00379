//go:build windows

package procgroup

import (
	"errors"
	"os"
	"os/exec"
)

// Windows has no POSIX process groups; we fall back to killing the direct
// process. Child helpers are reparented and reaped by the OS job defaults.

func set(cmd *exec.Cmd) {}

func interrupt(cmd *exec.Cmd) error {
	return kill(cmd)
}

func kill(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return err
	}
	return nil
}
