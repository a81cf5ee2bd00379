// Package procgroup spawns subprocesses in their own process groups and
// terminates them group-wide. Pipeline stages may fork helpers (yt-dlp can
// invoke ffmpeg internally); killing the group is the only way to guarantee
// nothing outlives the request.
package procgroup

import (
	"os/exec"
	"time"
)

// Set configures cmd to start in a new process group. Must be called before
// cmd.Start for Terminate to act on the whole tree.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// Interrupt asks the command's process group to exit. Signalling a process
// that has already exited is a no-op, not an error.
func Interrupt(cmd *exec.Cmd) error {
	return interrupt(cmd)
}

// Kill forcibly terminates the command's process group. Idempotent like
// Interrupt.
func Kill(cmd *exec.Cmd) error {
	return kill(cmd)
}

// Terminate sends a polite termination to the group, then escalates to a
// forced kill after grace. It does not wait for the process to be reaped;
// callers own the cmd.Wait.
func Terminate(cmd *exec.Cmd, grace time.Duration) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = interrupt(cmd)
	time.AfterFunc(grace, func() {
		_ = kill(cmd)
	})
}
