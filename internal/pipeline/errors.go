package pipeline

import (
	"errors"
	"fmt"
)

// ErrCancelled reports that the client went away mid-run. Not a failure:
// callers clean up silently and attempt no response.
var ErrCancelled = errors.New("pipeline cancelled by client")

// LaunchError reports a stage that could not be spawned (tool missing,
// permissions). It always precedes the first sink byte, so callers can still
// produce a structured error response.
type LaunchError struct {
	Stage string
	Err   error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch stage %s: %v", e.Stage, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// StageError reports a stage process that exited non-zero during streaming.
type StageError struct {
	Stage    string
	ExitCode int
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s exited with code %d", e.Stage, e.ExitCode)
}

func (e *StageError) Unwrap() error { return e.Err }

// RelayError reports a failed write to the sink while the request context was
// still alive (a transport-level failure rather than a stage failure).
type RelayError struct {
	Err error
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("relay to sink: %v", e.Err)
}

func (e *RelayError) Unwrap() error { return e.Err }
