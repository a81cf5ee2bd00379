package daemon

import "errors"

// ErrManagerNotStarted is returned by Shutdown when Start was never called.
var ErrManagerNotStarted = errors.New("manager not started")
