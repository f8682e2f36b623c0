package run

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCommand is returned by Submit for a blank command.
	ErrEmptyCommand = errors.New("command is required")

	// ErrSuperseded is returned by Submit when a newer submission replaced it mid-dial.
	ErrSuperseded = errors.New("run superseded by a newer submission")

	// ErrControllerClosed is returned by Submit after Close.
	ErrControllerClosed = errors.New("controller closed")
)

// TransportError reports a task channel that failed to open or closed before
// the terminal result arrived. It is terminal for the run.
type TransportError struct {
	Op  string // "dial", "send" or "read"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("task channel %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
