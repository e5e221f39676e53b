package writeback

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by operations on a closed Coordinator.
	ErrClosed = errors.New("writeback: coordinator closed")

	// ErrDisabled is returned by Flush while persistence is disabled.
	ErrDisabled = errors.New("writeback: persistence disabled")
)

// FlushError reports a terminal flush failure: retries were disabled or
// exhausted. It is delivered on Coordinator.Errors and never returned from
// OnEvent.
type FlushError struct {
	// FlushID correlates the failure with the observer notifications.
	FlushID string
	// Attempts is the number of storage calls made for this flush.
	Attempts int
	// Err is the error from the last attempt.
	Err error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("flush %s failed after %d attempt(s): %v", e.FlushID, e.Attempts, e.Err)
}

func (e *FlushError) Unwrap() error {
	return e.Err
}
