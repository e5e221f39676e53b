package writeback

import "time"

// FlushEventType names a step in the life of a flush.
type FlushEventType string

const (
	// FlushScheduled is emitted when a relevant event (re)arms the debounce timer.
	FlushScheduled FlushEventType = "flush_scheduled"

	// FlushStarted is emitted when a logical flush begins.
	FlushStarted FlushEventType = "flush_started"

	// FlushRetrying is emitted after a failed attempt that will be retried.
	FlushRetrying FlushEventType = "flush_retrying"

	// FlushSucceeded is emitted when a save completes.
	FlushSucceeded FlushEventType = "flush_succeeded"

	// FlushFailed is emitted on terminal failure.
	FlushFailed FlushEventType = "flush_failed"

	// FlushSuperseded is emitted when a request arrives while a flush is in flight.
	FlushSuperseded FlushEventType = "flush_superseded"
)

// FlushEvent is delivered to the observer registered with WithObserver.
type FlushEvent struct {
	Type      FlushEventType
	FlushID   string
	Attempt   int
	Err       error
	Timestamp time.Time
}

// State is the coordinator's position in the flush cycle.
type State int

const (
	// StateIdle means no timer is armed and no save is running.
	StateIdle State = iota
	// StateScheduled means the debounce timer is armed.
	StateScheduled
	// StateSaving means a flush is in flight, including the gap before a
	// trailing flush.
	StateSaving
	// StateRetrying means the flush is waiting out the retry delay.
	StateRetrying
	// StateClosed means the coordinator no longer accepts events.
	StateClosed
	// StateFailed means nothing is running and the last flush failed
	// terminally.
	StateFailed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScheduled:
		return "scheduled"
	case StateSaving:
		return "saving"
	case StateRetrying:
		return "retrying"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stats holds counters describing coordinator activity.
type Stats struct {
	EventsReceived int
	EventsAccepted int
	Flushes        int // logical flushes started
	Saves          int // logical flushes that succeeded
	Attempts       int // storage calls
	Retries        int
	Failures       int // terminal failures
	Superseded     int
	LastSave       time.Time
	LastError      error
}
