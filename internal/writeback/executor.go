package writeback

import (
	"context"
	"sync"
)

// flushExecutor guarantees that at most one flush runs at any instant.
//
// A request that arrives while a flush is in flight only sets the superseded
// flag. Any number of such requests collapse into one trailing flush, which
// starts as soon as the current one finishes. The trailing flush reuses the
// same goroutine, so inFlight never drops in between.
type flushExecutor struct {
	run   func()
	allow func() bool

	mu         sync.Mutex
	inFlight   bool
	superseded bool
	done       chan struct{}
}

func newFlushExecutor(run func(), allow func() bool) *flushExecutor {
	return &flushExecutor{run: run, allow: allow}
}

// RequestFlush starts a flush, or marks the in-flight one as superseded.
// It returns true if a new flush was started.
func (e *flushExecutor) RequestFlush() bool {
	e.mu.Lock()
	if e.inFlight {
		e.superseded = true
		e.mu.Unlock()
		return false
	}
	e.inFlight = true
	e.superseded = false
	e.done = make(chan struct{})
	e.mu.Unlock()

	go e.loop()
	return true
}

func (e *flushExecutor) loop() {
	for {
		e.run()

		e.mu.Lock()
		again := e.superseded && e.allow()
		e.superseded = false
		if !again {
			e.inFlight = false
			close(e.done)
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()
	}
}

// Busy returns true while a flush, including its retries, is executing.
func (e *flushExecutor) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight
}

// Wait blocks until no flush is in flight or ctx is done.
func (e *flushExecutor) Wait(ctx context.Context) error {
	e.mu.Lock()
	if !e.inFlight {
		e.mu.Unlock()
		return nil
	}
	done := e.done
	e.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
