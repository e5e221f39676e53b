package writeback

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of calls into a single deferred invocation.
//
// Every Schedule call cancels the pending timer, if any, and arms a new one.
// When a timer fires its function runs exactly once on the timer goroutine,
// never inline in Schedule, even when the delay is zero.
type Debouncer struct {
	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	running int
	firing  sync.WaitGroup
}

// NewDebouncer creates an idle Debouncer.
func NewDebouncer() *Debouncer {
	return &Debouncer{}
}

// Schedule (re)arms the timer so that fn runs after delay of quiet.
func (d *Debouncer) Schedule(delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(delay, func() {
		d.mu.Lock()
		// A later Schedule or Cancel won the race with this timer.
		if gen != d.gen {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.running++
		d.firing.Add(1)
		d.mu.Unlock()

		defer func() {
			d.mu.Lock()
			d.running--
			d.mu.Unlock()
			d.firing.Done()
		}()
		fn()
	})
}

// Cancel stops the pending timer. It returns true if a timer was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
	return true
}

// Pending returns true while a timer is armed or a fired callback has not
// yet returned.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil || d.running > 0
}

// Wait blocks until every fired callback has returned.
func (d *Debouncer) Wait() {
	d.firing.Wait()
}
