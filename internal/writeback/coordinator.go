package writeback

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Coordinator receives state-change events and mirrors the latest snapshot
// into a Storage: Filter → Debouncer → flush executor → retry controller.
//
// All methods are safe for concurrent use. Each Coordinator owns its own
// configuration and pending-flush state; there is no package-level state.
type Coordinator struct {
	snapshot SnapshotFunc
	storage  Storage
	logger   *log.Logger
	observer func(FlushEvent)
	ctx      context.Context

	mu     sync.Mutex
	config Config
	filter Filter
	closed bool

	enabled atomic.Bool
	tracing atomic.Bool
	saving  atomic.Bool
	waiting atomic.Bool
	failed  atomic.Bool

	debounce *Debouncer
	exec     *flushExecutor
	retry    *retryController

	errs chan error

	statsMu sync.Mutex
	stats   Stats
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger used for tracing and terminal failures.
func WithLogger(logger *log.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers fn to receive flush lifecycle notifications.
//
// fn is called without any coordinator lock held, so it may call back into
// the coordinator, for example to request another flush.
func WithObserver(fn func(FlushEvent)) Option {
	return func(c *Coordinator) {
		c.observer = fn
	}
}

// WithErrorBuffer sets the capacity of the Errors channel (default: 16).
func WithErrorBuffer(n int) Option {
	return func(c *Coordinator) {
		if n >= 0 {
			c.errs = make(chan error, n)
		}
	}
}

// New creates a Coordinator.
//
// The snapshot function and storage are required. The configuration is
// validated and copied.
func New(snapshot SnapshotFunc, storage Storage, cfg Config, opts ...Option) (*Coordinator, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("snapshot function cannot be nil")
	}
	if storage == nil {
		return nil, fmt.Errorf("storage cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Coordinator{
		snapshot: snapshot,
		storage:  storage,
		logger:   log.New(os.Stderr, "[writeback] ", log.LstdFlags),
		ctx:      context.Background(),
		config:   cfg.Clone(),
		filter:   NewFilter(cfg),
		debounce: NewDebouncer(),
		retry:    &retryController{},
		errs:     make(chan error, 16),
	}
	c.exec = newFlushExecutor(c.runFlush, c.enabled.Load)
	c.enabled.Store(cfg.Enabled)
	c.tracing.Store(cfg.LoggingEnabled)

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// OnEvent feeds one application event into the pipeline.
//
// Irrelevant events are dropped. Relevant events restart the debounce timer.
// OnEvent never blocks on I/O and never reports save failures.
func (c *Coordinator) OnEvent(kind EventKind) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.bumpStats(func(s *Stats) { s.EventsReceived++ })

	if !c.filter.IsRelevant(kind) {
		c.mu.Unlock()
		c.tracef("Ignoring event %q", kind)
		return
	}
	delay := c.config.DebounceDelay
	c.debounce.Schedule(delay, c.fire)
	c.mu.Unlock()

	c.bumpStats(func(s *Stats) { s.EventsAccepted++ })
	c.tracef("Event %q scheduled flush in %v", kind, delay)
	c.emit(FlushEvent{Type: FlushScheduled})
}

// Consume feeds every kind received on events into OnEvent until the channel
// is closed or ctx is done.
func (c *Coordinator) Consume(ctx context.Context, events <-chan EventKind) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case kind, ok := <-events:
			if !ok {
				return nil
			}
			c.OnEvent(kind)
		}
	}
}

// SetConfig merges patch into the configuration.
//
// Changes apply to subsequent events and flushes. An armed timer keeps its
// original deadline and a running save is never interrupted; a flush in
// progress also keeps the retry policy it started with.
func (c *Coordinator) SetConfig(patch ConfigPatch) error {
	c.mu.Lock()
	next := c.config.Merge(patch)
	if err := next.Validate(); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("invalid config: %w", err)
	}
	c.config = next
	c.filter = NewFilter(next)
	c.enabled.Store(next.Enabled)
	c.tracing.Store(next.LoggingEnabled)
	c.mu.Unlock()

	c.tracef("Config updated: enabled=%t debounce=%v retry=%t max_retries=%d retry_delay=%v kinds=%v",
		next.Enabled, next.DebounceDelay, next.RetryEnabled, next.MaxRetries, next.RetryDelay, next.WatchedEventKinds)
	return nil
}

// GetConfig returns a copy of the current configuration.
func (c *Coordinator) GetConfig() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config.Clone()
}

// Flush skips the debounce window and requests a flush right away.
//
// If a flush is already in flight the request is folded into its single
// trailing flush. Use WaitIdle to wait for the result.
func (c *Coordinator) Flush() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.config.Enabled {
		c.mu.Unlock()
		return ErrDisabled
	}
	c.debounce.Cancel()
	c.mu.Unlock()

	c.requestFlush()
	return nil
}

// WaitIdle blocks until no timer is armed and no flush is in flight.
func (c *Coordinator) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := c.exec.Wait(ctx); err != nil {
			return err
		}
		if !c.debounce.Pending() && !c.exec.Busy() {
			return nil
		}
		// A timer is still armed; poll until it fires and its flush starts.
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops accepting events, flushes anything still waiting on the
// debounce timer, and waits for the in-flight flush to finish or ctx to end.
//
// The in-flight save is never cancelled. If ctx ends first, Close returns its
// error and the save keeps running in the background.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pending := c.debounce.Cancel()
	c.mu.Unlock()

	c.debounce.Wait()
	if pending && c.enabled.Load() {
		c.tracef("Flushing scheduled changes before close")
		c.requestFlush()
	}

	return c.exec.Wait(ctx)
}

// Errors returns the channel on which terminal flush failures are delivered
// as *FlushError. Sends never block: when the buffer is full the error is
// dropped (it is still logged and counted). The channel is never closed.
func (c *Coordinator) Errors() <-chan error {
	return c.errs
}

// State reports the coordinator's position in the flush cycle.
func (c *Coordinator) State() State {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()

	switch {
	case c.waiting.Load():
		return StateRetrying
	case c.saving.Load(), c.exec.Busy():
		return StateSaving
	case c.debounce.Pending():
		return StateScheduled
	case closed:
		return StateClosed
	case c.failed.Load():
		return StateFailed
	default:
		return StateIdle
	}
}

// Stats returns a copy of the activity counters.
func (c *Coordinator) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// fire runs on the debounce timer goroutine.
func (c *Coordinator) fire() {
	if !c.enabled.Load() {
		c.tracef("Debounce fired while disabled, skipping flush")
		return
	}
	c.requestFlush()
}

func (c *Coordinator) requestFlush() {
	if c.exec.RequestFlush() {
		return
	}
	c.bumpStats(func(s *Stats) { s.Superseded++ })
	c.tracef("Flush in flight, trailing flush requested")
	c.emit(FlushEvent{Type: FlushSuperseded})
}

// runFlush performs one logical flush on the executor goroutine.
func (c *Coordinator) runFlush() {
	id := uuid.NewString()
	policy := c.GetConfig().retryPolicy()

	c.bumpStats(func(s *Stats) { s.Flushes++ })
	c.tracef("Flush %s started (max attempts %d)", id, policy.MaxAttempts())
	c.emit(FlushEvent{Type: FlushStarted, FlushID: id, Attempt: 1})

	attempts, err := c.retry.Attempt(c.ctx, policy, c.saveOnce, func(attempt int, err error, retrying bool) {
		c.saving.Store(false)
		if !retrying {
			return
		}
		c.waiting.Store(true)
		c.bumpStats(func(s *Stats) { s.Retries++ })
		c.tracef("Flush %s attempt %d failed, retrying in %v: %v", id, attempt, policy.Delay, err)
		c.emit(FlushEvent{Type: FlushRetrying, FlushID: id, Attempt: attempt, Err: err})
	})
	c.saving.Store(false)
	c.waiting.Store(false)

	c.failed.Store(err != nil)

	if err == nil {
		c.bumpStats(func(s *Stats) {
			s.Saves++
			s.LastSave = time.Now()
		})
		c.tracef("Flush %s succeeded after %d attempt(s)", id, attempts)
		c.emit(FlushEvent{Type: FlushSucceeded, FlushID: id, Attempt: attempts})
		return
	}

	ferr := &FlushError{FlushID: id, Attempts: attempts, Err: err}
	c.bumpStats(func(s *Stats) {
		s.Failures++
		s.LastError = ferr
	})
	c.tracef("%v", ferr)

	select {
	case c.errs <- ferr:
	default:
	}
	c.emit(FlushEvent{Type: FlushFailed, FlushID: id, Attempt: attempts, Err: ferr})
}

// saveOnce takes a fresh snapshot and hands it to storage. Panics in either
// collaborator are turned into errors so they count as failed attempts.
func (c *Coordinator) saveOnce(ctx context.Context) (err error) {
	c.waiting.Store(false)
	c.saving.Store(true)
	c.bumpStats(func(s *Stats) { s.Attempts++ })

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during save: %v", r)
		}
	}()

	snap, err := c.snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to build snapshot: %w", err)
	}
	return c.storage.Save(ctx, snap)
}

func (c *Coordinator) emit(ev FlushEvent) {
	if c.observer == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	c.observer(ev)
}

func (c *Coordinator) bumpStats(fn func(*Stats)) {
	c.statsMu.Lock()
	fn(&c.stats)
	c.statsMu.Unlock()
}

func (c *Coordinator) tracef(format string, args ...any) {
	if c.tracing.Load() {
		c.logger.Printf(format, args...)
	}
}
