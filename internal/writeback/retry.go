package writeback

import (
	"context"
	"sync"
	"time"
)

// RetryPolicy bounds how a single logical flush re-attempts a failed save.
type RetryPolicy struct {
	Enabled    bool
	MaxRetries int
	Delay      time.Duration
}

// MaxAttempts returns the upper bound on storage calls for one flush.
func (p RetryPolicy) MaxAttempts() int {
	if !p.Enabled {
		return 1
	}
	return p.MaxRetries + 1
}

// retryController runs one logical flush as a bounded loop of attempts.
type retryController struct {
	mu           sync.Mutex
	attemptCount int
}

// failureFunc is told about every failed attempt and whether it will be retried.
type failureFunc func(attempt int, err error, retrying bool)

// Attempt calls save until it succeeds or the policy is exhausted.
//
// It returns the number of calls made and the last error, which is nil on
// success. The failure count is reset on success and on terminal failure so
// the next logical flush starts from zero.
func (r *retryController) Attempt(ctx context.Context, policy RetryPolicy, save func(context.Context) error, onFailure failureFunc) (int, error) {
	r.setCount(0)

	calls := 0
	for {
		calls++
		err := save(ctx)
		if err == nil {
			r.setCount(0)
			return calls, nil
		}

		if !policy.Enabled {
			r.setCount(0)
			if onFailure != nil {
				onFailure(calls, err, false)
			}
			return calls, err
		}

		failures := r.increment()
		if failures > policy.MaxRetries {
			r.setCount(0)
			if onFailure != nil {
				onFailure(calls, err, false)
			}
			return calls, err
		}

		if onFailure != nil {
			onFailure(calls, err, true)
		}

		if policy.Delay > 0 {
			t := time.NewTimer(policy.Delay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				r.setCount(0)
				return calls, ctx.Err()
			}
		}
	}
}

// Count returns the failures recorded for the flush in progress.
func (r *retryController) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attemptCount
}

func (r *retryController) setCount(n int) {
	r.mu.Lock()
	r.attemptCount = n
	r.mu.Unlock()
}

func (r *retryController) increment() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attemptCount++
	return r.attemptCount
}
