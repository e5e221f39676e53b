// Package writeback keeps a persistent store eventually consistent with the
// latest in-memory application state.
//
// The application reports every state-mutating action as an EventKind. The
// Coordinator decides whether the event matters, coalesces bursts with a
// debounce timer, and then writes one full Snapshot through a Storage,
// retrying transient failures a bounded number of times.
//
// # Pipeline
//
//	OnEvent ─► Filter ─► Debouncer ─► flush executor ─► retry controller ─► Storage.Save
//
//   - Filter: drops events while disabled or when the kind is not watched.
//   - Debouncer: every relevant event restarts the timer; one flush per quiet period.
//   - Flush executor: at most one save in flight. A request made during a save
//     is remembered as a single trailing flush, never queued.
//   - Retry controller: up to 1+MaxRetries attempts with a fixed delay; a fresh
//     snapshot is taken for every attempt.
//
// # Usage
//
//	cfg := writeback.DefaultConfig()
//	cfg.WatchedEventKinds = []writeback.EventKind{"snippet-created", "snippet-deleted"}
//
//	c, err := writeback.New(loadState, store, cfg)
//	if err != nil {
//	    return err
//	}
//	defer c.Close(context.Background())
//
//	c.OnEvent("snippet-created")
//
// # Runtime configuration
//
// SetConfig merges a ConfigPatch and takes effect for the next event. It never
// cancels a save in progress; a flush keeps the retry policy it started with.
// Disabling persistence stops new flushes, including a timer that was already
// armed when the switch was flipped.
//
// # Errors
//
// Save failures never reach the caller of OnEvent. Terminal failures are
// delivered as *FlushError on Errors(), reported to the observer, and logged
// when LoggingEnabled is set. The only visible effect of a failing store is
// that it falls behind the in-memory state until the next successful flush.
//
// # Timeouts
//
// The coordinator applies no timeout to Save. A hung Storage holds the current
// cycle; storage adapters are expected to bound their own I/O.
package writeback
