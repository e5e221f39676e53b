package writeback

import "context"

// EventKind identifies a state-mutating action performed by the application,
// for example "snippet-created". The coordinator only compares kinds for
// equality against the configured allowlist.
type EventKind string

// Snapshot is the complete state to persist. The coordinator never inspects
// it; it is produced by a SnapshotFunc and handed to a Storage unchanged.
type Snapshot any

// SnapshotFunc returns the current full application state.
//
// It is invoked fresh at the start of every storage attempt, including
// retries, so a flush always persists the latest state rather than the state
// at the time the triggering event arrived.
type SnapshotFunc func(ctx context.Context) (Snapshot, error)

// Storage persists snapshots to a backing store.
//
// Save is called at most once at a time per Coordinator. Any returned error is
// treated as a failed attempt regardless of its cause.
type Storage interface {
	Save(ctx context.Context, snapshot Snapshot) error
}

// StorageFunc adapts an ordinary function to the Storage interface.
type StorageFunc func(ctx context.Context, snapshot Snapshot) error

// Save implements Storage.Save.
func (f StorageFunc) Save(ctx context.Context, snapshot Snapshot) error {
	return f(ctx, snapshot)
}
