package writeback_test

import (
	"context"
	"fmt"
	"time"

	"github.com/codesnip/snipsync/internal/writeback"
)

// This example wires a coordinator to an in-memory store and flushes once.
func ExampleCoordinator() {
	var saved []string
	state := []string{}

	cfg := writeback.DefaultConfig()
	cfg.DebounceDelay = 10 * time.Millisecond
	cfg.WatchedEventKinds = []writeback.EventKind{"snippet-created"}

	store := writeback.StorageFunc(func(ctx context.Context, snap writeback.Snapshot) error {
		saved = append([]string(nil), snap.([]string)...)
		return nil
	})
	snapshot := func(ctx context.Context) (writeback.Snapshot, error) {
		return append([]string(nil), state...), nil
	}

	c, err := writeback.New(snapshot, store, cfg)
	if err != nil {
		panic(err)
	}

	state = append(state, "hello-world")
	c.OnEvent("snippet-created")

	if err := c.Close(context.Background()); err != nil {
		panic(err)
	}
	fmt.Println(saved)
	// Output: [hello-world]
}
