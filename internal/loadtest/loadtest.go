// Package loadtest exercises the write-back pipeline under concurrent edits.
//
// A set of simulated editors mutates an in-memory workspace state and emits
// snippet events as fast as they like. The coordinator debounces them into a
// handful of saves against a real SQLite store. The run reports save latency,
// how well events were coalesced, and whether the store ended up holding the
// final state.
package loadtest

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/codesnip/snipsync/internal/snippets"
	"github.com/codesnip/snipsync/internal/storage"
	"github.com/codesnip/snipsync/internal/storage/sqlite"
	"github.com/codesnip/snipsync/internal/writeback"
)

// Options controls the shape of a run.
type Options struct {
	Snippets       int           // initial snippets in the workspace
	Namespaces     int           // non-default namespaces
	Editors        int           // concurrent editors
	EditsPerEditor int           // events emitted by each editor
	Pause          time.Duration // upper bound on the random pause between edits
	Sync           writeback.Config
}

// DefaultOptions returns a small run that finishes in about a second.
func DefaultOptions() Options {
	sync := writeback.DefaultConfig()
	sync.DebounceDelay = 20 * time.Millisecond
	sync.WatchedEventKinds = snippets.EventKinds()

	return Options{
		Snippets:       200,
		Namespaces:     5,
		Editors:        8,
		EditsPerEditor: 50,
		Pause:          2 * time.Millisecond,
		Sync:           sync,
	}
}

// LatencyStats captures save latency.
type LatencyStats struct {
	Min       time.Duration
	Max       time.Duration
	Mean      time.Duration
	P50       time.Duration // Median
	P95       time.Duration
	P99       time.Duration
	Total     int
	Durations []time.Duration
}

// Report summarizes a run.
type Report struct {
	Events      int
	Saves       int
	Superseded  int
	Failures    int
	Elapsed     time.Duration
	SaveLatency *LatencyStats

	// Consistent is true when the store holds exactly the final workspace state.
	Consistent bool
	Mismatch   string
}

// Coalescing returns how many events each save absorbed on average.
func (r *Report) Coalescing() float64 {
	if r.Saves == 0 {
		return 0
	}
	return float64(r.Events) / float64(r.Saves)
}

// workspace is the shared in-memory state the editors mutate.
type workspace struct {
	mu    sync.Mutex
	state *snippets.State
}

func (w *workspace) snapshot(ctx context.Context) (writeback.Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Clone(), nil
}

// timedStorage records the duration of every save.
type timedStorage struct {
	next writeback.Storage

	mu        sync.Mutex
	durations []time.Duration
}

func (t *timedStorage) Save(ctx context.Context, snap writeback.Snapshot) error {
	start := time.Now()
	err := t.next.Save(ctx, snap)
	if err == nil {
		t.mu.Lock()
		t.durations = append(t.durations, time.Since(start))
		t.mu.Unlock()
	}
	return err
}

// Run drives opts.Editors concurrent editors against store and waits for
// the pipeline to drain.
func Run(ctx context.Context, store *sqlite.Store, opts Options) (*Report, error) {
	if opts.Editors <= 0 || opts.EditsPerEditor <= 0 {
		return nil, fmt.Errorf("editors and edits per editor must be positive")
	}
	if opts.Snippets <= 0 {
		return nil, fmt.Errorf("snippets must be positive")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ws := &workspace{state: GenerateState(opts.Snippets, opts.Namespaces)}
	timed := &timedStorage{next: storage.Adapter(store)}

	coord, err := writeback.New(ws.snapshot, timed, opts.Sync)
	if err != nil {
		return nil, fmt.Errorf("failed to create coordinator: %w", err)
	}
	defer coord.Close(context.Background())

	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < opts.Editors; i++ {
		wg.Add(1)
		go func(editor int) {
			defer wg.Done()
			// Deterministic per editor for reproducible runs.
			rng := rand.New(rand.NewSource(int64(42 + editor)))
			for j := 0; j < opts.EditsPerEditor; j++ {
				if ctx.Err() != nil {
					return
				}
				coord.OnEvent(ws.edit(rng, editor, j))
				if opts.Pause > 0 {
					time.Sleep(time.Duration(rng.Int63n(int64(opts.Pause))))
				}
			}
		}(i)
	}
	wg.Wait()

	// Nothing may be left pending: flush now and wait for the trailing save.
	if err := coord.Flush(); err != nil {
		return nil, fmt.Errorf("failed to request final flush: %w", err)
	}
	if err := coord.WaitIdle(ctx); err != nil {
		return nil, fmt.Errorf("pipeline did not drain: %w", err)
	}

	stats := coord.Stats()
	timed.mu.Lock()
	durations := append([]time.Duration(nil), timed.durations...)
	timed.mu.Unlock()

	report := &Report{
		Events:      stats.EventsAccepted,
		Saves:       stats.Saves,
		Superseded:  stats.Superseded,
		Failures:    stats.Failures,
		Elapsed:     time.Since(start),
		SaveLatency: computeLatencyStats(durations),
	}

	got, err := store.LoadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read back store: %w", err)
	}
	ws.mu.Lock()
	want := ws.state.Clone()
	ws.mu.Unlock()
	want.Normalize()

	report.Mismatch = compareStates(want, got)
	report.Consistent = report.Mismatch == ""

	return report, nil
}

// edit applies one random mutation and returns the matching event kind.
func (w *workspace) edit(rng *rand.Rand, editor, seq int) writeback.EventKind {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := snippets.Now()
	switch op := rng.Intn(10); {
	case op < 6 && len(w.state.Snippets) > 0:
		sn := &w.state.Snippets[rng.Intn(len(w.state.Snippets))]
		sn.Title = fmt.Sprintf("edited by %d (%d)", editor, seq)
		sn.UpdatedAt = now
		return snippets.EventSnippetUpdated

	case op < 8 || len(w.state.Snippets) == 0:
		sn := newSnippet(fmt.Sprintf("e%d-%d", editor, seq), w.state.Namespaces[rng.Intn(len(w.state.Namespaces))].ID, now)
		w.state.Snippets = append(w.state.Snippets, sn)
		return snippets.EventSnippetCreated

	default:
		i := rng.Intn(len(w.state.Snippets))
		w.state.Snippets = append(w.state.Snippets[:i], w.state.Snippets[i+1:]...)
		return snippets.EventSnippetDeleted
	}
}

// GenerateState creates a normalized state with the given number of snippets
// spread over numNamespaces namespaces plus the default.
func GenerateState(numSnippets, numNamespaces int) *snippets.State {
	languages := []string{"go", "python", "bash", "typescript", "sql"}
	base := snippets.FromTime(time.Now().Add(-30 * 24 * time.Hour))

	state := &snippets.State{Namespaces: []snippets.Namespace{snippets.DefaultNamespace()}}
	for i := 0; i < numNamespaces; i++ {
		state.Namespaces = append(state.Namespaces, snippets.Namespace{
			ID:        fmt.Sprintf("ns-%02d", i),
			Name:      fmt.Sprintf("Namespace %d", i),
			CreatedAt: base,
		})
	}

	for i := 0; i < numSnippets; i++ {
		ns := state.Namespaces[i%len(state.Namespaces)].ID
		sn := newSnippet(fmt.Sprintf("load-%05d", i), ns, base+snippets.Millis(i)*60_000)
		sn.Language = languages[i%len(languages)]
		state.Snippets = append(state.Snippets, sn)
	}

	state.Normalize()
	return state
}

func newSnippet(id, namespace string, at snippets.Millis) snippets.Snippet {
	return snippets.Snippet{
		ID:          id,
		Title:       "Snippet " + id,
		Description: "Generated for load testing",
		Code:        fmt.Sprintf("echo %q", id),
		Language:    "bash",
		Category:    snippets.DefaultCategory,
		NamespaceID: namespace,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

// compareStates returns "" when got holds the same snippets and namespaces as
// want, or a description of the first difference.
func compareStates(want, got *snippets.State) string {
	if len(want.Snippets) != len(got.Snippets) {
		return fmt.Sprintf("snippet count %d, want %d", len(got.Snippets), len(want.Snippets))
	}
	if len(want.Namespaces) != len(got.Namespaces) {
		return fmt.Sprintf("namespace count %d, want %d", len(got.Namespaces), len(want.Namespaces))
	}

	stored := make(map[string]snippets.Snippet, len(got.Snippets))
	for _, sn := range got.Snippets {
		stored[sn.ID] = sn
	}
	for _, sn := range want.Snippets {
		s, ok := stored[sn.ID]
		if !ok {
			return fmt.Sprintf("snippet %s missing from store", sn.ID)
		}
		if s.Title != sn.Title || s.UpdatedAt != sn.UpdatedAt || s.NamespaceID != sn.NamespaceID {
			return fmt.Sprintf("snippet %s is stale (title %q, want %q)", sn.ID, s.Title, sn.Title)
		}
	}
	return ""
}

// computeLatencyStats calculates statistics from a slice of durations.
func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return &LatencyStats{
		Min:       sorted[0],
		Max:       sorted[len(sorted)-1],
		Mean:      sum / time.Duration(len(durations)),
		P50:       sorted[len(sorted)*50/100],
		P95:       sorted[len(sorted)*95/100],
		P99:       sorted[len(sorted)*99/100],
		Total:     len(durations),
		Durations: sorted,
	}
}

// PrintStats formats and prints the report.
func (r *Report) PrintStats() {
	fmt.Printf("Write-back Statistics:\n")
	fmt.Printf("  Events:        %d\n", r.Events)
	fmt.Printf("  Saves:         %d\n", r.Saves)
	fmt.Printf("  Coalescing:    %.1f events/save\n", r.Coalescing())
	fmt.Printf("  Superseded:    %d\n", r.Superseded)
	fmt.Printf("  Failures:      %d\n", r.Failures)
	fmt.Printf("  Elapsed:       %v\n", r.Elapsed.Round(time.Millisecond))
	fmt.Printf("Save Latency:\n")
	fmt.Printf("  Min:           %v\n", r.SaveLatency.Min)
	fmt.Printf("  P50 (Median):  %v\n", r.SaveLatency.P50)
	fmt.Printf("  Mean:          %v\n", r.SaveLatency.Mean)
	fmt.Printf("  P95:           %v\n", r.SaveLatency.P95)
	fmt.Printf("  P99:           %v\n", r.SaveLatency.P99)
	fmt.Printf("  Max:           %v\n", r.SaveLatency.Max)
}
