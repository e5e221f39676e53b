package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codesnip/snipsync/internal/loadtest"
	"github.com/codesnip/snipsync/internal/storage/sqlite"
	"github.com/codesnip/snipsync/internal/ui"
)

var benchCmd = &cobra.Command{
	Use:     "bench",
	GroupID: "advanced",
	Short:   "Measure write-back under concurrent edits",
	Long: `Simulate concurrent editors against a scratch SQLite database and report
how the write-back pipeline copes.

The run measures save latency and how many events each save absorbed, then
checks that the database ends up holding the final workspace state.

Examples:
  # Default run (8 editors, 50 edits each, 200 snippets)
  snipsync bench

  # Heavier run with a longer quiet period
  snipsync bench --editors 32 --edits 200 --snippets 2000 --debounce 100ms

  # Output the report as JSON
  snipsync bench --json
`,
	Run: runBench,
}

func init() {
	benchCmd.Flags().Int("editors", 8, "Number of concurrent editors to simulate")
	benchCmd.Flags().Int("edits", 50, "Edits per editor")
	benchCmd.Flags().Int("snippets", 200, "Snippets in the initial workspace")
	benchCmd.Flags().Int("namespaces", 5, "Namespaces in the initial workspace")
	benchCmd.Flags().Duration("debounce", 0, "Quiet period before a flush (default: 20ms)")
	benchCmd.Flags().Bool("json", false, "Output results as JSON")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) {
	opts := loadtest.DefaultOptions()
	opts.Editors, _ = cmd.Flags().GetInt("editors")
	opts.EditsPerEditor, _ = cmd.Flags().GetInt("edits")
	opts.Snippets, _ = cmd.Flags().GetInt("snippets")
	opts.Namespaces, _ = cmd.Flags().GetInt("namespaces")
	if d, _ := cmd.Flags().GetDuration("debounce"); d > 0 {
		opts.Sync.DebounceDelay = d
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if opts.Namespaces < 0 {
		fatalf("--namespaces must not be negative")
	}

	dir, err := os.MkdirTemp("", "snipsync-bench-")
	if err != nil {
		fatalf("failed to create scratch directory: %v", err)
	}
	defer os.RemoveAll(dir)

	store, err := sqlite.Open(filepath.Join(dir, "bench.db"))
	if err != nil {
		fatalf("%v", err)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if !jsonOutput {
		fmt.Printf("%s Running %d editors x %d edits over %d snippets...\n\n",
			ui.RenderAccent("⏱"), opts.Editors, opts.EditsPerEditor, opts.Snippets)
	}

	report, err := loadtest.Run(ctx, store, opts)
	if err != nil {
		fatalf("%v", err)
	}

	if jsonOutput {
		report.SaveLatency.Durations = nil
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fatalf("failed to encode report: %v", err)
		}
	} else {
		report.PrintStats()
		fmt.Println()
	}

	if !report.Consistent {
		fmt.Fprintf(os.Stderr, "%s Store diverged from workspace: %s\n", ui.RenderFail("✗"), report.Mismatch)
		os.Exit(1)
	}
	if !jsonOutput {
		fmt.Printf("%s Store holds the final workspace state\n", ui.RenderPass("✓"))
	}
}
