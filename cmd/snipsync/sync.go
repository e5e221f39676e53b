package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codesnip/snipsync/internal/daemon"
	"github.com/codesnip/snipsync/internal/snippets"
	"github.com/codesnip/snipsync/internal/storage"
	"github.com/codesnip/snipsync/internal/storage/sqlite"
	"github.com/codesnip/snipsync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Write the workspace to the store once",
	Long: `Write the whole workspace to the configured store and exit.

This performs one flush:
  1. Reads all snippets/*.json and namespaces/*.json files
  2. Writes them to the store, removing anything no longer in the workspace
  3. Retries on failure according to the sync settings

The sync.enabled setting is ignored: an explicit sync always runs.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, _ := loadConfig(cmd)

		logs := openLogs(cfg)
		defer logs.Close()

		state, err := snippets.LoadState(cfg.Workspace, logs.Logger("sync"))
		if err != nil {
			fatalf("%v", err)
		}

		backend, err := storage.Open(cfg.Storage)
		if err != nil {
			fatalf("%v", err)
		}
		defer backend.Close()

		workspace, _ := filepath.Abs(cfg.Workspace)
		fmt.Printf("%s Syncing %s to %s store...\n", ui.RenderAccent("🔄"), workspace, cfg.Storage.Backend)
		start := time.Now()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := daemon.SyncOnce(ctx, backend, cfg.Workspace, cfg.Sync, logs.Logger("sync")); err != nil {
			fatalf("%v", err)
		}

		fmt.Printf("%s Sync complete in %v\n", ui.RenderPass("✓"), time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Snippets: %d\n", len(state.Snippets))
		fmt.Printf("   Namespaces: %d\n", len(state.Namespaces))
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "store",
	Short:   "Show local store and workspace status",
	Long: `Display the contents of the local database next to the workspace.

Shows:
  - Database location and size
  - Number of snippets and namespaces in the database and in the workspace
  - When a snippet was last updated`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, _ := loadConfig(cmd)
		path := cfg.Storage.DatabasePath

		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			fmt.Printf("\n%s Local store not initialized\n", ui.RenderWarn("⚠"))
			fmt.Printf("   Run 'snipsync sync' to create %s\n\n", path)
			return
		}
		if err != nil {
			fatalf("failed to check database: %v", err)
		}

		store, err := sqlite.Open(path)
		if err != nil {
			fatalf("%v", err)
		}
		defer store.Close()

		stats, err := store.Stats(context.Background())
		if err != nil {
			fatalf("%v", err)
		}

		lastUpdate := "never"
		if stats.LastUpdate > 0 {
			lastUpdate = ui.Ago(stats.LastUpdate.Time())
		}

		rows := [][2]string{
			{"Location", stats.Path},
			{"Size", formatSize(info.Size())},
			{"Snippets", fmt.Sprint(stats.Snippets)},
			{"Namespaces", fmt.Sprint(stats.Namespaces)},
			{"Last update", lastUpdate},
		}

		if state, err := snippets.ReadState(cfg.Workspace); err == nil {
			ws := fmt.Sprintf("%d snippets, %d namespaces", len(state.Snippets), len(state.Namespaces))
			if len(state.Snippets) != stats.Snippets || len(state.Namespaces) != stats.Namespaces {
				ws = ui.RenderWarn(ws + " (out of sync)")
			}
			rows = append(rows, [2]string{"Workspace", ws})
		}

		fmt.Printf("\n%s snipsync status\n\n", ui.RenderAccent("📊"))
		fmt.Print(ui.KeyValue(rows))
		fmt.Println()
	},
}

func formatSize(size int64) string {
	switch {
	case size > 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	case size > 1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}

func init() {
	syncCmd.Flags().String("backend", "", "Store to write to: local or remote")
	syncCmd.Flags().String("remote-url", "", "Base URL of the remote snippet backend")
	syncCmd.Flags().Int("max-retries", 0, "Retries after a failed flush")
	syncCmd.Flags().BoolP("verbose", "v", false, "Log every flush step")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
}
