package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codesnip/snipsync/internal/config"
	"github.com/codesnip/snipsync/internal/daemon"
	"github.com/codesnip/snipsync/internal/dashboard"
	"github.com/codesnip/snipsync/internal/storage"
	"github.com/codesnip/snipsync/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Watch the workspace and write changes back (foreground)",
	Long: `Watch snippets/ and namespaces/ and write the workspace back to the
configured store whenever a file changes.

The daemon will:
  1. Write the current workspace once at startup
  2. Debounce bursts of edits into a single flush
  3. Retry failed flushes according to the sync settings
  4. Flush anything still pending on Ctrl+C

Changes to the sync section of the config file are applied without a
restart. With --dashboard, flush events are streamed to WebSocket clients.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, v := loadConfig(cmd)

		logs := openLogs(cfg)
		defer logs.Close()

		backend, err := storage.Open(cfg.Storage)
		if err != nil {
			fatalf("%v", err)
		}
		defer backend.Close()

		dcfg := &daemon.Config{
			Workspace: cfg.Workspace,
			Sync:      cfg.Sync,
			Logger:    logs.Logger("daemon"),
		}

		var (
			server  *dashboard.Server
			handler *dashboard.Handler
		)
		if cfg.Dashboard.Enabled {
			server = dashboard.NewServer(&dashboard.Config{
				Port:   cfg.Dashboard.Port,
				Logger: logs.Logger("dashboard"),
			})
			handler = dashboard.NewHandler(server, logs.Logger("dashboard"))
			dcfg.Observer = handler.OnFlushEvent
		}

		d, err := daemon.New(backend, dcfg)
		if err != nil {
			fatalf("failed to create daemon: %v", err)
		}

		if server != nil {
			handler.Attach(d.Coordinator())
			if err := server.Start(); err != nil {
				fatalf("failed to start dashboard: %v", err)
			}
			defer server.Stop()
		}

		if v.ConfigFileUsed() != "" {
			config.Watch(v, logs.Logger("config"), func(next *config.Config) {
				if err := d.UpdateSyncConfig(next.Sync); err != nil {
					dcfg.Logger.Printf("Warning: %v", err)
				}
			})
		}

		target := cfg.Storage.DatabasePath
		if cfg.Storage.Backend == storage.BackendRemote {
			target = cfg.Storage.RemoteURL
		}
		workspace, _ := filepath.Abs(cfg.Workspace)

		fmt.Printf("%s Starting snipsync daemon...\n", ui.RenderAccent("🚀"))
		fmt.Print(ui.KeyValue([][2]string{
			{"Workspace", workspace},
			{"Backend", cfg.Storage.Backend},
			{"Target", target},
			{"Debounce", cfg.Sync.DebounceDelay.String()},
		}))
		if server != nil {
			fmt.Printf("   Dashboard: ws://%s/ws\n", server.GetAddr())
		}
		if !cfg.Sync.Enabled {
			fmt.Printf("%s Persistence is disabled; changes will not be written\n", ui.RenderWarn("⚠"))
		}
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := d.Start(ctx); err != nil {
			fatalf("daemon stopped: %v", err)
		}

		st := d.Coordinator().Stats()
		fmt.Printf("\n%s Daemon stopped (%d saves, %d failures)\n", ui.RenderPass("✓"), st.Saves, st.Failures)
	},
}

func init() {
	daemonCmd.Flags().String("backend", "", "Store to write to: local or remote")
	daemonCmd.Flags().String("remote-url", "", "Base URL of the remote snippet backend")
	daemonCmd.Flags().Duration("debounce", 0, "Quiet period before a flush")
	daemonCmd.Flags().Int("max-retries", 0, "Retries after a failed flush")
	daemonCmd.Flags().BoolP("verbose", "v", false, "Log every event and flush step")
	daemonCmd.Flags().Bool("dashboard", false, "Serve the live WebSocket dashboard")
	daemonCmd.Flags().Int("dashboard-port", 8080, "Dashboard port")
	daemonCmd.Flags().String("log-file", "", "Also write logs to this file (rotated)")

	rootCmd.AddCommand(daemonCmd)
}
