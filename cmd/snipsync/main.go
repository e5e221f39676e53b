// Command snipsync keeps a snippet workspace written back to its store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codesnip/snipsync/internal/config"
	"github.com/codesnip/snipsync/internal/logging"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "snipsync",
	Short: "Durable write-back for snippet workspaces",
	Long: `snipsync mirrors a snippet workspace (snippets/*.json and
namespaces/*.json) into a local SQLite database or a remote snippet backend.

Edits are debounced, saved one flush at a time, and retried on failure.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "store", Title: "Store Commands:"},
		&cobra.Group{ID: "advanced", Title: "Advanced Commands:"},
	)

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: ./snipsync.yaml or ~/.config/snipsync/snipsync.yaml)")
	rootCmd.PersistentFlags().StringP("workspace", "w", "", "Workspace directory holding snippets/ and namespaces/")
	rootCmd.PersistentFlags().String("db", "", "Path to the local SQLite database")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the configuration with cmd's flags layered on top.
// It exits on error, like every other command failure.
func loadConfig(cmd *cobra.Command) (*config.Config, *viper.Viper) {
	v := config.New(configFile)

	bind := map[string]string{
		"workspace":      "workspace",
		"db":             "storage.database_path",
		"backend":        "storage.backend",
		"remote-url":     "storage.remote_url",
		"port":           "api.port",
		"host":           "api.host",
		"dashboard":      "dashboard.enabled",
		"dashboard-port": "dashboard.port",
		"log-file":       "logging.file",
		"debounce":       "sync.debounce_delay",
		"verbose":        "sync.logging_enabled",
		"max-retries":    "sync.max_retries",
	}
	for flag, key := range bind {
		if f := cmd.Flags().Lookup(flag); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		fatalf("%v", err)
	}
	return cfg, v
}

// openLogs opens the configured log output, exiting on error.
func openLogs(cfg *config.Config) *logging.Output {
	out, err := logging.Open(cfg.Logging)
	if err != nil {
		fatalf("failed to open log file: %v", err)
	}
	return out
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
