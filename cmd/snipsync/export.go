package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codesnip/snipsync/internal/migrate"
	"github.com/codesnip/snipsync/internal/storage"
	"github.com/codesnip/snipsync/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "advanced",
	Short:   "Write the store's snippets into the workspace",
	Long: `Create workspace files from the snippets already held in the configured
store. Use this once to adopt an existing snippet database (including one
created by an older backend) before starting the daemon.

This performs:
  1. Reads all namespaces and snippets from the store
  2. Writes namespaces/*.json and snippets/*.json into the workspace
  3. Reports entities that could not be exported

Existing files with the same id are overwritten. Use --backup to move the
current workspace directories aside first.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, _ := loadConfig(cmd)
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		backup, _ := cmd.Flags().GetBool("backup")

		backend, err := storage.Open(cfg.Storage)
		if err != nil {
			fatalf("%v", err)
		}
		defer backend.Close()

		src, ok := backend.(migrate.Source)
		if !ok {
			fatalf("backend %q cannot be read", cfg.Storage.Backend)
		}

		result, err := migrate.Export(context.Background(), src, migrate.ExportOptions{
			Workspace: cfg.Workspace,
			DryRun:    dryRun,
			Backup:    backup,
		})
		if err != nil {
			fatalf("%v", err)
		}

		if dryRun {
			fmt.Printf("%s Dry run, nothing written\n", ui.RenderWarn("⚠"))
		}
		for _, b := range result.BackupsCreated {
			fmt.Printf("   Backup: %s\n", b)
		}
		fmt.Printf("%s Exported %d snippets and %d namespaces (%d files written)\n",
			ui.RenderPass("✓"), result.SnippetsExported, result.NamespacesExported, result.FilesWritten)

		if len(result.Errors) > 0 {
			fmt.Fprintf(os.Stderr, "\n%s %d entities skipped:\n", ui.RenderWarn("⚠"), len(result.Errors))
			for _, e := range result.Errors {
				fmt.Fprintf(os.Stderr, "   %s\n", e)
			}
			os.Exit(1)
		}
	},
}

func init() {
	exportCmd.Flags().String("backend", "", "Store to read from: local or remote")
	exportCmd.Flags().String("remote-url", "", "Base URL of the remote snippet backend")
	exportCmd.Flags().Bool("dry-run", false, "Show what would be exported without writing")
	exportCmd.Flags().Bool("backup", false, "Move existing workspace directories aside first")

	rootCmd.AddCommand(exportCmd)
}
