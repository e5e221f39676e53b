package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codesnip/snipsync/internal/api"
	"github.com/codesnip/snipsync/internal/storage/sqlite"
	"github.com/codesnip/snipsync/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "store",
	Short:   "Serve the snippet REST backend over the local database",
	Long: `Start the snippet REST backend on top of the local SQLite database.

Endpoints:
  GET    /health
  GET    /api/snippets            POST /api/snippets
  GET    /api/snippets/{id}       PUT  /api/snippets/{id}    DELETE /api/snippets/{id}
  GET    /api/namespaces          POST /api/namespaces       DELETE /api/namespaces/{id}
  POST   /api/wipe

A daemon configured with backend=remote writes through these endpoints.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, _ := loadConfig(cmd)

		logs := openLogs(cfg)
		defer logs.Close()

		store, err := sqlite.Open(cfg.Storage.DatabasePath)
		if err != nil {
			fatalf("%v", err)
		}
		defer store.Close()

		server, err := api.NewServer(store, &api.Config{
			Host:           cfg.API.Host,
			Port:           cfg.API.Port,
			AllowedOrigins: cfg.API.AllowedOrigins,
			Logger:         logs.Logger("api"),
		})
		if err != nil {
			fatalf("%v", err)
		}
		if err := server.Start(); err != nil {
			fatalf("failed to start server: %v", err)
		}

		fmt.Printf("%s Snippet backend listening on http://%s\n", ui.RenderAccent("🚀"), server.GetAddr())
		fmt.Printf("   Database: %s\n", store.Path())
		fmt.Printf("   Allowed origins: %s\n", cfg.API.AllowedOrigins)
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		<-ctx.Done()

		fmt.Println("\nShutting down...")
		if err := server.Stop(); err != nil {
			fatalf("shutdown failed: %v", err)
		}
	},
}

var wipeCmd = &cobra.Command{
	Use:     "wipe",
	GroupID: "advanced",
	Short:   "Drop and recreate the local database",
	Long: `Delete every snippet and namespace from the local database and recreate
the schema with only the default namespace.

Workspace files are not touched; run 'snipsync sync' to repopulate.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, _ := loadConfig(cmd)

		if force, _ := cmd.Flags().GetBool("force"); !force {
			fmt.Fprintf(os.Stderr, "%s This deletes everything in %s\n", ui.RenderWarn("⚠"), cfg.Storage.DatabasePath)
			fmt.Fprintf(os.Stderr, "   Re-run with --force to continue\n")
			os.Exit(1)
		}

		store, err := sqlite.Open(cfg.Storage.DatabasePath)
		if err != nil {
			fatalf("%v", err)
		}
		defer store.Close()

		if err := store.Wipe(context.Background()); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Database wiped and recreated: %s\n", ui.RenderPass("✓"), store.Path())
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 5000, "Port to listen on")
	serveCmd.Flags().String("host", "", "Host to bind")
	serveCmd.Flags().String("log-file", "", "Also write logs to this file (rotated)")

	wipeCmd.Flags().BoolP("force", "f", false, "Skip the confirmation check")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(wipeCmd)
}
