package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codesnip/snipsync/internal/config"
	"github.com/codesnip/snipsync/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "advanced",
	Short:   "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as TOML",
	Long: `Print the configuration after merging defaults, the config file,
SNIPSYNC_* environment variables and flags.

The output is valid TOML and can be saved as snipsync.toml.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, v := loadConfig(cmd)

		if used := v.ConfigFileUsed(); used != "" {
			fmt.Fprintf(os.Stderr, "%s\n", ui.RenderMuted("# from "+used))
		}
		if err := config.Show(os.Stdout, cfg); err != nil {
			fatalf("%v", err)
		}
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
