package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/codesnip/snipsync/internal/snippets"
	"github.com/codesnip/snipsync/internal/ui"
)

var newCmd = &cobra.Command{
	Use:     "new <title>",
	GroupID: "sync",
	Short:   "Create a snippet file in the workspace",
	Long: `Create snippets/<id>.json in the workspace. The code is read from --file,
or from stdin when --file is "-".

A running daemon picks the new file up like any other edit.

Example:
  snipsync new "List pods" --language bash --file pods.sh`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, _ := loadConfig(cmd)

		language, _ := cmd.Flags().GetString("language")
		namespace, _ := cmd.Flags().GetString("namespace")
		description, _ := cmd.Flags().GetString("description")
		file, _ := cmd.Flags().GetString("file")

		code, err := readCode(file)
		if err != nil {
			fatalf("%v", err)
		}

		sn := &snippets.Snippet{
			ID:          uuid.NewString(),
			Title:       args[0],
			Description: description,
			Code:        code,
			Language:    language,
			NamespaceID: namespace,
		}
		sn.ApplyDefaults()
		if err := sn.Validate(); err != nil {
			fatalf("%v", err)
		}

		dir := filepath.Join(cfg.Workspace, snippets.SnippetsDir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			fatalf("failed to create %s: %v", dir, err)
		}
		if err := snippets.WriteSnippetFile(dir, sn); err != nil {
			fatalf("%v", err)
		}

		fmt.Printf("%s Created %s\n", ui.RenderPass("✓"), filepath.Join(dir, sn.Filename()))
	},
}

func readCode(file string) (string, error) {
	switch file {
	case "":
		return "", nil
	case "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", file, err)
		}
		return string(data), nil
	}
}

func init() {
	newCmd.Flags().StringP("language", "l", "", "Snippet language (required)")
	newCmd.Flags().StringP("namespace", "n", snippets.DefaultNamespaceID, "Namespace id")
	newCmd.Flags().StringP("description", "d", "", "Short description")
	newCmd.Flags().StringP("file", "f", "", `Read the code from this file ("-" for stdin)`)
	_ = newCmd.MarkFlagRequired("language")

	rootCmd.AddCommand(newCmd)
}
