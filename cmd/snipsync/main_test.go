package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "0 bytes"},
		{1024, "1024 bytes"},
		{1536, "1.5 KB"},
		{3 * 1024 * 1024, "3.0 MB"},
	}

	for _, tt := range tests {
		if got := formatSize(tt.size); got != tt.want {
			t.Errorf("formatSize(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}

func TestReadCode(t *testing.T) {
	code, err := readCode("")
	if err != nil || code != "" {
		t.Fatalf("readCode(\"\") = %q, %v; want empty", code, err)
	}

	path := filepath.Join(t.TempDir(), "hello.py")
	if err := os.WriteFile(path, []byte("print('hi')\n"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	code, err = readCode(path)
	if err != nil {
		t.Fatalf("readCode failed: %v", err)
	}
	if code != "print('hi')\n" {
		t.Errorf("readCode = %q", code)
	}

	if _, err := readCode(filepath.Join(t.TempDir(), "missing.py")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfig_Flags(t *testing.T) {
	t.Chdir(t.TempDir())

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Duration("debounce", 0, "")
	cmd.Flags().Int("max-retries", 0, "")
	cmd.Flags().String("backend", "", "")
	if err := cmd.Flags().Set("debounce", "2s"); err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}

	cfg, _ := loadConfig(cmd)

	if cfg.Sync.DebounceDelay != 2*time.Second {
		t.Errorf("DebounceDelay = %v, want 2s", cfg.Sync.DebounceDelay)
	}
	// Unset flags leave defaults alone.
	if cfg.Sync.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", cfg.Sync.MaxRetries)
	}
	if cfg.Storage.Backend != "local" {
		t.Errorf("Backend = %q, want local", cfg.Storage.Backend)
	}
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("sync:\n  max_retries: 7\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	old := configFile
	configFile = path
	defer func() { configFile = old }()

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Int("max-retries", 0, "")

	cfg, v := loadConfig(cmd)
	if cfg.Sync.MaxRetries != 7 {
		t.Errorf("MaxRetries = %d, want 7", cfg.Sync.MaxRetries)
	}
	if v.ConfigFileUsed() != path {
		t.Errorf("ConfigFileUsed = %q, want %q", v.ConfigFileUsed(), path)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"daemon", "sync", "status", "serve", "wipe", "config", "new", "export", "bench"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd == rootCmd {
			t.Errorf("command %q not registered", name)
		}
	}
}
