package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpen_StderrOnly(t *testing.T) {
	out, err := Open(DefaultConfig())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer out.Close()

	if out.Writer() != os.Stderr {
		t.Errorf("Writer() = %T, want os.Stderr", out.Writer())
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "snipsync.log")
	cfg := DefaultConfig()
	cfg.File = path

	out, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	out.Logger("daemon").Printf("flush %d done", 7)
	if err := out.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "[daemon] ") || !strings.Contains(string(data), "flush 7 done") {
		t.Errorf("log file = %q", data)
	}
}

func TestOpen_RejectsNegativeLimits(t *testing.T) {
	_, err := Open(Config{File: "x.log", MaxSizeMB: -1})
	if err == nil {
		t.Error("Open() accepted a negative size")
	}
}
