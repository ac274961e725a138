package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/clarive/filesync/internal/config"
	"github.com/clarive/filesync/internal/content/db"
)

func TestSessionClose(t *testing.T) {
	tmpDir := t.TempDir()
	database, err := db.Open(filepath.Join(tmpDir, "content.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	logFile := filepath.Join(tmpDir, "filesync.log")
	logging := config.NewLogging(config.LogConfig{File: logFile, MaxSize: 1}, io.Discard, false)

	s := &session{db: database, logging: logging}
	var order []string
	s.onClose(func() { order = append(order, "first") })
	s.onClose(func() { order = append(order, "second") })

	logging.Logger("sync").Printf("Dump complete")
	s.Close()

	if diff := cmp.Diff([]string{"second", "first"}, order); diff != "" {
		t.Errorf("cleanup order mismatch (-want +got):\n%s", diff)
	}
	if _, err := database.GetRecordCount(context.Background()); err == nil {
		t.Error("database should be closed")
	}
	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.HasPrefix(string(data), "[sync] ") || !strings.Contains(string(data), "Dump complete") {
		t.Errorf("log file = %q, want the sync line", data)
	}
}
