package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setupRepo(t *testing.T, typeDirs ...string) string {
	t.Helper()

	repo := t.TempDir()
	for _, dir := range typeDirs {
		if err := os.MkdirAll(filepath.Join(repo, dir), 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", dir, err)
		}
	}
	return repo
}

func startWatcher(t *testing.T, repo string) *FileWatcher {
	t.Helper()

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	t.Cleanup(func() { fw.Stop() })

	if err := fw.Start(repo); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	return fw
}

// nextEvent waits for the first event on path, skipping unrelated ones.
func nextEvent(t *testing.T, fw *FileWatcher, path string) FileEvent {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case event := <-fw.Events():
			if event.Path == path {
				return event
			}
		case <-timeout:
			t.Fatalf("Timeout waiting for event on %s", path)
		}
	}
}

func TestFileWatcher_StartStop(t *testing.T) {
	repo := setupRepo(t, "post")

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	if fw.IsRunning() {
		t.Error("Newly created watcher should not be running")
	}

	if err := fw.Start(repo); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !fw.IsRunning() {
		t.Error("Watcher should be running after Start()")
	}
	if err := fw.Start(repo); err == nil {
		t.Error("Second Start() should fail when watcher is already running")
	}

	if err := fw.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if fw.IsRunning() {
		t.Error("Watcher should not be running after Stop()")
	}
}

func TestFileWatcher_StartMissingRepo(t *testing.T) {
	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if err := fw.Start(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Start() on a missing repository should fail")
	}
}

func TestFileWatcher_RecordFileEvents(t *testing.T) {
	repo := setupRepo(t, "post")
	fw := startWatcher(t, repo)

	path := filepath.Join(repo, "post", "hello.html")
	if err := os.WriteFile(path, []byte("id: 1\n---\n"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if event := nextEvent(t, fw, path); event.Op != OpCreate {
		t.Errorf("Expected OpCreate, got %v", event.Op)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("Failed to remove file: %v", err)
	}
	for {
		event := nextEvent(t, fw, path)
		if event.Op == OpDelete {
			break
		}
	}
}

func TestFileWatcher_IgnoresOtherFiles(t *testing.T) {
	repo := setupRepo(t, "post", ".git")
	fw := startWatcher(t, repo)

	for _, rel := range []string{"post/notes.txt", ".git/HEAD.yml", "top.html"} {
		if err := os.WriteFile(filepath.Join(repo, rel), []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", rel, err)
		}
	}

	select {
	case event := <-fw.Events():
		t.Errorf("Unexpected event: %s %s", event.Op, event.Path)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestFileWatcher_NewTypeDirectory(t *testing.T) {
	repo := setupRepo(t)
	fw := startWatcher(t, repo)

	dir := filepath.Join(repo, "widget")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatalf("Failed to create type dir: %v", err)
	}
	// Give the watcher time to add the new directory.
	time.Sleep(200 * time.Millisecond)

	path := filepath.Join(dir, "sidebar.yml")
	if err := os.WriteFile(path, []byte("id: 2\n---\n"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	nextEvent(t, fw, path)
}

func TestEventOp_String(t *testing.T) {
	tests := []struct {
		op   EventOp
		want string
	}{
		{OpCreate, "create"},
		{OpModify, "modify"},
		{OpDelete, "delete"},
		{EventOp(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("EventOp(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}
