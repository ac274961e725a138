package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

// isolateHome keeps a developer's ~/.config/filesync out of the tests.
func isolateHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("database", "", "")
	fs.String("grep", "", "")
	fs.Int("jobs", 1, "")
	fs.Bool("keep-date", false, "")
	fs.Duration("debounce", 300*time.Millisecond, "")
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	isolateHome(t)
	repo := t.TempDir()

	cfg, err := Load(repo, "", nil)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	want := &Config{
		Repo:        repo,
		Database:    filepath.Join(repo, ".filesync", "content.db"),
		FrontMatter: "yaml",
		Jobs:        1,
		Log:         LogConfig{MaxSize: 20, MaxBackups: 2, MaxAge: 10},
		Watch:       WatchConfig{Debounce: 300 * time.Millisecond},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_RepoConfigFile(t *testing.T) {
	isolateHome(t)
	repo := t.TempDir()
	path := filepath.Join(repo, ".filesync", "config.yaml")
	writeConfig(t, path, `
uploads: /srv/uploads
front_matter: toml
no_cleanup: true
grep: /post/
jobs: 4
log:
  file: /tmp/filesync.log
  max_backups: 5
watch:
  debounce: 1s
`)

	cfg, err := Load(repo, "", nil)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.File != path {
		t.Errorf("File = %q, want %q", cfg.File, path)
	}
	if cfg.Uploads != "/srv/uploads" || cfg.FrontMatter != "toml" || !cfg.NoCleanup || cfg.Grep != "/post/" || cfg.Jobs != 4 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Log.File != "/tmp/filesync.log" || cfg.Log.MaxBackups != 5 || cfg.Log.MaxSize != 20 {
		t.Errorf("unexpected log config: %+v", cfg.Log)
	}
	if cfg.Watch.Debounce != time.Second {
		t.Errorf("Debounce = %v, want 1s", cfg.Watch.Debounce)
	}
}

func TestLoad_ExplicitTOMLFile(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "site.toml")
	writeConfig(t, path, "keep_date = true\n\n[log]\nmax_age = 30\n")

	cfg, err := Load(t.TempDir(), path, nil)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if !cfg.KeepDate || cfg.Log.MaxAge != 30 {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolateHome(t)
	if _, err := Load(t.TempDir(), filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Error("Load() with a missing explicit file should fail")
	}
}

func TestLoad_Precedence(t *testing.T) {
	isolateHome(t)
	repo := t.TempDir()
	writeConfig(t, filepath.Join(repo, ".filesync", "config.yaml"), "jobs: 2\ngrep: from-file\nkeep_date: true\n")
	t.Setenv("FILESYNC_JOBS", "3")
	t.Setenv("FILESYNC_LOG_FILE", "/tmp/env.log")

	flags := testFlags()
	if err := flags.Parse([]string{"--grep", "from-flag"}); err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	cfg, err := Load(repo, "", flags)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"flag beats file", cfg.Grep, "from-flag"},
		{"env beats file", cfg.Jobs, 3},
		{"nested env key", cfg.Log.File, "/tmp/env.log"},
		{"file beats default", cfg.KeepDate, true},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoad_Invalid(t *testing.T) {
	isolateHome(t)

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"front matter", "front_matter: json\n", "front_matter"},
		{"jobs", "jobs: 0\n", "jobs"},
		{"grep", "grep: '('\n", "grep"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			writeConfig(t, path, tt.content)

			_, err := Load(t.TempDir(), path, nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestSyncOptions(t *testing.T) {
	cfg := &Config{Grep: `^.*/post/.*`, Jobs: 2, KeepDate: true, Uploads: "/u", FrontMatter: "yaml"}

	opts, err := cfg.SyncOptions()
	if err != nil {
		t.Fatalf("SyncOptions() failed: %v", err)
	}
	if opts.Grep == nil || !opts.Grep.MatchString("/repo/post/a.html") || opts.Grep.MatchString("/repo/page/a.html") {
		t.Errorf("Grep = %v", opts.Grep)
	}
	if opts.Jobs != 2 || !opts.KeepDate || opts.UploadsDir != "/u" {
		t.Errorf("unexpected options: %+v", opts)
	}

	codec, err := cfg.Codec()
	if err != nil {
		t.Fatalf("Codec() failed: %v", err)
	}
	if codec.Format() != "yaml" {
		t.Errorf("Codec().Format() = %q", codec.Format())
	}
}

func TestLogging(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "filesync.log")

	var console bytes.Buffer
	logging := NewLogging(LogConfig{File: logFile, MaxSize: 1}, &console, false)
	logging.Logger("sync").Printf("dumped %d records", 3)
	if err := logging.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	if !strings.Contains(console.String(), "[sync] ") || !strings.Contains(console.String(), "dumped 3 records") {
		t.Errorf("console output = %q", console.String())
	}
	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "dumped 3 records") {
		t.Errorf("log file = %q", data)
	}
}

func TestLogging_Quiet(t *testing.T) {
	var console bytes.Buffer
	logging := NewLogging(LogConfig{}, &console, true)
	logging.Logger("watch").Print("hidden")

	if console.Len() != 0 {
		t.Errorf("quiet logging wrote %q", console.String())
	}
	if err := logging.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
}
