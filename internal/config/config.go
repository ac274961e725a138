// Package config loads filesync settings from a config file, FILESYNC_*
// environment variables and command line flags, in increasing order of
// precedence.
//
// The config file is looked up as config.{yaml,toml} in the repository's
// .filesync directory and then in ~/.config/filesync:
//
//	database: /srv/site/content.db
//	uploads: /srv/site/uploads
//	front_matter: yaml
//	grep: /post/
//	jobs: 4
//	log:
//	  file: /var/log/filesync.log
//	  max_size: 20
//	watch:
//	  debounce: 500ms
//	  dashboard: 127.0.0.1:8080
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/clarive/filesync/internal/content/schema"
	contentsync "github.com/clarive/filesync/internal/content/sync"
)

// Setting keys.
const (
	KeyDatabase    = "database"
	KeyUploads     = "uploads"
	KeyFrontMatter = "front_matter"
	KeyNoCleanup   = "no_cleanup"
	KeyKeepDate    = "keep_date"
	KeyNoRefresh   = "no_refresh"
	KeyGrep        = "grep"
	KeyJobs        = "jobs"

	KeyLogFile       = "log.file"
	KeyLogMaxSize    = "log.max_size"
	KeyLogMaxBackups = "log.max_backups"
	KeyLogMaxAge     = "log.max_age"

	KeyWatchDebounce  = "watch.debounce"
	KeyWatchDashboard = "watch.dashboard"
)

// flagKeys maps command line flag names to setting keys.
var flagKeys = map[string]string{
	"database":     KeyDatabase,
	"uploads":      KeyUploads,
	"front-matter": KeyFrontMatter,
	"no-cleanup":   KeyNoCleanup,
	"keep-date":    KeyKeepDate,
	"no-refresh":   KeyNoRefresh,
	"grep":         KeyGrep,
	"jobs":         KeyJobs,
	"log-file":     KeyLogFile,
	"debounce":     KeyWatchDebounce,
	"dashboard":    KeyWatchDashboard,
}

// EnvPrefix is prepended to every environment variable, e.g. FILESYNC_LOG_FILE.
const EnvPrefix = "FILESYNC"

// DatabaseFile is the default database name inside the state directory.
const DatabaseFile = "content.db"

// Config is the resolved configuration for one invocation.
type Config struct {
	Repo        string
	Database    string
	Uploads     string
	FrontMatter string
	NoCleanup   bool
	KeepDate    bool
	NoRefresh   bool
	Grep        string
	Jobs        int

	Log   LogConfig
	Watch WatchConfig

	// File is the config file that was read, if any.
	File string
}

// LogConfig controls the optional rotating log file.
type LogConfig struct {
	File       string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// WatchConfig controls the watch daemon.
type WatchConfig struct {
	Debounce time.Duration
	// Dashboard is the listen address of the WebSocket feed; empty disables it.
	Dashboard string
}

// StateDir returns the directory holding the database and config file of repo.
func StateDir(repo string) string {
	return filepath.Join(repo, contentsync.StateDir)
}

func setDefaults(v *viper.Viper, repo string) {
	v.SetDefault(KeyDatabase, filepath.Join(StateDir(repo), DatabaseFile))
	v.SetDefault(KeyUploads, "")
	v.SetDefault(KeyFrontMatter, schema.FormatYAML)
	v.SetDefault(KeyNoCleanup, false)
	v.SetDefault(KeyKeepDate, false)
	v.SetDefault(KeyNoRefresh, false)
	v.SetDefault(KeyGrep, "")
	v.SetDefault(KeyJobs, 1)
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyLogMaxSize, 20)
	v.SetDefault(KeyLogMaxBackups, 2)
	v.SetDefault(KeyLogMaxAge, 10)
	v.SetDefault(KeyWatchDebounce, 300*time.Millisecond)
	v.SetDefault(KeyWatchDashboard, "")
}

// Load resolves the configuration for repo. An empty file searches the
// default locations; a missing config file there is not an error. Flags
// that were set on the command line override every other source.
func Load(repo, file string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v, repo)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(StateDir(repo))
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "filesync"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		Repo:        repo,
		Database:    v.GetString(KeyDatabase),
		Uploads:     v.GetString(KeyUploads),
		FrontMatter: v.GetString(KeyFrontMatter),
		NoCleanup:   v.GetBool(KeyNoCleanup),
		KeepDate:    v.GetBool(KeyKeepDate),
		NoRefresh:   v.GetBool(KeyNoRefresh),
		Grep:        v.GetString(KeyGrep),
		Jobs:        v.GetInt(KeyJobs),
		Log: LogConfig{
			File:       v.GetString(KeyLogFile),
			MaxSize:    v.GetInt(KeyLogMaxSize),
			MaxBackups: v.GetInt(KeyLogMaxBackups),
			MaxAge:     v.GetInt(KeyLogMaxAge),
		},
		Watch: WatchConfig{
			Debounce:  v.GetDuration(KeyWatchDebounce),
			Dashboard: v.GetString(KeyWatchDashboard),
		},
		File: v.ConfigFileUsed(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be fixed by defaults.
func (c *Config) Validate() error {
	if _, err := schema.TextCodecFor(c.FrontMatter); err != nil {
		return fmt.Errorf("invalid %s: %w", KeyFrontMatter, err)
	}
	if c.Jobs < 1 {
		return fmt.Errorf("invalid %s: %d (must be at least 1)", KeyJobs, c.Jobs)
	}
	if c.Grep != "" {
		if _, err := regexp.Compile(c.Grep); err != nil {
			return fmt.Errorf("invalid %s pattern: %w", KeyGrep, err)
		}
	}
	if c.Watch.Debounce <= 0 {
		return fmt.Errorf("invalid %s: %s", KeyWatchDebounce, c.Watch.Debounce)
	}
	return nil
}

// Codec returns the record codec for the configured front matter format.
func (c *Config) Codec() (*schema.Codec, error) {
	return schema.NewCodec(c.FrontMatter)
}

// SyncOptions converts the configuration into per-pass options.
func (c *Config) SyncOptions() (contentsync.Options, error) {
	opts := contentsync.Options{
		NoCleanup:  c.NoCleanup,
		KeepDate:   c.KeepDate,
		NoRefresh:  c.NoRefresh,
		Jobs:       c.Jobs,
		UploadsDir: c.Uploads,
	}
	if c.Grep != "" {
		re, err := regexp.Compile(c.Grep)
		if err != nil {
			return opts, fmt.Errorf("invalid %s pattern: %w", KeyGrep, err)
		}
		opts.Grep = re
	}
	return opts, nil
}
