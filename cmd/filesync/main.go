// Command filesync keeps database content and a version controlled tree of
// plain-text files in step.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/clarive/filesync/internal/config"
	"github.com/clarive/filesync/internal/content/db"
	contentsync "github.com/clarive/filesync/internal/content/sync"
	"github.com/clarive/filesync/internal/ui"
)

var (
	cfgFile string
	quiet   bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "filesync",
	Short: "Sync database content with a tree of text files",
	Long: `filesync dumps content records from a database into one file per record
and loads edited files back, so content can be reviewed, diffed and
committed like code.

Files live at <repo>/<type>/<slug>.<ext>: a front matter block, a "---"
line, then the body.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.DisableColor()
		}
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default <repo>/.filesync/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress log output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().String("database", "", "database path (default <repo>/.filesync/content.db)")
	rootCmd.PersistentFlags().String("front-matter", "yaml", "front matter format: yaml or toml")
	rootCmd.PersistentFlags().String("log-file", "", "also write logs to this file, rotated by size")

	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "setup", Title: "Setup Commands:"},
	)
}

// Flags shared by several commands.
func addCleanupFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("no-cleanup", false, "keep \\r, tabs and trailing spaces in bodies")
}

func addGrepFlag(cmd *cobra.Command) {
	cmd.Flags().String("grep", "", "only process files whose path matches this regular expression")
}

func addJobsFlag(cmd *cobra.Command) {
	cmd.Flags().Int("jobs", 1, "number of records processed concurrently")
}

func addLoadFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("keep-date", false, "keep the file's modified date instead of stamping the current time")
	cmd.Flags().Bool("no-refresh", false, "do not rewrite files after loading them")
}

// session is everything a command needs to run a pass.
type session struct {
	cfg     *config.Config
	logging *config.Logging
	db      *db.DB
	syncer  *contentsync.Syncer
	opts    contentsync.Options

	// cleanup runs before the database is closed, last registered first.
	cleanup []func()
}

// openSession loads the configuration for repo and opens its store.
// It exits the process on failure.
func openSession(cmd *cobra.Command, repo string) *session {
	abs, err := filepath.Abs(repo)
	if err != nil {
		fatalf("Error resolving %s: %v", repo, err)
	}

	cfg, err := config.Load(abs, cfgFile, cmd.Flags())
	if err != nil {
		fatalf("Error loading config: %v", err)
	}

	opts, err := cfg.SyncOptions()
	if err != nil {
		fatalf("Error: %v", err)
	}
	codec, err := cfg.Codec()
	if err != nil {
		fatalf("Error: %v", err)
	}

	logging := config.NewLogging(cfg.Log, os.Stderr, quiet)

	database, err := db.Open(cfg.Database)
	if err != nil {
		fatalf("Error opening database: %v", err)
	}
	if err := database.InitSchema(cmd.Context()); err != nil {
		database.Close()
		fatalf("Error initializing schema: %v", err)
	}

	return &session{
		cfg:     cfg,
		logging: logging,
		db:      database,
		syncer:  contentsync.New(database, codec, logging.Logger("sync")),
		opts:    opts,
	}
}

// onClose registers fn to run when the session is closed.
func (s *session) onClose(fn func()) {
	s.cleanup = append(s.cleanup, fn)
}

// Close runs the registered cleanups, closes the database and flushes the
// log file. Every exit path after openSession must go through it.
func (s *session) Close() {
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		s.cleanup[i]()
	}
	s.cleanup = nil
	if err := s.db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error closing database: %v\n", err)
	}
	s.logging.Close()
}

// fatalf closes the session, prints the message and exits with status 1.
func (s *session) fatalf(format string, args ...any) {
	s.Close()
	fatalf(format, args...)
}

// exit closes the session and exits with code.
func (s *session) exit(code int) {
	s.Close()
	os.Exit(code)
}

// printReport summarizes a bulk pass and reports whether it was clean.
func printReport(verb string, report *contentsync.Report, elapsed time.Duration) bool {
	fmt.Printf("%s %s %d record(s) in %v\n", ui.RenderPass("✓"), verb, report.Written, elapsed.Round(time.Millisecond))
	if report.Skipped > 0 {
		fmt.Printf("   %s\n", ui.RenderMuted(fmt.Sprintf("Skipped: %d (filtered out)", report.Skipped)))
	}
	if len(report.Orphans) > 0 {
		fmt.Printf("%s %d record(s) have no file and were not deleted: %v\n",
			ui.RenderWarn("⚠"), len(report.Orphans), report.Orphans)
	}
	if report.Failed == 0 {
		return true
	}

	fmt.Printf("%s %d failed:\n", ui.RenderFail("✗"), report.Failed)
	for _, f := range report.Failures {
		fmt.Printf("   %v\n", f.Err)
	}
	return false
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
