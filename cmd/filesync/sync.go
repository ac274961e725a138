package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	contentsync "github.com/clarive/filesync/internal/content/sync"
	"github.com/clarive/filesync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync <repo>",
	GroupID: "sync",
	Short:   "Dump every record and copy uploads into the repository",
	Long: `Bring the repository up to date with the database:

  1. Report records that have no file (they are never deleted)
  2. Dump every live record to <repo>/<type>/<slug>.<ext>
  3. Copy the uploads directory (--uploads) into <repo>/uploads`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(cmd, args[0])
		defer s.Close()

		fmt.Printf("%s Syncing into %s...\n", ui.RenderAccent("🔄"), s.cfg.Repo)
		start := time.Now()

		report, err := s.syncer.Sync(cmd.Context(), s.cfg.Repo, s.opts)
		if err != nil {
			s.fatalf("Error during sync: %v", err)
		}
		if !printReport("Dumped", report, time.Since(start)) {
			s.exit(1)
		}
	},
}

var dumpCmd = &cobra.Command{
	Use:     "dump <repo>",
	GroupID: "sync",
	Short:   "Write every record to the repository",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(cmd, args[0])
		defer s.Close()

		start := time.Now()
		report, err := s.syncer.Dump(cmd.Context(), s.cfg.Repo, s.opts)
		if err != nil {
			s.fatalf("Error during dump: %v", err)
		}
		if !printReport("Dumped", report, time.Since(start)) {
			s.exit(1)
		}
	},
}

var dumpFileCmd = &cobra.Command{
	Use:     "dump-file <file>",
	GroupID: "sync",
	Short:   "Rewrite one record file from the database",
	Long: `Rewrite an existing record file from the database. The record is found
through the file's id; the repository is the parent of its type directory.
If the record's title changed, the file is renamed.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := absPath(args[0])
		s := openSession(cmd, contentsync.RepoRootOf(path))
		defer s.Close()

		newPath, err := s.syncer.DumpFile(cmd.Context(), path, s.opts)
		if err != nil {
			s.fatalf("Error: %v", err)
		}
		fmt.Printf("%s Dumped %s\n", ui.RenderPass("✓"), newPath)
	},
}

var getCmd = &cobra.Command{
	Use:     "get <repo> <id>",
	GroupID: "sync",
	Short:   "Write one record to the repository by id",
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || id <= 0 {
			fatalf("Error: invalid record id %q", args[1])
		}

		s := openSession(cmd, args[0])
		defer s.Close()

		path, err := s.syncer.DumpByID(cmd.Context(), s.cfg.Repo, id, s.opts)
		if err != nil {
			s.fatalf("Error: %v", err)
		}
		fmt.Printf("%s Dumped %s\n", ui.RenderPass("✓"), path)
	},
}

var loadCmd = &cobra.Command{
	Use:     "load <repo>",
	GroupID: "sync",
	Short:   "Load every record file into the database",
	Long: `Load every .html and .yml file under the repository into the database.

Files must declare an id. An empty or unknown id inserts a new record and
the file is rewritten with the assigned id. Loaded files are rewritten
unless --no-refresh is given, which renames files whose title changed.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(cmd, args[0])
		defer s.Close()

		start := time.Now()
		report, err := s.syncer.Load(cmd.Context(), s.cfg.Repo, s.opts)
		if err != nil {
			s.fatalf("Error during load: %v", err)
		}
		if !printReport("Loaded", report, time.Since(start)) {
			s.exit(1)
		}
	},
}

var loadFileCmd = &cobra.Command{
	Use:     "load-file <file>",
	GroupID: "sync",
	Short:   "Load one record file into the database",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := absPath(args[0])
		s := openSession(cmd, contentsync.RepoRootOf(path))
		defer s.Close()

		r, err := s.syncer.LoadFile(cmd.Context(), path, s.opts)
		if err != nil {
			s.fatalf("Error: %v", err)
		}
		fmt.Printf("%s Loaded %s (id=%d, title=%q)\n", ui.RenderPass("✓"), path, r.ID, r.Title)
	},
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		fatalf("Error resolving %s: %v", path, err)
	}
	return abs
}

func init() {
	for _, cmd := range []*cobra.Command{syncCmd, dumpCmd, dumpFileCmd, getCmd, loadCmd, loadFileCmd} {
		addCleanupFlag(cmd)
	}
	for _, cmd := range []*cobra.Command{syncCmd, dumpCmd, loadCmd} {
		addGrepFlag(cmd)
		addJobsFlag(cmd)
	}
	addLoadFlags(loadCmd)
	addLoadFlags(loadFileCmd)
	syncCmd.Flags().String("uploads", "", "uploads directory copied into <repo>/uploads")

	rootCmd.AddCommand(syncCmd, dumpCmd, dumpFileCmd, getCmd, loadCmd, loadFileCmd)
}
