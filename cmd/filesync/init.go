package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/clarive/filesync/internal/config"
	"github.com/clarive/filesync/internal/ui"
	"github.com/clarive/filesync/internal/vcs"
)

const configTemplate = `# filesync configuration. Flags and FILESYNC_* variables override these.
#database: .filesync/content.db
#uploads: /path/to/uploads
front_matter: %s
#grep: /post/
jobs: 1
log:
  #file: .filesync/filesync.log
  max_size: 20
  max_backups: 2
  max_age: 10
watch:
  debounce: 300ms
`

var initCmd = &cobra.Command{
	Use:     "init <repo>",
	GroupID: "setup",
	Short:   "Create the state directory, config file and database",
	Long: `Prepare a repository for filesync:

  1. Create <repo>/.filesync with a commented config.yaml
  2. Create the database and its schema
  3. Keep .filesync out of git when the repository uses git`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		repo := absPath(args[0])
		stateDir := config.StateDir(repo)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			fatalf("Error creating %s: %v", stateDir, err)
		}

		format, _ := cmd.Flags().GetString("front-matter")
		configPath := filepath.Join(stateDir, "config.yaml")
		created, err := writeIfMissing(configPath, fmt.Sprintf(configTemplate, format))
		if err != nil {
			fatalf("Error writing config: %v", err)
		}

		s := openSession(cmd, repo)
		defer s.Close()

		fmt.Printf("%s Initialized %s\n", ui.RenderPass("✓"), repo)
		if created {
			fmt.Printf("   Config: %s\n", configPath)
		} else {
			fmt.Printf("   Config: %s %s\n", configPath, ui.RenderMuted("(kept)"))
		}
		fmt.Printf("   Database: %s\n", s.cfg.Database)

		res, err := vcs.Detect(repo)
		if err != nil {
			if errors.Is(err, vcs.ErrNotInVCS) {
				fmt.Printf("\n%s %s is not under version control\n", ui.RenderWarn("⚠"), repo)
			}
			return
		}
		if res.Type == vcs.TypeJJ {
			return
		}
		added, err := ignoreStateDir(repo)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to update .gitignore: %v\n", err)
			return
		}
		if added {
			fmt.Printf("   Added %s/ to %s\n", filepath.Base(stateDir), filepath.Join(repo, ".gitignore"))
		}
	},
}

// writeIfMissing creates path with content unless it already exists.
func writeIfMissing(path, content string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	if err := atomic.WriteFile(path, strings.NewReader(content)); err != nil {
		return false, err
	}
	return true, os.Chmod(path, 0644)
}

// ignoreStateDir appends the state directory to the repository's
// .gitignore unless it is already listed.
func ignoreStateDir(repo string) (bool, error) {
	path := filepath.Join(repo, ".gitignore")
	entry := filepath.Base(config.StateDir(repo)) + "/"

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == entry || line == strings.TrimSuffix(entry, "/") || line == "/"+entry {
			return false, nil
		}
	}

	content := string(data)
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += entry + "\n"
	if err := atomic.WriteFile(path, strings.NewReader(content)); err != nil {
		return false, err
	}
	return true, os.Chmod(path, 0644)
}

func init() {
	rootCmd.AddCommand(initCmd)
}
