package main

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	contentsync "github.com/clarive/filesync/internal/content/sync"
	"github.com/clarive/filesync/internal/ui"
	"github.com/clarive/filesync/internal/vcs"
)

var statusCmd = &cobra.Command{
	Use:     "status <repo>",
	GroupID: "setup",
	Short:   "Show database and repository status",
	Long: `Display the state of a repository:

  - Config file and database location and size
  - Records per type
  - Record files on disk and records without a file
  - The version control system the repository lives in`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(cmd, args[0])
		defer s.Close()
		ctx := cmd.Context()

		info, err := os.Stat(s.cfg.Database)
		if err != nil {
			s.fatalf("Error checking database: %v", err)
		}
		total, err := s.db.GetRecordCount(ctx)
		if err != nil {
			s.fatalf("Error counting records: %v", err)
		}
		byType, err := s.db.CountByType(ctx)
		if err != nil {
			s.fatalf("Error counting records: %v", err)
		}

		files := 0
		for _, err := range contentsync.Walk(s.cfg.Repo) {
			if err == nil {
				files++
			}
		}
		orphans, err := s.syncer.DeleteOld(ctx, s.cfg.Repo)
		if err != nil {
			s.fatalf("Error checking files: %v", err)
		}

		configFile := s.cfg.File
		if configFile == "" {
			configFile = ui.RenderMuted("(none)")
		}
		vcsName := ui.RenderMuted("(none)")
		if res, err := vcs.Detect(s.cfg.Repo); err == nil {
			vcsName = fmt.Sprintf("%s at %s", res.Type, res.RepoRoot)
		} else if !errors.Is(err, vcs.ErrNotInVCS) {
			vcsName = ui.RenderWarn(err.Error())
		}

		fmt.Printf("\n%s Filesync Status\n\n", ui.RenderAccent("📊"))
		fmt.Print(ui.RenderFields([]ui.Field{
			{Label: "Repository", Value: s.cfg.Repo},
			{Label: "Config", Value: configFile},
			{Label: "Database", Value: s.cfg.Database},
			{Label: "Size", Value: ui.FormatSize(info.Size())},
			{Label: "Records", Value: strconv.Itoa(total)},
			{Label: "Files", Value: strconv.Itoa(files)},
			{Label: "Without file", Value: strconv.Itoa(len(orphans))},
			{Label: "VCS", Value: vcsName},
		}))

		if len(byType) > 0 {
			fmt.Printf("\n%s\n", ui.RenderBold("Records by type"))
			types := make([]string, 0, len(byType))
			for typ := range byType {
				types = append(types, typ)
			}
			slices.Sort(types)
			fields := make([]ui.Field, len(types))
			for i, typ := range types {
				fields[i] = ui.Field{Label: typ, Value: strconv.Itoa(byType[typ])}
			}
			fmt.Print(ui.RenderFields(fields))
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
