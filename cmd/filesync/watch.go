package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clarive/filesync/internal/content/daemon"
	"github.com/clarive/filesync/internal/content/dashboard"
	"github.com/clarive/filesync/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch <repo>",
	GroupID: "sync",
	Short:   "Load record files into the database as they change (foreground)",
	Long: `Load the repository, then watch its type directories and load every
record file that changes. Files the watcher rewrites itself are not loaded
again. Deleting a file never deletes its record.

Press Ctrl+C to stop.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(cmd, args[0])
		defer s.Close()

		config := &daemon.Config{
			DebounceInterval: s.cfg.Watch.Debounce,
			Options:          s.opts,
			Logger:           s.logging.Logger("watch"),
		}

		if addr := s.cfg.Watch.Dashboard; addr != "" {
			server := dashboard.NewServer(&dashboard.Config{
				Addr:   addr,
				Logger: s.logging.Logger("dashboard"),
			})
			config.Listener = dashboard.NewHandler(server, s.logging.Logger("dashboard"))
			if err := server.Start(); err != nil {
				s.fatalf("Error starting dashboard: %v", err)
			}
			s.onClose(func() { server.Stop() })
			fmt.Printf("%s Dashboard at http://%s/\n", ui.RenderAccent("📡"), server.Addr())
		}

		d, err := daemon.New(s.syncer, s.cfg.Repo, config)
		if err != nil {
			s.fatalf("Error creating daemon: %v", err)
		}

		fmt.Printf("%s Watching %s\n", ui.RenderAccent("👀"), s.cfg.Repo)
		fmt.Printf("   Database: %s\n", s.cfg.Database)
		fmt.Printf("   Debounce: %v\n", s.cfg.Watch.Debounce)
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		if err := d.Start(cmd.Context()); err != nil {
			s.fatalf("Daemon stopped with error: %v", err)
		}
	},
}

func init() {
	addCleanupFlag(watchCmd)
	addLoadFlags(watchCmd)
	watchCmd.Flags().Duration("debounce", 0, "quiet time before a changed file is loaded (default 300ms)")
	watchCmd.Flags().String("dashboard", "", "serve a WebSocket feed of loads on this address, e.g. 127.0.0.1:8080")
	rootCmd.AddCommand(watchCmd)
}
