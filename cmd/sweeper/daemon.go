package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dverbeek/sweeper/internal/monitor"
)

func newDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the background monitor",
		Long:  "Watches configured cache directories, records their growth for\n'sweeper analytics', sweeps expired trash and snapshots disk usage on a\nschedule. Runs until interrupted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			watchPaths := cfg.Monitor.WatchPaths
			if len(watchPaths) == 0 {
				watchPaths = app.Platform().CacheDirs
			}

			var watcher *monitor.Watcher
			if cfg.Monitor.Enabled || len(cfg.Monitor.WatchPaths) > 0 {
				var err error
				watcher, err = monitor.NewWatcher(app.Store(), watchPaths)
				if err != nil {
					return err
				}
				defer watcher.Close()
			}

			sched, err := monitor.NewScheduler(monitor.SchedulerOptions{
				Store:         app.Store(),
				Engine:        app.Trash(),
				Watcher:       watcher,
				Mount:         app.Platform().HomeDir,
				SweepEvery:    time.Duration(cfg.Trash.SweepHours) * time.Hour,
				SnapshotEvery: time.Duration(cfg.Monitor.SnapshotHours) * time.Hour,
			})
			if err != nil {
				return err
			}
			sched.Start()
			defer func() {
				if err := sched.Stop(); err != nil {
					log.Warn().Err(err).Msg("scheduler shutdown")
				}
			}()

			fmt.Fprintln(cmd.OutOrStdout(), "sweeper daemon running; press Ctrl-C to stop")
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			select {
			case <-sig:
			case <-cmd.Context().Done():
			}
			log.Info().Msg("daemon stopping")
			return nil
		},
	}
}
