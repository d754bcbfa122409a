// Command sweeper reclaims disk space: it scans for cleanup candidates,
// quarantines what you remove and keeps it restorable until retention
// lapses.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dverbeek/sweeper/internal/config"
	"github.com/dverbeek/sweeper/internal/core"
	"github.com/dverbeek/sweeper/internal/logging"
	"github.com/dverbeek/sweeper/internal/platform"
	"github.com/dverbeek/sweeper/internal/reporter"
)

var (
	version = "dev"

	flagConfig  string
	flagFormat  string
	flagVerbose bool

	cfg    *config.Config
	app    *core.App
	report *reporter.Reporter
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "sweeper",
		Short:   "Reclaim disk space safely",
		Long:    "sweeper finds caches, logs, duplicates and other reclaimable files,\nand removes them through a restorable quarantine.",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path := flagConfig
			if path == "" {
				var err error
				path, err = config.GetConfigPath()
				if err != nil {
					return err
				}
			}
			var err error
			cfg, err = config.Load(path)
			if err != nil {
				return err
			}
			if flagVerbose {
				cfg.Verbose = true
			}

			level := cfg.Logging.Level
			if cfg.Verbose {
				level = zerolog.DebugLevel.String()
			}
			logging.Init(logging.Options{
				Level:      level,
				FilePath:   cfg.Logging.File,
				MaxSizeMB:  cfg.Logging.MaxSizeMB,
				MaxBackups: cfg.Logging.MaxBackups,
				MaxAgeDays: cfg.Logging.MaxAgeDays,
			})

			format, err := reporter.ParseFormat(flagFormat)
			if err != nil {
				return err
			}
			report = reporter.New(cmd.OutOrStdout(), format)

			info, err := platform.GetInfo()
			if err != nil {
				return err
			}
			app, err = core.New(cfg, info)
			return err
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if app != nil {
				return app.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ~/.config/sweeper/config.yaml)")
	root.PersistentFlags().StringVarP(&flagFormat, "format", "f", "summary", "output format (table, json, yaml, summary)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(
		newScanCmd(),
		newCleanCmd(),
		newTrashCmd(),
		newPackagesCmd(),
		newAnalyticsCmd(),
		newStatusCmd(),
		newDaemonCmd(),
	)
	return root
}
