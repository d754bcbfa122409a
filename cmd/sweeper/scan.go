package main

import (
	"github.com/spf13/cobra"
)

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Find cleanup candidates",
		Long:  "Runs the passes enabled in the config (caches, logs, package caches,\nfilesystem health, storage recovery) and reports what could be\nreclaimed. Nothing is deleted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := app.Scan(cmd.Context())
			if result == nil {
				return err
			}
			return report.ScanReport(result)
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "health",
			Short: "Find empty directories, broken symlinks and orphaned temp files",
			RunE: func(cmd *cobra.Command, _ []string) error {
				result, err := app.ScanFilesystemHealth(cmd.Context())
				if result == nil {
					return err
				}
				return report.ScanReport(result)
			},
		},
		&cobra.Command{
			Use:   "recovery",
			Short: "Find duplicates, large files and stale downloads",
			RunE: func(cmd *cobra.Command, _ []string) error {
				result, err := app.ScanStorageRecovery(cmd.Context())
				if result == nil {
					return err
				}
				if err := report.ScanReport(result.Report); err != nil {
					return err
				}
				if len(result.Groups) > 0 {
					return report.DuplicateGroups(result.Groups)
				}
				return nil
			},
		},
	)
	return cmd
}
