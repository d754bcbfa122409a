package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dverbeek/sweeper/internal/core"
	"github.com/dverbeek/sweeper/pkg/utils"
)

func newCleanCmd() *cobra.Command {
	var (
		noTrash       bool
		retentionDays int
	)

	cmd := &cobra.Command{
		Use:   "clean PATH...",
		Short: "Remove the given paths",
		Long:  "Removes each path through the quarantine, so it can be restored with\n'sweeper trash restore' until its retention lapses. With --no-trash the\npaths are deleted permanently.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := make([]core.CleanTarget, 0, len(args))
			for _, path := range args {
				targets = append(targets, core.CleanTarget{Path: path})
			}
			opts := core.CleanOptions{
				UseTrash:  !noTrash,
				Retention: time.Duration(retentionDays) * 24 * time.Hour,
			}
			result, err := app.CleanItems(cmd.Context(), targets, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cleaned %d of %d items, %s freed\n",
				result.Cleaned, len(targets), utils.FormatBytes(result.TotalSize))
			for _, f := range result.Failures {
				fmt.Fprintf(out, "  failed: %s (%s)\n", f.Path, f.Reason)
			}
			if !noTrash && result.Cleaned > 0 {
				fmt.Fprintln(out, "Restore with 'sweeper trash list' and 'sweeper trash restore <id>'.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noTrash, "no-trash", false, "delete permanently instead of quarantining")
	cmd.Flags().IntVar(&retentionDays, "retention", 0, "override quarantine retention in days")
	return cmd
}
