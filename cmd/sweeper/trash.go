package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dverbeek/sweeper/internal/core"
	"github.com/dverbeek/sweeper/pkg/utils"
)

func newTrashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trash",
		Short: "Inspect and manage quarantined items",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List quarantined items",
			RunE: func(cmd *cobra.Command, _ []string) error {
				recs, err := app.ListTrash(cmd.Context())
				if err != nil {
					return err
				}
				return report.TrashListing(recs)
			},
		},
		&cobra.Command{
			Use:   "restore ID",
			Short: "Put a quarantined item back at its original path",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				rec, err := app.RestoreFromTrash(cmd.Context(), args[0])
				if err != nil {
					return errors.New(core.RestoreTrashError(err))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %s\n", rec.OriginalPath)
				return nil
			},
		},
		&cobra.Command{
			Use:     "rm ID",
			Aliases: []string{"purge"},
			Short:   "Permanently remove one quarantined item",
			Args:    cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := app.DeleteFromTrash(cmd.Context(), args[0]); err != nil {
					return errors.New(core.RestoreTrashError(err))
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Purged.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "empty",
			Short: "Permanently remove everything in quarantine",
			RunE: func(cmd *cobra.Command, _ []string) error {
				purged, freed, err := app.EmptyTrash(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %d items, %s freed\n", purged, utils.FormatBytes(freed))
				return nil
			},
		},
		&cobra.Command{
			Use:   "sweep",
			Short: "Purge items whose retention lapsed",
			RunE: func(cmd *cobra.Command, _ []string) error {
				purged, freed, err := app.SweepExpiredTrash(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %d expired items, %s freed\n", purged, utils.FormatBytes(freed))
				return nil
			},
		},
	)
	return cmd
}
