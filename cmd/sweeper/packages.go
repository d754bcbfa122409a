package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dverbeek/sweeper/pkg/utils"
)

func newPackagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "packages",
		Short: "Find and remove orphaned packages",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List packages nothing depends on",
			RunE: func(cmd *cobra.Command, _ []string) error {
				orphans, err := app.FindOrphanedPackages(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(orphans.Orphans) == 0 {
					fmt.Fprintln(out, "No orphaned packages found.")
					return nil
				}
				for _, pkg := range orphans.Orphans {
					fmt.Fprintf(out, "%-30s %-12s %s\n", pkg.Name, utils.FormatBytes(pkg.InstalledSize), pkg.Description)
				}
				fmt.Fprintf(out, "Total: %d packages, %s\n", len(orphans.Orphans), utils.FormatBytes(orphans.TotalSize))
				return nil
			},
		},
		&cobra.Command{
			Use:   "clean [NAME...]",
			Short: "Remove orphaned packages and prune the apt cache",
			Long:  "Removes the named packages after re-checking that nothing depends on\nthem. With no names, removes every orphan found.",
			Args:  cobra.ArbitraryArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				result, err := app.CleanPackages(cmd.Context(), args)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, name := range result.Removed {
					fmt.Fprintf(out, "removed %s\n", name)
				}
				for _, f := range result.Failed {
					fmt.Fprintf(out, "failed  %s (%s)\n", f.Path, f.Reason)
				}
				if len(result.Removed) == 0 && len(result.Failed) == 0 {
					fmt.Fprintln(out, "No orphaned packages to remove.")
				}
				return nil
			},
		},
	)
	return cmd
}
