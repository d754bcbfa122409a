package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dverbeek/sweeper/pkg/utils"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show disk and host status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := app.GetSystemStats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if flagFormat == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			fmt.Fprintf(out, "Host: %s (up %s)\n", stats.Hostname, (time.Duration(stats.UptimeSeconds) * time.Second).Round(time.Minute))
			fmt.Fprintf(out, "Disk: %s used of %s (%.1f%%), %s free\n",
				utils.FormatBytes(int64(stats.DiskUsed)),
				utils.FormatBytes(int64(stats.DiskTotal)),
				stats.DiskPercent,
				utils.FormatBytes(int64(stats.DiskFree)))
			fmt.Fprintf(out, "Memory: %s used of %s (%.1f%%)\n",
				utils.FormatBytes(int64(stats.MemUsed)),
				utils.FormatBytes(int64(stats.MemTotal)),
				stats.MemPercent)
			return nil
		},
	}
}
