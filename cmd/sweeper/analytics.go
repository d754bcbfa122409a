package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dverbeek/sweeper/pkg/utils"
)

func newAnalyticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Show cache growth trends and suggested limits",
		Long:  "Reports per-source cache growth over the last seven days, the daily\ntrend and a recommended size cap for each source. Requires the daemon\nto have been recording cache events.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := app.GetCacheAnalytics(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if flagFormat == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			if len(result.Sources) == 0 {
				fmt.Fprintln(out, "No cache activity recorded yet. Run 'sweeper daemon' to start monitoring.")
				return nil
			}

			fmt.Fprintf(out, "%-20s %-14s %-16s %s\n", "SOURCE", "NET GROWTH", "PER DAY", "SUGGESTED CAP")
			for _, s := range result.Sources {
				fmt.Fprintf(out, "%-20s %-14s %-16s %s\n",
					s.Source,
					utils.FormatBytes(s.NetGrowth),
					utils.FormatBytes(int64(s.DailyGrowthRate)),
					utils.FormatBytes(s.RecommendedLimit))
			}

			fmt.Fprintln(out, "\n7-day trend:")
			for _, p := range result.Trend {
				fmt.Fprintf(out, "  %s  %s\n", p.Day.Format("Mon 02 Jan"), utils.FormatBytes(p.NetGrowth))
			}

			if result.Disk != nil {
				fmt.Fprintf(out, "\nDisk: %.1f%% used, %s free\n",
					result.Disk.UsedPercent, utils.FormatBytes(int64(result.Disk.Free)))
			}
			return nil
		},
	}
}
