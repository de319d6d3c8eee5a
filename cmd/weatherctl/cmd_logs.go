package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kjstillabower/weather-collector-service/internal/service"
	"github.com/kjstillabower/weather-collector-service/internal/validation"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "List stored observations, newest first",
	Long:  `Display the most recently stored observations.`,
	Args:  cobra.NoArgs,
	RunE:  runLogs,
}

var logsLimit int

func init() {
	logsCmd.Flags().IntVarP(&logsLimit, "limit", "n", 20, "number of records to show (max "+strconv.Itoa(service.RecentLogsLimit)+")")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	limit, err := validation.ValidateLimit(logsLimit, 20, service.RecentLogsLimit)
	if err != nil {
		return err
	}
	return withDeps(cmd, func(d *deps) error {
		recs, err := d.store.FindRecent(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No observations stored.")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "CREATED\tCITY\tTEMP\tHUMIDITY\tRAIN%\tDESCRIPTION")
		for _, r := range recs {
			fmt.Fprintf(tw, "%s\t%s\t%.1f\t%s\t%s\t%s\n",
				r.CreatedAt.Format(time.RFC3339), r.City, r.Temperature,
				optFloat(r.Humidity), optInt(r.RainProbability), r.Description)
		}
		return tw.Flush()
	})
}

func optFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 0, 64)
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}
