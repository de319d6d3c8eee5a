package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kjstillabower/weather-collector-service/internal/models"
	"github.com/kjstillabower/weather-collector-service/internal/validation"
)

var collectCmd = &cobra.Command{
	Use:   "collect <city>",
	Short: "Collect and classify current weather for a city",
	Long:  `Fetch current conditions for the given coordinates, classify rain risk and store the record.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runCollect,
}

var collectDefaultCmd = &cobra.Command{
	Use:   "collect-default",
	Short: "Collect current weather for the configured default location",
	Long:  `Fetch and store current conditions for the default location without classification.`,
	Args:  cobra.NoArgs,
	RunE:  runCollectDefault,
}

var (
	collectLat float64
	collectLon float64
)

func init() {
	collectCmd.Flags().Float64Var(&collectLat, "lat", 0, "latitude (-90..90)")
	collectCmd.Flags().Float64Var(&collectLon, "lon", 0, "longitude (-180..180)")
	_ = collectCmd.MarkFlagRequired("lat")
	_ = collectCmd.MarkFlagRequired("lon")

	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(collectDefaultCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	city, err := validation.ValidateCity(args[0], 1, 100)
	if err != nil {
		return err
	}
	if err := validation.ValidateCoordinates(collectLat, collectLon); err != nil {
		return err
	}
	return withDeps(cmd, func(d *deps) error {
		rec, err := d.collector.CollectForCity(cmd.Context(), city, collectLat, collectLon)
		if err != nil {
			return err
		}
		return printRecord(cmd.OutOrStdout(), rec)
	})
}

func runCollectDefault(cmd *cobra.Command, args []string) error {
	return withDeps(cmd, func(d *deps) error {
		rec, err := d.collector.CollectDefault(cmd.Context())
		if err != nil {
			return err
		}
		return printRecord(cmd.OutOrStdout(), rec)
	})
}

func printRecord(w io.Writer, rec models.StoredObservation) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return nil
}
