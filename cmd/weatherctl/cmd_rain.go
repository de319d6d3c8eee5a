package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kjstillabower/weather-collector-service/internal/classifier"
)

var rainCmd = &cobra.Command{
	Use:   "rain",
	Short: "Classify a weather condition without contacting the provider",
	Long:  `Print the rain probability, description and intensity for a condition code and/or description.`,
	Args:  cobra.NoArgs,
	RunE:  runRain,
}

var (
	rainCode        string
	rainDescription string
)

func init() {
	rainCmd.Flags().StringVar(&rainCode, "code", "", "provider condition code")
	rainCmd.Flags().StringVar(&rainDescription, "description", "", "condition description")
	rootCmd.AddCommand(rainCmd)
}

func runRain(cmd *cobra.Command, args []string) error {
	var code *int
	if rainCode != "" {
		n, err := strconv.Atoi(rainCode)
		if err != nil {
			return fmt.Errorf("code must be an integer: %q", rainCode)
		}
		code = &n
	}
	info := classifier.Classify(code, rainDescription)
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d%% %s (%s)\n",
		classifier.RainEmoji(info.Probability), info.Probability, info.Description,
		classifier.IntensityLabel(info.Intensity))
	return nil
}
