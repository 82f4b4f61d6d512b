package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"cheaphours/internal/app"
)

var (
	cheapestHours   int
	cheapestOrder   string
	cheapestTargets []string
)

var cheapestCmd = &cobra.Command{
	Use:   "cheapest",
	Short: "List the cheapest future hours, optionally sending them to targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cheapestHours < 0 {
			return fmt.Errorf("--hours cannot be negative")
		}
		return getApp().Cheapest(cmd.Context(), app.CheapestOptions{
			Hours:   cheapestHours,
			Order:   cheapestOrder,
			Targets: cheapestTargets,
		})
	},
}

func init() {
	cheapestCmd.Flags().IntVar(&cheapestHours, "hours", 0, "Number of hours to select (defaults to config)")
	cheapestCmd.Flags().StringVar(&cheapestOrder, "order", "", "Selection order: time or price (defaults to config)")
	cheapestCmd.Flags().StringSliceVar(&cheapestTargets, "send", nil, "Targets to send the selection to (shelly, shelly-mqtt, telegram, calendar)")
}
