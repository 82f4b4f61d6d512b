package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"cheaphours/internal/app"
)

var (
	showCheapest int
	showPickFrom string
	showPickTo   string
	showAll      bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display future prices with the cheapest hours marked",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showCheapest < 0 {
			return fmt.Errorf("--cheapest cannot be negative")
		}
		if (showPickFrom == "") != (showPickTo == "") {
			return fmt.Errorf("--pick-from and --pick-to must be given together")
		}

		opts := app.ShowOptions{Cheapest: showCheapest, All: showAll}
		if !cmd.Flags().Changed("cheapest") {
			opts.Cheapest = getApp().Config.Cheapest.Hours
		}

		var err error
		if opts.PickFrom, err = parseTimeFlag("pick-from", showPickFrom); err != nil {
			return err
		}
		if opts.PickTo, err = parseTimeFlag("pick-to", showPickTo); err != nil {
			return err
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showCheapest, "cheapest", 0, "Number of cheapest hours to mark (defaults to config)")
	showCmd.Flags().StringVar(&showPickFrom, "pick-from", "", "Start of a manual pick to mark")
	showCmd.Flags().StringVar(&showPickTo, "pick-to", "", "End of a manual pick to mark (exclusive)")
	showCmd.Flags().BoolVar(&showAll, "all", false, "Include past records")
}
