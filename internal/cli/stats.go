package cli

import (
	"github.com/spf13/cobra"

	"cheaphours/internal/app"
)

var (
	statsFrom string
	statsTo   string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise prices and consumption cost for a window",
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			opts app.StatsOptions
			err  error
		)
		if opts.From, err = parseTimeFlag("from", statsFrom); err != nil {
			return err
		}
		if opts.To, err = parseTimeFlag("to", statsTo); err != nil {
			return err
		}
		return getApp().Stats(cmd.Context(), opts)
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsFrom, "from", "", "Window start (defaults to seven days before --to)")
	statsCmd.Flags().StringVar(&statsTo, "to", "", "Window end (defaults to now)")
}
