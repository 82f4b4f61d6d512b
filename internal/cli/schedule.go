package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"cheaphours/internal/app"
)

var (
	scheduleFrom    string
	scheduleTo      string
	scheduleTargets []string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Send a manually chosen time range to targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		if scheduleFrom == "" || scheduleTo == "" {
			return fmt.Errorf("--from and --to must be provided")
		}

		from, err := parseTimeFlag("from", scheduleFrom)
		if err != nil {
			return err
		}
		to, err := parseTimeFlag("to", scheduleTo)
		if err != nil {
			return err
		}
		if !from.Before(*to) {
			return fmt.Errorf("--from must be before --to")
		}

		return getApp().Schedule(cmd.Context(), app.ScheduleOptions{
			From:    *from,
			To:      *to,
			Targets: scheduleTargets,
		})
	},
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleFrom, "from", "", "Range start")
	scheduleCmd.Flags().StringVar(&scheduleTo, "to", "", "Range end (exclusive)")
	scheduleCmd.Flags().StringSliceVar(&scheduleTargets, "target", nil, "Targets to send to")
}
