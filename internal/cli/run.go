package cli

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Refresh prices on a schedule and push the cheapest hours to targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context())
	},
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Fetch every enabled source once and save the record file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Update(cmd.Context())
	},
}
