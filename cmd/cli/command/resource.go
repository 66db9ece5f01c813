package command

import (
	"github.com/spf13/cobra"

	relay "mycelhub/internal/microservices/websocket"
)

var resourceCmd = &cobra.Command{
	Use:   "resource <bandwidth|storage|compute|other-name>",
	Short: "Report a resource contribution",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, _ := cmd.Flags().GetFloat64("amount")
		unit, _ := cmd.Flags().GetString("unit")
		return request(relay.ReportResource{
			ResourceType: args[0],
			Amount:       amount,
			Unit:         unit,
		}, relay.TypeResourceContribution)
	},
}

func init() {
	rootCmd.AddCommand(resourceCmd)
	resourceCmd.Flags().Float64P("amount", "a", 0, "amount contributed (required)")
	resourceCmd.Flags().StringP("unit", "u", "", "unit of the amount, e.g. GB or Mbps (required)")
	resourceCmd.MarkFlagRequired("amount")
	resourceCmd.MarkFlagRequired("unit")
}
