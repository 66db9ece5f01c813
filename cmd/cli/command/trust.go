package command

import (
	"github.com/spf13/cobra"

	relay "mycelhub/internal/microservices/websocket"
)

var vouchCmd = &cobra.Command{
	Use:   "vouch <peer-id>",
	Short: "Stake reputation on another peer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		weight, _ := cmd.Flags().GetFloat64("weight")
		message, _ := cmd.Flags().GetString("message")
		return request(relay.SendVouch{
			Vouchee: args[0],
			Weight:  weight,
			Message: optional(message),
		}, relay.TypeVouchRequest)
	},
}

var respondVouchCmd = &cobra.Command{
	Use:   "respond-vouch <request-id>",
	Short: "Accept or reject a vouch request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reject, _ := cmd.Flags().GetBool("reject")
		return request(relay.RespondVouch{
			RequestID: args[0],
			Accept:    !reject,
		}, relay.TypeVouchAck)
	},
}

var creditLineCmd = &cobra.Command{
	Use:   "credit-line <debtor-peer-id>",
	Short: "Open a credit line to another peer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetFloat64("limit")
		return request(relay.CreateCreditLine{
			Debtor: args[0],
			Limit:  limit,
		}, relay.TypeCreditLine)
	},
}

var transferCmd = &cobra.Command{
	Use:   "transfer <peer-id>",
	Short: "Transfer credit to another peer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, _ := cmd.Flags().GetFloat64("amount")
		memo, _ := cmd.Flags().GetString("memo")
		return request(relay.TransferCredit{
			To:     args[0],
			Amount: amount,
			Memo:   optional(memo),
		}, relay.TypeCreditTransfer)
	},
}

func init() {
	rootCmd.AddCommand(vouchCmd, respondVouchCmd, creditLineCmd, transferCmd)

	vouchCmd.Flags().Float64P("weight", "w", 0.1, "reputation stake")
	vouchCmd.Flags().StringP("message", "m", "", "optional note for the vouchee")

	respondVouchCmd.Flags().Bool("reject", false, "reject instead of accepting")

	creditLineCmd.Flags().Float64P("limit", "l", 0, "credit limit (required)")
	creditLineCmd.MarkFlagRequired("limit")

	transferCmd.Flags().Float64P("amount", "a", 0, "amount to transfer (required)")
	transferCmd.Flags().StringP("memo", "m", "", "optional memo")
	transferCmd.MarkFlagRequired("amount")
}
