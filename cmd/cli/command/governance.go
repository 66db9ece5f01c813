package command

import (
	"fmt"

	"github.com/spf13/cobra"

	relay "mycelhub/internal/microservices/websocket"
)

var proposeCmd = &cobra.Command{
	Use:   "propose <title>",
	Short: "Create a governance proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		kind, _ := cmd.Flags().GetString("kind")
		return request(relay.CreateProposal{
			Title:        args[0],
			Description:  description,
			ProposalType: kind,
		}, relay.TypeProposal)
	},
}

var voteCmd = &cobra.Command{
	Use:   "vote <proposal-id> <yes|no|abstain>",
	Short: "Cast a vote on a proposal",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[1] {
		case "yes", "no", "abstain":
		default:
			return fmt.Errorf("vote must be yes, no or abstain, got %q", args[1])
		}
		return request(relay.CastVote{
			ProposalID: args[0],
			Vote:       args[1],
		}, relay.TypeVoteCast)
	},
}

func init() {
	rootCmd.AddCommand(proposeCmd, voteCmd)
	proposeCmd.Flags().StringP("description", "d", "", "proposal description")
	proposeCmd.Flags().StringP("kind", "k", "text", "proposal type")
}
