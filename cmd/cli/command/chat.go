package command

import (
	"strings"

	"github.com/spf13/cobra"

	relay "mycelhub/internal/microservices/websocket"
)

var chatCmd = &cobra.Command{
	Use:   "chat <message...>",
	Short: "Send a chat message, broadcast or direct",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		to, _ := cmd.Flags().GetString("to")
		return request(relay.SendChat{
			Content: strings.Join(args, " "),
			To:      optional(to),
		}, relay.TypeChatMessage)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("to", "", "peer id for a direct message")
}
