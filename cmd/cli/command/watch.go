package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"mycelhub/cmd/cli/command/client"
	relay "mycelhub/internal/microservices/websocket"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream relay events until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		topics, _ := cmd.Flags().GetStringSlice("topic")
		noColor, _ := cmd.Flags().GetBool("no-color")
		if noColor {
			color.NoColor = true
		}

		ws, err := client.Dial(serverURL)
		if err != nil {
			return err
		}
		defer ws.Close()

		for _, t := range topics {
			if err := ws.Send(relay.SubscribeTopic{Topic: t}); err != nil {
				return fmt.Errorf("subscribe %s: %w", t, err)
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		color.Green("Connected to %s, press Ctrl+C to quit", serverURL)
		return ws.Watch(ctx, client.PrintEvent)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringSliceP("topic", "t", nil, "extra gossip topics for the relay to subscribe to")
	watchCmd.Flags().Bool("no-color", false, "disable coloured output")
}
