package command

// root.go defines the root command for the mycelcli application
// and the global flags shared by every subcommand.

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mycelhub/cmd/cli/command/client"
	relay "mycelhub/internal/microservices/websocket"
)

var (
	serverURL string        // relay base URL, used for both /ws and the REST endpoints
	waitFor   time.Duration // how long to wait for the relay's echo
)

var rootCmd = &cobra.Command{
	Use:   "mycelcli",
	Short: "mycelcli - dashboard client for a mycelial relay",
	Long: `mycelcli talks to a relay node the same way a dashboard does: over its
websocket endpoint. It can:
- Stream everything the relay broadcasts (watch)
- Chat, vouch, open credit lines and transfer credit
- Create proposals and vote on them
- Report contributed resources
- Inspect the relay's peers and stats

Use "mycelcli command --help" to see the flags of each command.`,
	SilenceUsage: true,
}

// Execute is called by main.main(). It only needs to happen once.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "relay URL")
	rootCmd.PersistentFlags().DurationVar(&waitFor, "wait", 3*time.Second, "how long to wait for the relay's echo")
}

// request opens a session, sends one command and prints the event it produces.
func request(cmd relay.ClientCommand, want relay.EventType) error {
	ws, err := client.Dial(serverURL)
	if err != nil {
		return err
	}
	defer ws.Close()

	ev, err := ws.Request(cmd, want, waitFor)
	if err != nil {
		return err
	}
	client.PrintEvent(ev)
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
