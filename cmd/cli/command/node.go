package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"mycelhub/cmd/cli/command/client"
	relay "mycelhub/internal/microservices/websocket"
)

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "List the peers the relay knows about",
	RunE: func(cmd *cobra.Command, args []string) error {
		if rest, _ := cmd.Flags().GetBool("rest"); !rest {
			return request(relay.GetPeers{}, relay.TypePeersList)
		}

		resp, err := client.NewHTTPClient(serverURL).GetPeers()
		if err != nil {
			return fmt.Errorf("failed to get peers: %w", err)
		}
		if resp.Count == 0 {
			fmt.Println("No peers connected.")
			return nil
		}
		fmt.Printf("Found %d peer(s):\n\n", resp.Count)
		for _, p := range resp.Peers {
			fmt.Printf("ID: %s\n", p.ID)
			if p.Name != nil {
				fmt.Printf("Name: %s\n", *p.Name)
			}
			fmt.Printf("Reputation: %.2f\n", p.Reputation)
			if len(p.Addresses) > 0 {
				fmt.Printf("Addresses: %s\n", strings.Join(p.Addresses, ", "))
			}
			fmt.Println(strings.Repeat("-", 50))
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show relay statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		if rest, _ := cmd.Flags().GetBool("rest"); !rest {
			return request(relay.GetStats{}, relay.TypeStats)
		}

		stats, err := client.NewHTTPClient(serverURL).GetStats()
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}
		fmt.Printf("Node: %s (%s)\n", stats.NodeName, stats.PeerID)
		fmt.Printf("Peers: %d\n", stats.PeerCount)
		fmt.Printf("Messages: %d\n", stats.MessageCount)
		fmt.Printf("Uptime: %s\n", time.Duration(stats.UptimeSeconds)*time.Second)
		fmt.Printf("Dashboard sessions: %d\n", stats.Sessions)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the relay is up and its peer store reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client.NewHTTPClient(serverURL).Health(); err != nil {
			color.Red("unhealthy: %v", err)
			return err
		}
		color.Green("ok")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(peersCmd, statsCmd, healthCmd)
	peersCmd.Flags().Bool("rest", false, "use the REST endpoint instead of the websocket")
	statsCmd.Flags().Bool("rest", false, "use the REST endpoint instead of the websocket")
}
