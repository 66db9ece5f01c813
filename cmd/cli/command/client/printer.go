package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	relay "mycelhub/internal/microservices/websocket"
)

// FormatEvent renders one event as a single line without colour.
func FormatEvent(ev relay.ServerEvent) string {
	switch e := ev.(type) {
	case relay.PeerJoined:
		name := ""
		if e.Name != nil {
			name = " (" + *e.Name + ")"
		}
		return fmt.Sprintf("+ peer %s%s joined", e.PeerID, name)
	case relay.PeerLeft:
		return fmt.Sprintf("- peer %s left", e.PeerID)
	case relay.ChatMessage:
		if e.To != nil {
			return fmt.Sprintf("%s [%s -> %s] %s", clock(e.Timestamp), e.FromName, *e.To, e.Content)
		}
		return fmt.Sprintf("%s [%s] %s", clock(e.Timestamp), e.FromName, e.Content)
	case relay.ReputationUpdate:
		return fmt.Sprintf("reputation %s = %.2f", e.PeerID, e.NewScore)
	case relay.PeersList:
		lines := []string{fmt.Sprintf("%d peer(s)", len(e.Peers))}
		for _, p := range e.Peers {
			name := "-"
			if p.Name != nil {
				name = *p.Name
			}
			lines = append(lines, fmt.Sprintf("  %s  %-16s rep=%.2f  %s", p.ID, name, p.Reputation, strings.Join(p.Addresses, ",")))
		}
		return strings.Join(lines, "\n")
	case relay.Stats:
		return fmt.Sprintf("peers=%d messages=%d uptime=%s", e.PeerCount, e.MessageCount, time.Duration(e.UptimeSeconds)*time.Second)
	case relay.ErrorNotice:
		return "error: " + e.Message
	case relay.VouchRequest:
		return fmt.Sprintf("vouch %s %s -> %s weight=%.2f", e.ID, e.Voucher, e.Vouchee, e.Weight)
	case relay.VouchAck:
		verdict := "rejected"
		if e.Accepted {
			verdict = "accepted"
		}
		return fmt.Sprintf("vouch %s %s", e.RequestID, verdict)
	case relay.CreditLine:
		return fmt.Sprintf("credit line %s %s -> %s limit=%.2f balance=%.2f", e.ID, e.Creditor, e.Debtor, e.Limit, e.Balance)
	case relay.CreditTransfer:
		memo := ""
		if e.Memo != nil {
			memo = " (" + *e.Memo + ")"
		}
		return fmt.Sprintf("transfer %.2f %s -> %s%s", e.Amount, e.From, e.To, memo)
	case relay.Proposal:
		return fmt.Sprintf("proposal %s %q [%s] %s quorum=%d", e.ID, e.Title, e.ProposalType, e.Status, e.Quorum)
	case relay.VoteCast:
		return fmt.Sprintf("vote %s on %s by %s", e.Vote, e.ProposalID, e.Voter)
	case relay.ResourceContribution:
		return fmt.Sprintf("resource %s contributed %.2f %s of %s", e.PeerID, e.Amount, e.Unit, e.ResourceType)
	case relay.ResourcePoolUpdate:
		return fmt.Sprintf("pool %s available=%.2f used=%.2f contributors=%d", e.ResourceType, e.TotalAvailable, e.TotalUsed, len(e.Contributors))
	default:
		return string(ev.EventType())
	}
}

func clock(ms int64) string {
	return time.UnixMilli(ms).Format("15:04:05")
}

// PrintEvent writes FormatEvent with a colour per event family.
func PrintEvent(ev relay.ServerEvent) {
	line := FormatEvent(ev)
	switch ev.(type) {
	case relay.ChatMessage:
		color.Cyan("%s", line)
	case relay.PeerJoined, relay.PeerLeft, relay.PeersList:
		color.Yellow("%s", line)
	case relay.ErrorNotice:
		color.Red("%s", line)
	case relay.VouchRequest, relay.VouchAck, relay.ReputationUpdate:
		color.Magenta("%s", line)
	case relay.CreditLine, relay.CreditTransfer:
		color.Green("%s", line)
	case relay.Proposal, relay.VoteCast:
		color.Blue("%s", line)
	default:
		color.HiBlack("%s", line)
	}
}
