package client

import (
	relay "mycelhub/internal/microservices/websocket"
	"mycelhub/internal/protocol"
)

// isEcho reports whether ev carries cmd's own fields back. The hub broadcasts,
// so an event of the right type may come from another dashboard or a remote node.
// The check is best-effort: two dashboards on the same relay sending identical
// commands at once produce echoes nobody can tell apart.
func isEcho(cmd relay.ClientCommand, ev relay.ServerEvent) bool {
	switch c := cmd.(type) {
	case relay.SendChat:
		e, ok := ev.(relay.ChatMessage)
		return ok && e.Content == c.Content && samePtr(e.To, c.To)
	case relay.SendVouch:
		e, ok := ev.(relay.VouchRequest)
		return ok && e.Vouchee == c.Vouchee && e.Weight == c.Weight
	case relay.RespondVouch:
		e, ok := ev.(relay.VouchAck)
		return ok && e.RequestID == c.RequestID && e.Accepted == c.Accept
	case relay.CreateCreditLine:
		e, ok := ev.(relay.CreditLine)
		return ok && e.Debtor == c.Debtor && e.Limit == c.Limit
	case relay.TransferCredit:
		e, ok := ev.(relay.CreditTransfer)
		return ok && e.To == c.To && e.Amount == c.Amount && samePtr(e.Memo, c.Memo)
	case relay.CreateProposal:
		e, ok := ev.(relay.Proposal)
		return ok && e.Title == c.Title && e.Description == c.Description && e.ProposalType == c.ProposalType
	case relay.CastVote:
		e, ok := ev.(relay.VoteCast)
		return ok && e.ProposalID == c.ProposalID && e.Vote == string(protocol.ParseVote(c.Vote))
	case relay.ReportResource:
		e, ok := ev.(relay.ResourceContribution)
		return ok && e.ResourceType == c.ResourceType && e.Amount == c.Amount && e.Unit == c.Unit
	default:
		// peers_list and stats carry nothing of the command to compare
		return true
	}
}

func samePtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
