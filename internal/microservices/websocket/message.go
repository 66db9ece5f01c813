package websocket

import (
	"encoding/json"
	"fmt"

	"mycelhub/internal/peerstore"
	"mycelhub/pkg/wire"
)

// Server -> client event protocol

type EventType string

const (
	TypePeerJoined           EventType = "peer_joined"
	TypePeerLeft             EventType = "peer_left"
	TypeChatMessage          EventType = "chat_message"
	TypeReputationUpdate     EventType = "reputation_update"
	TypePeersList            EventType = "peers_list"
	TypeStats                EventType = "stats"
	TypeError                EventType = "error"
	TypeVouchRequest         EventType = "vouch_request"
	TypeVouchAck             EventType = "vouch_ack"
	TypeCreditLine           EventType = "credit_line"
	TypeCreditTransfer       EventType = "credit_transfer"
	TypeProposal             EventType = "proposal"
	TypeVoteCast             EventType = "vote_cast"
	TypeResourceContribution EventType = "resource_contribution"
	TypeResourcePoolUpdate   EventType = "resource_pool_update"
)

// ServerEvent is one self-contained frame pushed to dashboard clients.
// Events are values; nothing mutates one after it has been published.
type ServerEvent interface {
	EventType() EventType
}

type PeerJoined struct {
	PeerID string  `json:"peer_id"`
	Name   *string `json:"name"`
}

type PeerLeft struct {
	PeerID string `json:"peer_id"`
}

type ChatMessage struct {
	ID        string  `json:"id"`
	From      string  `json:"from"`
	FromName  string  `json:"from_name"`
	To        *string `json:"to"`
	Content   string  `json:"content"`
	Timestamp int64   `json:"timestamp"`
}

type ReputationUpdate struct {
	PeerID   string  `json:"peer_id"`
	NewScore float64 `json:"new_score"`
}

type PeersList struct {
	Peers []PeerListEntry `json:"peers"`
}

type Stats struct {
	PeerCount     int    `json:"peer_count"`
	MessageCount  uint64 `json:"message_count"`
	UptimeSeconds uint64 `json:"uptime_seconds"`
}

// ErrorNotice is only ever sent to the one session it concerns.
type ErrorNotice struct {
	Message string `json:"message"`
}

type VouchRequest struct {
	ID        string  `json:"id"`
	Voucher   string  `json:"voucher"`
	Vouchee   string  `json:"vouchee"`
	Weight    float64 `json:"weight"`
	Timestamp int64   `json:"timestamp"`
}

type VouchAck struct {
	ID            string   `json:"id"`
	RequestID     string   `json:"request_id"`
	Accepted      bool     `json:"accepted"`
	NewReputation *float64 `json:"new_reputation"`
	Timestamp     int64    `json:"timestamp"`
}

type CreditLine struct {
	ID        string  `json:"id"`
	Creditor  string  `json:"creditor"`
	Debtor    string  `json:"debtor"`
	Limit     float64 `json:"limit"`
	Balance   float64 `json:"balance"`
	Timestamp int64   `json:"timestamp"`
}

type CreditTransfer struct {
	ID        string  `json:"id"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Amount    float64 `json:"amount"`
	Memo      *string `json:"memo"`
	Timestamp int64   `json:"timestamp"`
}

type Proposal struct {
	ID           string `json:"id"`
	Proposer     string `json:"proposer"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ProposalType string `json:"proposal_type"`
	Status       string `json:"status"`
	YesVotes     uint32 `json:"yes_votes"`
	NoVotes      uint32 `json:"no_votes"`
	Quorum       uint32 `json:"quorum"`
	Deadline     int64  `json:"deadline"`
	Timestamp    int64  `json:"timestamp"`
}

type VoteCast struct {
	ID         string  `json:"id"`
	ProposalID string  `json:"proposal_id"`
	Voter      string  `json:"voter"`
	Vote       string  `json:"vote"`
	Weight     float64 `json:"weight"`
	Timestamp  int64   `json:"timestamp"`
}

type ResourceContribution struct {
	ID           string  `json:"id"`
	PeerID       string  `json:"peer_id"`
	ResourceType string  `json:"resource_type"`
	Amount       float64 `json:"amount"`
	Unit         string  `json:"unit"`
	Timestamp    int64   `json:"timestamp"`
}

type ResourcePoolUpdate struct {
	ResourceType   string             `json:"resource_type"`
	TotalAvailable float64            `json:"total_available"`
	TotalUsed      float64            `json:"total_used"`
	Contributors   []ContributorEntry `json:"contributors"`
	Timestamp      int64              `json:"timestamp"`
}

func (PeerJoined) EventType() EventType           { return TypePeerJoined }
func (PeerLeft) EventType() EventType             { return TypePeerLeft }
func (ChatMessage) EventType() EventType          { return TypeChatMessage }
func (ReputationUpdate) EventType() EventType     { return TypeReputationUpdate }
func (PeersList) EventType() EventType            { return TypePeersList }
func (Stats) EventType() EventType                { return TypeStats }
func (ErrorNotice) EventType() EventType          { return TypeError }
func (VouchRequest) EventType() EventType         { return TypeVouchRequest }
func (VouchAck) EventType() EventType             { return TypeVouchAck }
func (CreditLine) EventType() EventType           { return TypeCreditLine }
func (CreditTransfer) EventType() EventType       { return TypeCreditTransfer }
func (Proposal) EventType() EventType             { return TypeProposal }
func (VoteCast) EventType() EventType             { return TypeVoteCast }
func (ResourceContribution) EventType() EventType { return TypeResourceContribution }
func (ResourcePoolUpdate) EventType() EventType   { return TypeResourcePoolUpdate }

// PeerListEntry is a peer identity joined with its reputation, built fresh per request.
type PeerListEntry struct {
	ID         string   `json:"id"`
	Name       *string  `json:"name"`
	Reputation float64  `json:"reputation"`
	Addresses  []string `json:"addresses"`
}

// NewPeerListEntry projects a store record.
func NewPeerListEntry(rec peerstore.Record) PeerListEntry {
	addrs := rec.Info.Addresses
	if addrs == nil {
		addrs = []string{}
	}
	return PeerListEntry{
		ID:         rec.Info.ID,
		Name:       rec.Info.Name,
		Reputation: rec.Reputation.Score,
		Addresses:  addrs,
	}
}

// NewPeersList builds the peers_list event for a store listing.
func NewPeersList(records []peerstore.Record) PeersList {
	entries := make([]PeerListEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, NewPeerListEntry(rec))
	}
	return PeersList{Peers: entries}
}

type ContributorEntry struct {
	PeerID       string  `json:"peer_id"`
	Contribution float64 `json:"contribution"`
	Percentage   float64 `json:"percentage"`
}

// EncodeEvent marshals an event to its wire form.
func EncodeEvent(ev ServerEvent) ([]byte, error) {
	return wire.MarshalTagged(string(ev.EventType()), ev)
}

// DecodeEvent parses an event frame. Dashboard tooling uses it; the relay itself
// only ever encodes events.
func DecodeEvent(data []byte) (ServerEvent, error) {
	tag, _, err := wire.Fields(data)
	if err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	switch EventType(tag) {
	case TypePeerJoined:
		return decodeEvent[PeerJoined](data)
	case TypePeerLeft:
		return decodeEvent[PeerLeft](data)
	case TypeChatMessage:
		return decodeEvent[ChatMessage](data)
	case TypeReputationUpdate:
		return decodeEvent[ReputationUpdate](data)
	case TypePeersList:
		return decodeEvent[PeersList](data)
	case TypeStats:
		return decodeEvent[Stats](data)
	case TypeError:
		return decodeEvent[ErrorNotice](data)
	case TypeVouchRequest:
		return decodeEvent[VouchRequest](data)
	case TypeVouchAck:
		return decodeEvent[VouchAck](data)
	case TypeCreditLine:
		return decodeEvent[CreditLine](data)
	case TypeCreditTransfer:
		return decodeEvent[CreditTransfer](data)
	case TypeProposal:
		return decodeEvent[Proposal](data)
	case TypeVoteCast:
		return decodeEvent[VoteCast](data)
	case TypeResourceContribution:
		return decodeEvent[ResourceContribution](data)
	case TypeResourcePoolUpdate:
		return decodeEvent[ResourcePoolUpdate](data)
	default:
		return nil, fmt.Errorf("decode event: unknown type %q", tag)
	}
}

func decodeEvent[T ServerEvent](data []byte) (ServerEvent, error) {
	var ev T
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode event %s: %w", ev.EventType(), err)
	}
	return ev, nil
}
