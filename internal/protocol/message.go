// Package protocol defines the messages published onto the gossip network. The relay
// only builds and forwards them; validating and settling them is the job of the
// economic protocol nodes.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mycelhub/pkg/wire"
)

type Kind string

const (
	KindContent        Kind = "content"
	KindVouchRequest   Kind = "vouch_request"
	KindVouchAck       Kind = "vouch_ack"
	KindCreateLine     Kind = "create_line"
	KindTransfer       Kind = "transfer"
	KindCreateProposal Kind = "create_proposal"
	KindCastVote       Kind = "cast_vote"
	KindContribution   Kind = "contribution"
	KindPoolSnapshot   Kind = "pool_snapshot"
)

// Payload is any message that can travel on a topic.
type Payload interface {
	Kind() Kind
}

// Message is the core content message used for chat.
type Message struct {
	ID         uuid.UUID `json:"id"`
	Sender     string    `json:"sender"`
	SenderName string    `json:"sender_name,omitempty"`
	Recipient  *string   `json:"recipient"`
	Payload    []byte    `json:"payload"`
	Timestamp  time.Time `json:"timestamp"`
}

func (*Message) Kind() Kind { return KindContent }

type VouchRequest struct {
	ID        uuid.UUID `json:"id"`
	Voucher   string    `json:"voucher"`
	Vouchee   string    `json:"vouchee"`
	Stake     float64   `json:"stake"`
	Message   *string   `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (*VouchRequest) Kind() Kind { return KindVouchRequest }

type VouchAck struct {
	ID        uuid.UUID `json:"id"`
	VouchID   uuid.UUID `json:"vouch_id"`
	From      string    `json:"from"`
	Accepted  bool      `json:"accepted"`
	Reason    *string   `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func (*VouchAck) Kind() Kind { return KindVouchAck }

type CreateCreditLine struct {
	ID        uuid.UUID `json:"id"`
	Creditor  string    `json:"creditor"`
	Debtor    string    `json:"debtor"`
	Limit     float64   `json:"limit"`
	Timestamp time.Time `json:"timestamp"`
}

func (*CreateCreditLine) Kind() Kind { return KindCreateLine }

type CreditTransfer struct {
	ID        uuid.UUID `json:"id"`
	LineID    uuid.UUID `json:"line_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Amount    float64   `json:"amount"`
	Memo      *string   `json:"memo"`
	Timestamp time.Time `json:"timestamp"`
}

func (*CreditTransfer) Kind() Kind { return KindTransfer }

type CreateProposal struct {
	ID           uuid.UUID `json:"id"`
	Proposer     string    `json:"proposer"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ProposalType string    `json:"proposal_type"`
	Timestamp    time.Time `json:"timestamp"`
}

func (*CreateProposal) Kind() Kind { return KindCreateProposal }

type CastVote struct {
	ID         uuid.UUID `json:"id"`
	ProposalID uuid.UUID `json:"proposal_id"`
	Voter      string    `json:"voter"`
	Vote       Vote      `json:"vote"`
	Weight     float64   `json:"weight"`
	Timestamp  time.Time `json:"timestamp"`
}

func (*CastVote) Kind() Kind { return KindCastVote }

type ResourceContribution struct {
	ID           uuid.UUID    `json:"id"`
	PeerID       string       `json:"peer_id"`
	ResourceType ResourceType `json:"resource_type"`
	Amount       float64      `json:"amount"`
	Unit         string       `json:"unit"`
	Timestamp    time.Time    `json:"timestamp"`
}

func (*ResourceContribution) Kind() Kind { return KindContribution }

// Contributor is one peer's share of a resource pool.
type Contributor struct {
	PeerID       string  `json:"peer_id"`
	Contribution float64 `json:"contribution"`
	Percentage   float64 `json:"percentage"`
}

// PoolSnapshot is published by resource accounting nodes, never by the relay.
type PoolSnapshot struct {
	ResourceType   ResourceType  `json:"resource_type"`
	TotalAvailable float64       `json:"total_available"`
	TotalUsed      float64       `json:"total_used"`
	Contributors   []Contributor `json:"contributors"`
	Timestamp      time.Time     `json:"timestamp"`
}

func (*PoolSnapshot) Kind() Kind { return KindPoolSnapshot }

// Encode serializes a payload with its kind as the discriminant.
func Encode(p Payload) ([]byte, error) {
	return wire.MarshalTagged(string(p.Kind()), p)
}

// Decode parses a payload received from the network.
func Decode(data []byte) (Payload, error) {
	tag, _, err := wire.Fields(data)
	if err != nil {
		return nil, fmt.Errorf("decode protocol message: %w", err)
	}

	var p Payload
	switch Kind(tag) {
	case KindContent:
		p = &Message{}
	case KindVouchRequest:
		p = &VouchRequest{}
	case KindVouchAck:
		p = &VouchAck{}
	case KindCreateLine:
		p = &CreateCreditLine{}
	case KindTransfer:
		p = &CreditTransfer{}
	case KindCreateProposal:
		p = &CreateProposal{}
	case KindCastVote:
		p = &CastVote{}
	case KindContribution:
		p = &ResourceContribution{}
	case KindPoolSnapshot:
		p = &PoolSnapshot{}
	default:
		return nil, fmt.Errorf("decode protocol message: unknown kind %q", tag)
	}

	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decode protocol message %s: %w", tag, err)
	}
	return p, nil
}
