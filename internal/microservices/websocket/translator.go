package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mycelhub/internal/network"
	"mycelhub/internal/peerstore"
	"mycelhub/internal/protocol"
)

const (
	ProposalStatusActive = "active"
	ProposalQuorum       = 3
	ProposalVotingPeriod = 24 * time.Hour
	DefaultVoteWeight    = 1.0
)

// PeerLister is the read side of the peer store.
type PeerLister interface {
	ListPeers(ctx context.Context) ([]peerstore.Record, error)
}

// EventPublisher injects events into the broadcast bus. *Hub implements it.
type EventPublisher interface {
	Publish(ev ServerEvent) int
}

// Dispatcher runs one parsed command on behalf of a session.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd ClientCommand) error
}

// Identity is who this node publishes as.
type Identity struct {
	PeerID string
	Name   string
}

// Translator turns dashboard commands into protocol messages on the network
// plus a local echo on the hub. The network never hands a node its own
// publications back, so the echo is what the dashboards see of them.
type Translator struct {
	net      network.Publisher
	peers    PeerLister
	events   EventPublisher
	counters *NodeCounters
	self     Identity
	logger   *slog.Logger

	now   func() time.Time
	newID func() uuid.UUID
}

func NewTranslator(net network.Publisher, peers PeerLister, events EventPublisher, counters *NodeCounters, self Identity, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.Default()
	}
	if counters == nil {
		counters = NewNodeCounters(time.Now())
	}
	return &Translator{
		net:      net,
		peers:    peers,
		events:   events,
		counters: counters,
		self:     self,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.New,
	}
}

// Dispatch handles one command. A returned error means nothing was echoed.
func (t *Translator) Dispatch(ctx context.Context, cmd ClientCommand) error {
	switch c := cmd.(type) {
	case SendChat:
		return t.sendChat(ctx, c)
	case GetPeers:
		return t.getPeers(ctx)
	case GetStats:
		return t.getStats(ctx)
	case SubscribeTopic:
		if err := t.net.Subscribe(ctx, c.Topic); err != nil {
			return fmt.Errorf("subscribe to %s: %w", c.Topic, err)
		}
		t.logger.Info("topic_subscribed", "topic", c.Topic)
		return nil
	case SendVouch:
		return t.sendVouch(ctx, c)
	case RespondVouch:
		return t.respondVouch(ctx, c)
	case CreateCreditLine:
		return t.createCreditLine(ctx, c)
	case TransferCredit:
		return t.transferCredit(ctx, c)
	case CreateProposal:
		return t.createProposal(ctx, c)
	case CastVote:
		return t.castVote(ctx, c)
	case ReportResource:
		return t.reportResource(ctx, c)
	default:
		return fmt.Errorf("unsupported command %T", cmd)
	}
}

// publishAndEcho is the one path every network-bound command takes:
// serialize, publish, then echo only if the publish was accepted.
func (t *Translator) publishAndEcho(ctx context.Context, topic string, msg protocol.Payload, echo ServerEvent) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Kind(), err)
	}
	if err := t.net.Publish(ctx, topic, data); err != nil {
		return &PublishError{Topic: topic, Err: err}
	}
	n := t.events.Publish(echo)
	t.logger.Debug("local_echo_published",
		"topic", topic,
		"event_type", string(echo.EventType()),
		"subscribers", n,
	)
	return nil
}

func (t *Translator) sendChat(ctx context.Context, c SendChat) error {
	id := t.newID()
	now := t.now()

	topic := protocol.TopicChat
	if c.To != nil {
		topic = protocol.TopicDirect
	}
	msg := &protocol.Message{
		ID:         id,
		Sender:     t.self.PeerID,
		SenderName: t.self.Name,
		Recipient:  c.To,
		Payload:    []byte(c.Content),
		Timestamp:  now,
	}
	return t.publishAndEcho(ctx, topic, msg, ChatMessage{
		ID:        id.String(),
		From:      t.self.PeerID,
		FromName:  t.self.Name,
		To:        c.To,
		Content:   c.Content,
		Timestamp: now.UnixMilli(),
	})
}

func (t *Translator) getPeers(ctx context.Context) error {
	records, err := t.peers.ListPeers(ctx)
	if err != nil {
		return fmt.Errorf("list peers: %w", err)
	}
	t.events.Publish(NewPeersList(records))
	return nil
}

func (t *Translator) getStats(ctx context.Context) error {
	records, err := t.peers.ListPeers(ctx)
	if err != nil {
		return fmt.Errorf("list peers for stats: %w", err)
	}
	t.events.Publish(Stats{
		PeerCount:     len(records),
		MessageCount:  t.counters.Messages(),
		UptimeSeconds: t.counters.Uptime(t.now()),
	})
	return nil
}

func (t *Translator) sendVouch(ctx context.Context, c SendVouch) error {
	id := t.newID()
	now := t.now()
	msg := &protocol.VouchRequest{
		ID:        id,
		Voucher:   t.self.PeerID,
		Vouchee:   c.Vouchee,
		Stake:     c.Weight,
		Message:   c.Message,
		Timestamp: now,
	}
	return t.publishAndEcho(ctx, protocol.TopicVouch, msg, VouchRequest{
		ID:        id.String(),
		Voucher:   t.self.PeerID,
		Vouchee:   c.Vouchee,
		Weight:    c.Weight,
		Timestamp: now.UnixMilli(),
	})
}

func (t *Translator) respondVouch(ctx context.Context, c RespondVouch) error {
	vouchID, err := uuid.Parse(c.RequestID)
	if err != nil {
		return &InvalidIdentifierError{Field: "request_id", Value: c.RequestID, Err: err}
	}
	id := t.newID()
	now := t.now()
	msg := &protocol.VouchAck{
		ID:        id,
		VouchID:   vouchID,
		From:      t.self.PeerID,
		Accepted:  c.Accept,
		Timestamp: now,
	}
	return t.publishAndEcho(ctx, protocol.TopicVouch, msg, VouchAck{
		ID:        id.String(),
		RequestID: c.RequestID,
		Accepted:  c.Accept,
		Timestamp: now.UnixMilli(),
	})
}

func (t *Translator) createCreditLine(ctx context.Context, c CreateCreditLine) error {
	id := t.newID()
	now := t.now()
	msg := &protocol.CreateCreditLine{
		ID:        id,
		Creditor:  t.self.PeerID,
		Debtor:    c.Debtor,
		Limit:     c.Limit,
		Timestamp: now,
	}
	return t.publishAndEcho(ctx, protocol.TopicCredit, msg, CreditLine{
		ID:        id.String(),
		Creditor:  t.self.PeerID,
		Debtor:    c.Debtor,
		Limit:     c.Limit,
		Balance:   0,
		Timestamp: now.UnixMilli(),
	})
}

// The line a transfer draws on is not resolved here; a fresh placeholder id is sent.
func (t *Translator) transferCredit(ctx context.Context, c TransferCredit) error {
	id := t.newID()
	lineID := t.newID()
	now := t.now()
	msg := &protocol.CreditTransfer{
		ID:        id,
		LineID:    lineID,
		From:      t.self.PeerID,
		To:        c.To,
		Amount:    c.Amount,
		Memo:      c.Memo,
		Timestamp: now,
	}
	return t.publishAndEcho(ctx, protocol.TopicCredit, msg, CreditTransfer{
		ID:        id.String(),
		From:      t.self.PeerID,
		To:        c.To,
		Amount:    c.Amount,
		Memo:      c.Memo,
		Timestamp: now.UnixMilli(),
	})
}

// Status, tallies, quorum and deadline in the echo are placeholders until the
// governance nodes report real values.
func (t *Translator) createProposal(ctx context.Context, c CreateProposal) error {
	id := t.newID()
	now := t.now()
	msg := &protocol.CreateProposal{
		ID:           id,
		Proposer:     t.self.PeerID,
		Title:        c.Title,
		Description:  c.Description,
		ProposalType: c.ProposalType,
		Timestamp:    now,
	}
	return t.publishAndEcho(ctx, protocol.TopicGovernance, msg, Proposal{
		ID:           id.String(),
		Proposer:     t.self.PeerID,
		Title:        c.Title,
		Description:  c.Description,
		ProposalType: c.ProposalType,
		Status:       ProposalStatusActive,
		YesVotes:     0,
		NoVotes:      0,
		Quorum:       ProposalQuorum,
		Deadline:     now.Add(ProposalVotingPeriod).UnixMilli(),
		Timestamp:    now.UnixMilli(),
	})
}

func (t *Translator) castVote(ctx context.Context, c CastVote) error {
	proposalID, err := uuid.Parse(c.ProposalID)
	if err != nil {
		return &InvalidIdentifierError{Field: "proposal_id", Value: c.ProposalID, Err: err}
	}
	id := t.newID()
	now := t.now()
	vote := protocol.ParseVote(c.Vote)
	msg := &protocol.CastVote{
		ID:         id,
		ProposalID: proposalID,
		Voter:      t.self.PeerID,
		Vote:       vote,
		Weight:     DefaultVoteWeight,
		Timestamp:  now,
	}
	return t.publishAndEcho(ctx, protocol.TopicGovernance, msg, VoteCast{
		ID:         id.String(),
		ProposalID: c.ProposalID,
		Voter:      t.self.PeerID,
		Vote:       string(vote),
		Weight:     DefaultVoteWeight,
		Timestamp:  now.UnixMilli(),
	})
}

func (t *Translator) reportResource(ctx context.Context, c ReportResource) error {
	id := t.newID()
	now := t.now()
	msg := &protocol.ResourceContribution{
		ID:           id,
		PeerID:       t.self.PeerID,
		ResourceType: protocol.ParseResourceType(c.ResourceType),
		Amount:       c.Amount,
		Unit:         c.Unit,
		Timestamp:    now,
	}
	return t.publishAndEcho(ctx, protocol.TopicResource, msg, ResourceContribution{
		ID:           id.String(),
		PeerID:       t.self.PeerID,
		ResourceType: c.ResourceType,
		Amount:       c.Amount,
		Unit:         c.Unit,
		Timestamp:    now.UnixMilli(),
	})
}
