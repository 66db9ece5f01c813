// Package gossip feeds what the relay hears on the gossip network to the dashboards.
package gossip

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mycelhub/internal/microservices/websocket"
	"mycelhub/internal/network"
	"mycelhub/internal/peerstore"
	"mycelhub/internal/protocol"
)

const storeTimeout = 5 * time.Second

// Bridge consumes a network's event stream: churn updates the peer store,
// protocol messages become dashboard events on the hub.
type Bridge struct {
	net      network.Network
	store    peerstore.Store
	events   websocket.EventPublisher
	counters *websocket.NodeCounters
	logger   *slog.Logger
}

func NewBridge(net network.Network, store peerstore.Store, events websocket.EventPublisher, counters *websocket.NodeCounters, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		net:      net,
		store:    store,
		events:   events,
		counters: counters,
		logger:   logger,
	}
}

func (b *Bridge) subscribe(ctx context.Context) error {
	for _, topic := range protocol.Topics() {
		if err := b.net.Subscribe(ctx, topic); err != nil {
			return err
		}
	}
	return nil
}

// Run joins every well-known topic and then pumps network events until ctx ends
// or the network closes. A failed join is returned before any event is read.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.subscribe(ctx); err != nil {
		return fmt.Errorf("subscribe to protocol topics: %w", err)
	}
	b.logger.Info("gossip_bridge_started", "local_peer_id", b.net.LocalPeerID())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-b.net.Events():
			if !ok {
				b.logger.Info("gossip_bridge_stopped")
				return nil
			}
			b.handle(ctx, ev)
		}
	}
}

func (b *Bridge) handle(ctx context.Context, ev network.Event) {
	switch ev.Kind {
	case network.EventPeerJoined:
		b.peerJoined(ctx, ev.Peer)
	case network.EventPeerLeft:
		b.peerLeft(ctx, ev.Peer)
	case network.EventMessage:
		b.message(ev)
	}
}

func (b *Bridge) peerJoined(ctx context.Context, p network.Peer) {
	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := b.store.UpsertPeer(sctx, peerstore.PeerInfo{ID: p.ID, Name: p.Name, Addresses: p.Addresses}); err != nil {
		b.logger.Error("peer_upsert_failed", "peer_id", p.ID, "error", err)
	}
	b.logger.Info("peer_joined", "peer_id", p.ID)
	b.events.Publish(websocket.PeerJoined{PeerID: p.ID, Name: p.Name})
}

func (b *Bridge) peerLeft(ctx context.Context, p network.Peer) {
	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := b.store.RemovePeer(sctx, p.ID); err != nil {
		b.logger.Error("peer_remove_failed", "peer_id", p.ID, "error", err)
	}
	b.logger.Info("peer_left", "peer_id", p.ID)
	b.events.Publish(websocket.PeerLeft{PeerID: p.ID})
}

func (b *Bridge) message(ev network.Event) {
	b.counters.IncMessages()

	payload, err := protocol.Decode(ev.Data)
	if err != nil {
		b.logger.Warn("undecodable_network_message",
			"topic", ev.Topic,
			"from", ev.From,
			"error", err,
		)
		return
	}

	if msg, ok := payload.(*protocol.Message); ok && msg.Recipient != nil && *msg.Recipient != b.net.LocalPeerID() {
		b.logger.Debug("direct_message_for_other_peer", "recipient", *msg.Recipient)
		return
	}

	out := ToServerEvent(payload)
	if out == nil {
		b.logger.Warn("unhandled_network_message", "topic", ev.Topic, "kind", string(payload.Kind()))
		return
	}
	b.events.Publish(out)
}

// ToServerEvent builds the dashboard view of a protocol message.
func ToServerEvent(p protocol.Payload) websocket.ServerEvent {
	switch m := p.(type) {
	case *protocol.Message:
		name := m.SenderName
		if name == "" {
			name = shortID(m.Sender)
		}
		return websocket.ChatMessage{
			ID:        m.ID.String(),
			From:      m.Sender,
			FromName:  name,
			To:        m.Recipient,
			Content:   string(m.Payload),
			Timestamp: m.Timestamp.UnixMilli(),
		}
	case *protocol.VouchRequest:
		return websocket.VouchRequest{
			ID:        m.ID.String(),
			Voucher:   m.Voucher,
			Vouchee:   m.Vouchee,
			Weight:    m.Stake,
			Timestamp: m.Timestamp.UnixMilli(),
		}
	case *protocol.VouchAck:
		return websocket.VouchAck{
			ID:        m.ID.String(),
			RequestID: m.VouchID.String(),
			Accepted:  m.Accepted,
			Timestamp: m.Timestamp.UnixMilli(),
		}
	case *protocol.CreateCreditLine:
		return websocket.CreditLine{
			ID:        m.ID.String(),
			Creditor:  m.Creditor,
			Debtor:    m.Debtor,
			Limit:     m.Limit,
			Balance:   0,
			Timestamp: m.Timestamp.UnixMilli(),
		}
	case *protocol.CreditTransfer:
		return websocket.CreditTransfer{
			ID:        m.ID.String(),
			From:      m.From,
			To:        m.To,
			Amount:    m.Amount,
			Memo:      m.Memo,
			Timestamp: m.Timestamp.UnixMilli(),
		}
	case *protocol.CreateProposal:
		return websocket.Proposal{
			ID:           m.ID.String(),
			Proposer:     m.Proposer,
			Title:        m.Title,
			Description:  m.Description,
			ProposalType: m.ProposalType,
			Status:       websocket.ProposalStatusActive,
			Quorum:       websocket.ProposalQuorum,
			Deadline:     m.Timestamp.Add(websocket.ProposalVotingPeriod).UnixMilli(),
			Timestamp:    m.Timestamp.UnixMilli(),
		}
	case *protocol.CastVote:
		return websocket.VoteCast{
			ID:         m.ID.String(),
			ProposalID: m.ProposalID.String(),
			Voter:      m.Voter,
			Vote:       string(m.Vote),
			Weight:     m.Weight,
			Timestamp:  m.Timestamp.UnixMilli(),
		}
	case *protocol.ResourceContribution:
		return websocket.ResourceContribution{
			ID:           m.ID.String(),
			PeerID:       m.PeerID,
			ResourceType: m.ResourceType.String(),
			Amount:       m.Amount,
			Unit:         m.Unit,
			Timestamp:    m.Timestamp.UnixMilli(),
		}
	case *protocol.PoolSnapshot:
		contributors := make([]websocket.ContributorEntry, 0, len(m.Contributors))
		for _, c := range m.Contributors {
			contributors = append(contributors, websocket.ContributorEntry{
				PeerID:       c.PeerID,
				Contribution: c.Contribution,
				Percentage:   c.Percentage,
			})
		}
		return websocket.ResourcePoolUpdate{
			ResourceType:   m.ResourceType.String(),
			TotalAvailable: m.TotalAvailable,
			TotalUsed:      m.TotalUsed,
			Contributors:   contributors,
			Timestamp:      m.Timestamp.UnixMilli(),
		}
	default:
		return nil
	}
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}
