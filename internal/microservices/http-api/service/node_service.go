package service

import (
	"context"
	"fmt"
	"time"

	"mycelhub/internal/microservices/websocket"
	"mycelhub/internal/peerstore"
)

// NodeStats is the relay's view of itself for the REST surface.
type NodeStats struct {
	PeerID        string
	NodeName      string
	PeerCount     int
	MessageCount  uint64
	UptimeSeconds uint64
	Sessions      int
}

type NodeService interface {
	Peers(ctx context.Context) ([]peerstore.Record, error)
	Stats(ctx context.Context) (*NodeStats, error)
	Health(ctx context.Context) error
}

// SessionCounter reports how many dashboard sessions are open. *websocket.Hub implements it.
type SessionCounter interface {
	SessionCount() int
}

type nodeService struct {
	peers    websocket.PeerLister
	sessions SessionCounter
	counters *websocket.NodeCounters
	self     websocket.Identity
	now      func() time.Time
}

func NewNodeService(peers websocket.PeerLister, sessions SessionCounter, counters *websocket.NodeCounters, self websocket.Identity) NodeService {
	return &nodeService{
		peers:    peers,
		sessions: sessions,
		counters: counters,
		self:     self,
		now:      time.Now,
	}
}

func (s *nodeService) Peers(ctx context.Context) ([]peerstore.Record, error) {
	records, err := s.peers.ListPeers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list peers: %w", err)
	}
	return records, nil
}

func (s *nodeService) Stats(ctx context.Context) (*NodeStats, error) {
	records, err := s.peers.ListPeers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list peers: %w", err)
	}
	return &NodeStats{
		PeerID:        s.self.PeerID,
		NodeName:      s.self.Name,
		PeerCount:     len(records),
		MessageCount:  s.counters.Messages(),
		UptimeSeconds: s.counters.Uptime(s.now()),
		Sessions:      s.sessions.SessionCount(),
	}, nil
}

// Health only checks the peer store; the network has no cheap liveness check.
func (s *nodeService) Health(ctx context.Context) error {
	if _, err := s.peers.ListPeers(ctx); err != nil {
		return fmt.Errorf("peer store: %w", err)
	}
	return nil
}
