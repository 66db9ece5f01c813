package network

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	libp2pnet "github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/multiformats/go-multiaddr"
)

const mdnsServiceTag = "mycelial-network"

// GossipConfig configures the libp2p gossipsub backend.
type GossipConfig struct {
	ListenPort     int
	BootstrapPeers []string
	EnableMDNS     bool
	EventBuffer    int
}

// GossipNetwork runs a libp2p host with gossipsub. Joined topics are cached and
// reused; messages this host published are skipped by the readers.
type GossipNetwork struct {
	host   host.Host
	ps     *pubsub.PubSub
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
	mdns   mdns.Service

	topicsMu sync.RWMutex
	topics   map[string]*pubsub.Topic
	subs     map[string]*pubsub.Subscription

	peersMu   sync.Mutex
	connected map[peer.ID]bool

	closeMu sync.RWMutex
	closed  bool
	events  chan Event
	wg      sync.WaitGroup
}

// NewGossipNetwork starts the host, gossipsub, bootstrap dialing and optional mdns.
func NewGossipNetwork(ctx context.Context, cfg GossipConfig, logger *slog.Logger) (*GossipNetwork, error) {
	logger = orDefault(logger)
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 1024
	}
	ctx, cancel := context.WithCancel(ctx)

	h, err := libp2p.New(
		libp2p.ListenAddrStrings(
			fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", cfg.ListenPort),
		),
		libp2p.NATPortMap(),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create libp2p host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("failed to create gossipsub: %w", err)
	}

	g := &GossipNetwork{
		host:      h,
		ps:        ps,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
		topics:    make(map[string]*pubsub.Topic),
		subs:      make(map[string]*pubsub.Subscription),
		connected: make(map[peer.ID]bool),
		events:    make(chan Event, cfg.EventBuffer),
	}

	h.Network().Notify(&libp2pnet.NotifyBundle{
		ConnectedF:    g.onConnected,
		DisconnectedF: g.onDisconnected,
	})

	logger.Info("libp2p_host_started",
		"peer_id", h.ID().String(),
		"addrs", addrStrings(h.Addrs()),
	)

	for _, addr := range cfg.BootstrapPeers {
		g.dialBootstrap(addr)
	}

	if cfg.EnableMDNS {
		g.mdns = mdns.NewMdnsService(h, mdnsServiceTag, g)
		if err := g.mdns.Start(); err != nil {
			logger.Warn("mdns_start_failed", "error", err)
			g.mdns = nil
		}
	}
	return g, nil
}

// HandlePeerFound connects to peers discovered over mdns.
func (g *GossipNetwork) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == g.host.ID() || !g.track() {
		return
	}
	go func() {
		defer g.wg.Done()
		ctx, cancel := context.WithTimeout(g.ctx, 10*time.Second)
		defer cancel()
		if err := g.host.Connect(ctx, pi); err != nil {
			g.logger.Warn("mdns_peer_connect_failed", "peer_id", pi.ID.String(), "error", err)
		}
	}()
}

func (g *GossipNetwork) dialBootstrap(addr string) {
	maddr, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		g.logger.Warn("invalid_bootstrap_addr", "addr", addr, "error", err)
		return
	}
	pi, err := peer.AddrInfoFromP2pAddr(maddr)
	if err != nil {
		g.logger.Warn("invalid_bootstrap_addr", "addr", addr, "error", err)
		return
	}

	if !g.track() {
		return
	}
	go func() {
		defer g.wg.Done()
		err := retry.Do(
			func() error {
				ctx, cancel := context.WithTimeout(g.ctx, 10*time.Second)
				defer cancel()
				return g.host.Connect(ctx, *pi)
			},
			retry.Attempts(5),
			retry.Delay(2*time.Second),
			retry.Context(g.ctx),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			g.logger.Warn("bootstrap_connect_failed", "peer_id", pi.ID.String(), "error", err)
			return
		}
		g.logger.Info("bootstrap_connected", "peer_id", pi.ID.String())
	}()
}

func (g *GossipNetwork) getOrJoinTopic(name string) (*pubsub.Topic, error) {
	g.topicsMu.RLock()
	if topic, ok := g.topics[name]; ok {
		g.topicsMu.RUnlock()
		return topic, nil
	}
	g.topicsMu.RUnlock()

	g.topicsMu.Lock()
	defer g.topicsMu.Unlock()
	if topic, ok := g.topics[name]; ok {
		return topic, nil
	}
	topic, err := g.ps.Join(name)
	if err != nil {
		return nil, fmt.Errorf("failed to join topic %s: %w", name, err)
	}
	g.topics[name] = topic
	return topic, nil
}

func (g *GossipNetwork) Publish(ctx context.Context, topicName string, data []byte) error {
	if g.isClosed() {
		return ErrClosed
	}
	topic, err := g.getOrJoinTopic(topicName)
	if err != nil {
		return err
	}
	if err := topic.Publish(ctx, data); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topicName, err)
	}
	return nil
}

// Subscribe is idempotent per topic and starts one reader goroutine.
func (g *GossipNetwork) Subscribe(_ context.Context, topicName string) error {
	if g.isClosed() {
		return ErrClosed
	}
	topic, err := g.getOrJoinTopic(topicName)
	if err != nil {
		return err
	}

	g.topicsMu.Lock()
	if _, ok := g.subs[topicName]; ok {
		g.topicsMu.Unlock()
		return nil
	}
	sub, err := topic.Subscribe()
	if err != nil {
		g.topicsMu.Unlock()
		return fmt.Errorf("failed to subscribe to topic %s: %w", topicName, err)
	}
	if !g.track() {
		g.topicsMu.Unlock()
		sub.Cancel()
		return ErrClosed
	}
	g.subs[topicName] = sub
	g.topicsMu.Unlock()

	go g.readTopic(topicName, sub)
	g.logger.Info("gossip_topic_subscribed", "topic", topicName)
	return nil
}

func (g *GossipNetwork) readTopic(topicName string, sub *pubsub.Subscription) {
	defer g.wg.Done()
	for {
		msg, err := sub.Next(g.ctx)
		if err != nil {
			if g.ctx.Err() == nil {
				g.logger.Warn("gossip_subscription_ended", "topic", topicName, "error", err)
			}
			return
		}
		if msg.ReceivedFrom == g.host.ID() {
			continue
		}
		g.deliver(Event{
			Kind:  EventMessage,
			Topic: topicName,
			From:  msg.GetFrom().String(),
			Data:  msg.Data,
		})
	}
}

func (g *GossipNetwork) onConnected(_ libp2pnet.Network, c libp2pnet.Conn) {
	id := c.RemotePeer()
	g.peersMu.Lock()
	already := g.connected[id]
	g.connected[id] = true
	g.peersMu.Unlock()
	if already {
		return
	}
	g.deliver(Event{
		Kind: EventPeerJoined,
		From: id.String(),
		Peer: Peer{ID: id.String(), Addresses: []string{c.RemoteMultiaddr().String()}},
	})
}

func (g *GossipNetwork) onDisconnected(n libp2pnet.Network, c libp2pnet.Conn) {
	id := c.RemotePeer()
	if n.Connectedness(id) == libp2pnet.Connected {
		return
	}
	g.peersMu.Lock()
	was := g.connected[id]
	delete(g.connected, id)
	g.peersMu.Unlock()
	if !was {
		return
	}
	g.deliver(Event{Kind: EventPeerLeft, From: id.String(), Peer: Peer{ID: id.String()}})
}

func (g *GossipNetwork) LocalPeerID() string { return g.host.ID().String() }

func (g *GossipNetwork) Events() <-chan Event { return g.events }

// ListenAddrs returns the host's addresses with the /p2p suffix, for bootstrap lists.
func (g *GossipNetwork) ListenAddrs() []string {
	out := make([]string, 0, len(g.host.Addrs()))
	for _, a := range g.host.Addrs() {
		out = append(out, fmt.Sprintf("%s/p2p/%s", a, g.host.ID()))
	}
	return out
}

func (g *GossipNetwork) Close() error {
	g.closeMu.Lock()
	if g.closed {
		g.closeMu.Unlock()
		return nil
	}
	g.closed = true
	g.closeMu.Unlock()

	g.cancel()
	if g.mdns != nil {
		g.mdns.Close()
	}

	g.topicsMu.Lock()
	for _, sub := range g.subs {
		sub.Cancel()
	}
	for name, topic := range g.topics {
		if err := topic.Close(); err != nil {
			g.logger.Warn("gossip_topic_close_failed", "topic", name, "error", err)
		}
	}
	g.topicsMu.Unlock()

	err := g.host.Close()
	g.wg.Wait()

	g.closeMu.Lock()
	close(g.events)
	g.closeMu.Unlock()
	return err
}

// track counts one more background goroutine for Close to wait on. It refuses
// once Close has begun so wg.Add never races wg.Wait.
func (g *GossipNetwork) track() bool {
	g.closeMu.RLock()
	defer g.closeMu.RUnlock()
	if g.closed {
		return false
	}
	g.wg.Add(1)
	return true
}

func (g *GossipNetwork) isClosed() bool {
	g.closeMu.RLock()
	defer g.closeMu.RUnlock()
	return g.closed
}

// deliver is also called from libp2p notifiee callbacks after Close has begun;
// the events channel is only closed once every reader has returned.
func (g *GossipNetwork) deliver(ev Event) {
	g.closeMu.RLock()
	defer g.closeMu.RUnlock()
	if g.closed {
		return
	}
	emit(g.events, ev, g.logger)
}

func addrStrings(addrs []multiaddr.Multiaddr) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return out
}
