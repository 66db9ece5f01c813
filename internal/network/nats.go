package network

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/nats-io/nats.go"
)

const (
	// HeaderSender carries the publishing node id so receivers can drop their own echoes.
	HeaderSender    = "Mycelial-Sender"
	presenceSubject = "mycelial.presence"
)

type presenceAnnouncement struct {
	PeerID    string   `json:"peer_id"`
	Name      *string  `json:"name"`
	Addresses []string `json:"addresses"`
	Online    bool     `json:"online"`
}

// NATSConfig configures the NATS backend.
type NATSConfig struct {
	URL          string
	LocalPeerID  string
	NodeName     string
	EventBuffer  int
	ConnectTries uint
}

// NATSNetwork maps gossip topics onto NATS subjects.
type NATSNetwork struct {
	conn    *nats.Conn
	self    Peer
	logger  *slog.Logger
	events  chan Event
	closeMu sync.RWMutex
	closed  bool

	mu    sync.Mutex
	subs  map[string]*nats.Subscription // subject -> subscription
	known map[string]bool
}

// DialNATS connects with retries, then announces this node on the presence subject.
func DialNATS(ctx context.Context, cfg NATSConfig, logger *slog.Logger) (*NATSNetwork, error) {
	logger = orDefault(logger)
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 1024
	}
	if cfg.ConnectTries == 0 {
		cfg.ConnectTries = 5
	}

	opts := []nats.Option{
		nats.Name(cfg.LocalPeerID),
		nats.MaxReconnects(-1), // retry forever
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("nats_connection_closed")
		}),
	}

	var conn *nats.Conn
	err := retry.Do(
		func() error {
			c, err := nats.Connect(cfg.URL, opts...)
			if err != nil {
				return err
			}
			conn = c
			return nil
		},
		retry.Attempts(cfg.ConnectTries),
		retry.Delay(500*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("nats_connect_retry", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}

	n := &NATSNetwork{
		conn:   conn,
		logger: logger,
		events: make(chan Event, cfg.EventBuffer),
		subs:   make(map[string]*nats.Subscription),
		known:  make(map[string]bool),
	}
	n.self = Peer{ID: cfg.LocalPeerID, Addresses: []string{conn.ConnectedUrl()}}
	if cfg.NodeName != "" {
		name := cfg.NodeName
		n.self.Name = &name
	}

	if _, err := conn.Subscribe(presenceSubject, n.handlePresence); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe to presence: %w", err)
	}
	if err := n.announce(true); err != nil {
		logger.Warn("nats_presence_announce_failed", "error", err)
	}
	return n, nil
}

// SubjectForTopic turns "/mycelial/1.0.0/chat" into "mycelial.1_0_0.chat".
func SubjectForTopic(topic string) string {
	s := strings.Trim(topic, "/")
	s = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(s)
	return strings.ReplaceAll(s, "/", ".")
}

func (n *NATSNetwork) Publish(ctx context.Context, topic string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.isClosed() {
		return ErrClosed
	}
	msg := nats.NewMsg(SubjectForTopic(topic))
	msg.Header.Set(HeaderSender, n.self.ID)
	msg.Data = data
	if err := n.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe is idempotent per topic.
func (n *NATSNetwork) Subscribe(ctx context.Context, topic string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.isClosed() {
		return ErrClosed
	}
	subject := SubjectForTopic(topic)

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.subs[subject]; ok {
		return nil
	}
	sub, err := n.conn.Subscribe(subject, func(m *nats.Msg) {
		from := m.Header.Get(HeaderSender)
		if from == n.self.ID {
			return
		}
		n.deliver(Event{Kind: EventMessage, Topic: topic, From: from, Data: m.Data})
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", topic, err)
	}
	n.subs[subject] = sub
	n.logger.Info("nats_topic_subscribed", "topic", topic, "subject", subject)
	return nil
}

func (n *NATSNetwork) LocalPeerID() string { return n.self.ID }

func (n *NATSNetwork) Events() <-chan Event { return n.events }

// Close announces departure, drains subscriptions and ends the event stream.
func (n *NATSNetwork) Close() error {
	if err := n.announce(false); err != nil {
		n.logger.Warn("nats_presence_announce_failed", "error", err)
	}
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
	}

	n.closeMu.Lock()
	defer n.closeMu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	close(n.events)
	return nil
}

func (n *NATSNetwork) announce(online bool) error {
	data, err := json.Marshal(presenceAnnouncement{
		PeerID:    n.self.ID,
		Name:      n.self.Name,
		Addresses: n.self.Addresses,
		Online:    online,
	})
	if err != nil {
		return err
	}
	msg := nats.NewMsg(presenceSubject)
	msg.Header.Set(HeaderSender, n.self.ID)
	msg.Data = data
	return n.conn.PublishMsg(msg)
}

func (n *NATSNetwork) handlePresence(m *nats.Msg) {
	var ann presenceAnnouncement
	if err := json.Unmarshal(m.Data, &ann); err != nil {
		n.logger.Warn("nats_presence_invalid", "error", err)
		return
	}
	if ann.PeerID == "" || ann.PeerID == n.self.ID {
		return
	}
	n.mu.Lock()
	seen := n.known[ann.PeerID]
	if ann.Online {
		n.known[ann.PeerID] = true
	} else {
		delete(n.known, ann.PeerID)
	}
	n.mu.Unlock()

	kind := EventPeerLeft
	if ann.Online {
		if seen {
			return
		}
		kind = EventPeerJoined
		// answer newcomers so they learn about us too
		if err := n.announce(true); err != nil {
			n.logger.Warn("nats_presence_announce_failed", "error", err)
		}
	}
	n.deliver(Event{
		Kind: kind,
		From: ann.PeerID,
		Peer: Peer{ID: ann.PeerID, Name: ann.Name, Addresses: ann.Addresses},
	})
}

func (n *NATSNetwork) isClosed() bool {
	n.closeMu.RLock()
	defer n.closeMu.RUnlock()
	return n.closed
}

func (n *NATSNetwork) deliver(ev Event) {
	n.closeMu.RLock()
	defer n.closeMu.RUnlock()
	if n.closed {
		return
	}
	emit(n.events, ev, n.logger)
}
