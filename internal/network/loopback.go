package network

import (
	"context"
	"log/slog"
	"sync"
)

// Published records one call to Publish on a loopback node.
type Published struct {
	Topic string
	Data  []byte
}

// Mesh connects loopback nodes in process. A publish reaches every other node
// subscribed to the topic, never the publisher itself.
type Mesh struct {
	mu    sync.RWMutex
	nodes map[string]*Loopback
}

func NewMesh() *Mesh {
	return &Mesh{nodes: make(map[string]*Loopback)}
}

// Join adds a node and announces it to the nodes already present.
func (m *Mesh) Join(peer Peer, buffer int, logger *slog.Logger) *Loopback {
	node := NewLoopback(peer.ID, buffer, logger)
	node.mesh = m
	node.self = peer

	m.mu.Lock()
	others := make([]*Loopback, 0, len(m.nodes))
	for _, other := range m.nodes {
		others = append(others, other)
	}
	m.nodes[peer.ID] = node
	m.mu.Unlock()

	for _, other := range others {
		other.deliver(Event{Kind: EventPeerJoined, From: peer.ID, Peer: peer})
		node.deliver(Event{Kind: EventPeerJoined, From: other.self.ID, Peer: other.self})
	}
	return node
}

func (m *Mesh) leave(node *Loopback) {
	m.mu.Lock()
	delete(m.nodes, node.localID)
	others := make([]*Loopback, 0, len(m.nodes))
	for _, other := range m.nodes {
		others = append(others, other)
	}
	m.mu.Unlock()

	for _, other := range others {
		other.deliver(Event{Kind: EventPeerLeft, From: node.localID, Peer: node.self})
	}
}

func (m *Mesh) broadcast(from, topic string, data []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, node := range m.nodes {
		if id == from || !node.isSubscribed(topic) {
			continue
		}
		node.deliver(Event{Kind: EventMessage, Topic: topic, From: from, Data: data})
	}
}

// Loopback is an in-process network node. Standalone it only records what was
// published; joined to a Mesh it also exchanges messages with its neighbours.
type Loopback struct {
	localID string
	self    Peer
	mesh    *Mesh
	logger  *slog.Logger

	mu        sync.RWMutex
	topics    map[string]bool
	published []Published
	closed    bool
	events    chan Event
}

func NewLoopback(localID string, buffer int, logger *slog.Logger) *Loopback {
	if buffer <= 0 {
		buffer = 64
	}
	return &Loopback{
		localID: localID,
		self:    Peer{ID: localID},
		logger:  orDefault(logger),
		topics:  make(map[string]bool),
		events:  make(chan Event, buffer),
	}
}

func (l *Loopback) Publish(ctx context.Context, topic string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.published = append(l.published, Published{Topic: topic, Data: append([]byte(nil), data...)})
	l.mu.Unlock()

	if l.mesh != nil {
		l.mesh.broadcast(l.localID, topic, data)
	}
	return nil
}

func (l *Loopback) Subscribe(ctx context.Context, topic string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	l.topics[topic] = true
	return nil
}

func (l *Loopback) LocalPeerID() string { return l.localID }

func (l *Loopback) Events() <-chan Event { return l.events }

// Inject simulates traffic arriving from a remote node.
func (l *Loopback) Inject(ev Event) {
	l.deliver(ev)
}

// Published returns a copy of everything published so far.
func (l *Loopback) Published() []Published {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Published(nil), l.published...)
}

func (l *Loopback) Subscribed() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	topics := make([]string, 0, len(l.topics))
	for t := range l.topics {
		topics = append(topics, t)
	}
	return topics
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.events)
	l.mu.Unlock()

	if l.mesh != nil {
		l.mesh.leave(l)
	}
	return nil
}

func (l *Loopback) isSubscribed(topic string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.topics[topic]
}

func (l *Loopback) deliver(ev Event) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	emit(l.events, ev, l.logger)
}
