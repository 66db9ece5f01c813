package websocket

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Central broadcast bus shared by every session.
// Publishers never wait on subscribers: an event that does not fit in a
// subscriber's buffer is dropped for that subscriber and counted as lag.

const DefaultSubscriberBuffer = 256

type Hub struct {
	mu       sync.RWMutex
	subs     map[uint64]*Subscription
	sessions map[string]*Session
	nextID   uint64
	buffer   int
	closed   bool
	logger   *slog.Logger
}

// NewHub creates the process-wide bus. buffer <= 0 uses DefaultSubscriberBuffer.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:     make(map[uint64]*Subscription),
		sessions: make(map[string]*Session),
		buffer:   buffer,
		logger:   logger,
	}
}

// Subscription is one subscriber's cursor into the bus.
type Subscription struct {
	id     uint64
	hub    *Hub
	ch     chan ServerEvent
	lagged atomic.Uint64
	once   sync.Once
}

func (s *Subscription) Events() <-chan ServerEvent { return s.ch }

// Lagged returns how many events were dropped because this subscriber fell behind.
func (s *Subscription) Lagged() uint64 { return s.lagged.Load() }

// Close detaches the subscription; its channel is closed afterwards.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
}

// Subscribe returns a new cursor. Events published before the call are not replayed.
func (h *Hub) Subscribe() (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	h.nextID++
	sub := &Subscription{
		id:  h.nextID,
		hub: h,
		ch:  make(chan ServerEvent, h.buffer),
	}
	h.subs[sub.id] = sub
	return sub, nil
}

func (h *Hub) unsubscribe(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s.id]; ok {
		delete(h.subs, s.id)
	}
	s.once.Do(func() { close(s.ch) })
}

// Publish fans ev out and returns how many subscribers received it.
func (h *Hub) Publish(ev ServerEvent) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return 0
	}
	delivered := 0
	for _, sub := range h.subs {
		select {
		case sub.ch <- ev:
			delivered++
		default:
			n := sub.lagged.Add(1)
			h.logger.Warn("subscriber_lagged",
				"subscription_id", sub.id,
				"event_type", string(ev.EventType()),
				"lagged", n,
			)
		}
	}
	return delivered
}

func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Register tracks a live session.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.ID] = s
	h.logger.Info("session_registered", "session_id", s.ID)
}

func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s.ID]; !ok {
		return
	}
	delete(h.sessions, s.ID)
	h.logger.Info("session_unregistered", "session_id", s.ID)
}

func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Close ends every subscription. Sessions see their outbound stream end and shut down.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		sub.once.Do(func() { close(sub.ch) })
		delete(h.subs, id)
	}
	h.logger.Info("hub_closed")
}
