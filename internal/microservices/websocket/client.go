package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// One dashboard connection.
// The read pump owns the inbound half, the write pump owns the outbound half.

const ( // ping pong(2-way heartbeat) to keep connection alive
	WriteWait      = 10 * time.Second    // max time to write a frame to the peer
	PongWait       = 60 * time.Second    // no pong within this window = dead connection
	PingPeriod     = (PongWait * 9) / 10 // ping before pong wait expires
	MaxMessageSize = 64 * 1024           // largest inbound frame accepted
)

const initialPeersTimeout = 5 * time.Second

// Conn is the part of *websocket.Conn a session uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

type SessionState int32

const (
	StateConnecting SessionState = iota
	StateActive
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type SessionConfig struct {
	RateLimit      float64 // inbound frames per second
	RateBurst      int
	MaxMessageSize int64
	DirectBuffer   int // session-local notices queued for the write pump
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		RateLimit:      10,
		RateBurst:      20,
		MaxMessageSize: MaxMessageSize,
		DirectBuffer:   16,
		WriteWait:      WriteWait,
		PongWait:       PongWait,
		PingPeriod:     PingPeriod,
	}
}

func (c SessionConfig) withDefaults() SessionConfig {
	d := DefaultSessionConfig()
	if c.RateLimit <= 0 {
		c.RateLimit = d.RateLimit
	}
	if c.RateBurst <= 0 {
		c.RateBurst = d.RateBurst
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	if c.DirectBuffer <= 0 {
		c.DirectBuffer = d.DirectBuffer
	}
	if c.WriteWait <= 0 {
		c.WriteWait = d.WriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = (c.PongWait * 9) / 10
	}
	return c
}

type Session struct {
	ID         string
	conn       Conn
	hub        *Hub
	dispatcher Dispatcher
	peers      PeerLister
	cfg        SessionConfig
	limiter    *rate.Limiter // refills over time, Allow consumes a token
	direct     chan ServerEvent
	state      atomic.Int32
	logger     *slog.Logger
}

// NewSession builds a session over an upgraded connection. Run drives it.
func NewSession(id string, conn Conn, hub *Hub, dispatcher Dispatcher, peers PeerLister, cfg SessionConfig, logger *slog.Logger) *Session {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		ID:         id,
		conn:       conn,
		hub:        hub,
		dispatcher: dispatcher,
		peers:      peers,
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		direct:     make(chan ServerEvent, cfg.DirectBuffer),
		logger:     logger.With("session_id", id),
	}
}

func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

func (s *Session) setState(st SessionState) {
	s.state.Store(int32(st))
	s.logger.Debug("session_state", "state", st.String())
}

// Notify queues an event for this session only. It never blocks; false means the
// lane was full and the event was dropped.
func (s *Session) Notify(ev ServerEvent) bool {
	select {
	case s.direct <- ev:
		return true
	default:
		s.logger.Warn("direct_event_dropped", "event_type", string(ev.EventType()))
		return false
	}
}

// Run serves the session until either pump ends, then releases the socket and
// the subscription. The returned error says why the session ended.
func (s *Session) Run(ctx context.Context) error {
	defer s.setState(StateClosed)

	sub, err := s.hub.Subscribe()
	if err != nil {
		s.conn.Close()
		return fmt.Errorf("subscribe session %s: %w", s.ID, err)
	}
	defer sub.Close()

	s.hub.Register(s)
	defer s.hub.Unregister(s)
	s.logger.Info("session_opened")

	s.sendInitialPeers(ctx)
	s.setState(StateActive)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readPump(gctx) })
	g.Go(func() error { return s.writePump(gctx, sub) })
	err = g.Wait()

	s.setState(StateClosing)
	if cerr := s.conn.Close(); cerr != nil && !errors.Is(cerr, websocket.ErrCloseSent) {
		s.logger.Debug("session_conn_close_failed", "error", cerr)
	}

	switch {
	case errors.Is(err, ErrSessionClosed), errors.Is(err, context.Canceled):
		s.logger.Info("session_closed", "reason", err.Error())
	default:
		s.logger.Warn("session_ended", "error", err)
	}
	return err
}

// sendInitialPeers is best effort: failures are logged and the session goes on.
func (s *Session) sendInitialPeers(ctx context.Context) {
	lctx, cancel := context.WithTimeout(ctx, initialPeersTimeout)
	defer cancel()
	records, err := s.peers.ListPeers(lctx)
	if err != nil {
		s.logger.Warn("initial_peers_list_failed", "error", err)
		return
	}
	if err := s.writeEvent(NewPeersList(records)); err != nil {
		s.logger.Warn("initial_peers_send_failed", "error", err)
	}
}

// readPump always returns a non-nil error so the group cancels the write pump.
func (s *Session) readPump(ctx context.Context) error {
	s.conn.SetReadLimit(s.cfg.MaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		if ctx.Err() != nil {
			return nil
		}
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	// unblock ReadMessage once the write pump is gone
	stop := context.AfterFunc(ctx, func() {
		s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		mt, data, err := s.conn.ReadMessage()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				s.logger.Info("client_closed_connection")
				return ErrSessionClosed
			}
			return fmt.Errorf("read: %w", err)
		}
		if mt != websocket.TextMessage {
			continue
		}

		if !s.limiter.Allow() {
			s.logger.Warn("rate_limit_exceeded")
			s.Notify(ErrorNotice{Message: "Rate limit exceeded"})
			continue
		}
		s.handleFrame(ctx, data)
	}
}

func (s *Session) handleFrame(ctx context.Context, data []byte) {
	cmd, err := ParseCommand(data)
	if err != nil {
		s.logger.Warn("malformed_command", "error", err)
		return
	}
	s.logger.Debug("command_received", "command_type", string(cmd.CommandType()))

	if err := s.dispatcher.Dispatch(ctx, cmd); err != nil {
		s.logDispatchError(cmd, err)
	}
}

// Dispatch failures are never reported to the client; they are logged and dropped.
func (s *Session) logDispatchError(cmd ClientCommand, err error) {
	attrs := []any{"command_type", string(cmd.CommandType()), "error", err}

	var invalid *InvalidIdentifierError
	var pubErr *PublishError
	switch {
	case errors.As(err, &invalid):
		s.logger.Warn("invalid_identifier", attrs...)
	case errors.As(err, &pubErr):
		s.logger.Error("publish_failed", append(attrs, "topic", pubErr.Topic)...)
	default:
		s.logger.Error("command_failed", attrs...)
	}
}

// writePump always returns a non-nil error so the group cancels the read pump.
func (s *Session) writePump(ctx context.Context, sub *Subscription) error {
	ticker := time.NewTicker(s.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.writeClose(websocket.CloseNormalClosure)
			return ctx.Err()
		case ev, ok := <-sub.Events():
			if !ok {
				s.writeClose(websocket.CloseGoingAway)
				return ErrHubClosed
			}
			if err := s.writeEvent(ev); err != nil {
				return fmt.Errorf("write %s: %w", ev.EventType(), err)
			}
		case ev := <-s.direct:
			if err := s.writeEvent(ev); err != nil {
				return fmt.Errorf("write %s: %w", ev.EventType(), err)
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

func (s *Session) writeEvent(ev ServerEvent) error {
	data, err := EncodeEvent(ev)
	if err != nil {
		// an unencodable event is skipped, the socket is still fine
		s.logger.Error("event_encode_failed", "event_type", string(ev.EventType()), "error", err)
		return nil
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) writeClose(code int) {
	msg := websocket.FormatCloseMessage(code, "")
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.cfg.WriteWait)); err != nil {
		s.logger.Debug("close_frame_failed", "error", err)
	}
}
