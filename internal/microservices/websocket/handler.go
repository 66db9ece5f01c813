package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// HTTP upgrade handler to WebSocket connections

type Handler struct {
	hub        *Hub
	dispatcher Dispatcher
	peers      PeerLister
	cfg        SessionConfig
	upgrader   websocket.Upgrader
	logger     *slog.Logger

	ctx      context.Context // cancelled by Shutdown, ends every session
	cancel   context.CancelFunc
	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
}

// NewHandler builds the /ws endpoint. An empty allowedOrigins list, or one that
// contains "*", accepts every origin.
func NewHandler(hub *Hub, dispatcher Dispatcher, peers PeerLister, cfg SessionConfig, allowedOrigins []string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		hub:        hub,
		dispatcher: dispatcher,
		peers:      peers,
		cfg:        cfg,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || len(set) == 0 || set[origin]
	}
}

// ServeWS upgrades the request and runs the session until it ends.
func (h *Handler) ServeWS(c *gin.Context) {
	h.mu.Lock()
	if h.draining {
		h.mu.Unlock()
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Server is shutting down"})
		return
	}
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already answered with an HTTP error
		h.logger.Warn("websocket_upgrade_failed",
			"remote_addr", c.Request.RemoteAddr,
			"error", err,
		)
		return
	}

	session := NewSession(uuid.NewString(), conn, h.hub, h.dispatcher, h.peers, h.cfg, h.logger)
	session.Run(h.ctx)
}

// Shutdown ends all sessions and waits for them, or for ctx.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.draining = true
	h.mu.Unlock()
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) SessionCount() int { return h.hub.SessionCount() }
