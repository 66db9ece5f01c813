package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mycelhub/internal/config"
	"mycelhub/internal/microservices/gossip"
	"mycelhub/internal/microservices/http-api/handler"
	"mycelhub/internal/microservices/http-api/middleware"
	"mycelhub/internal/microservices/http-api/service"
	"mycelhub/internal/microservices/websocket"
	"mycelhub/internal/network"
	"mycelhub/internal/peerstore"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("relay_server_failed", "error", err.Error())
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	net, err := openNetwork(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer net.Close()

	self := websocket.Identity{PeerID: net.LocalPeerID(), Name: cfg.NodeName}
	logger.Info("starting_relay_server",
		"peer_id", self.PeerID,
		"node_name", self.Name,
		"network", cfg.NetworkBackend,
		"store", cfg.StoreBackend,
		"http_port", cfg.HTTPPort,
	)

	hub := websocket.NewHub(cfg.EventBufferSize, logger.With("component", "hub"))
	defer hub.Close()
	counters := websocket.NewNodeCounters(time.Now())

	bridge := gossip.NewBridge(net, store, hub, counters, logger.With("component", "gossip_bridge"))
	bridgeDone := make(chan error, 1)
	go func() { bridgeDone <- bridge.Run(ctx) }()

	translator := websocket.NewTranslator(net, store, hub, counters, self, logger.With("component", "translator"))

	sessionCfg := websocket.DefaultSessionConfig()
	sessionCfg.RateLimit = cfg.ClientRateLimit
	sessionCfg.RateBurst = cfg.ClientRateBurst
	sessionCfg.MaxMessageSize = int64(cfg.MaxMessageSize)
	wsHandler := websocket.NewHandler(hub, translator, store, sessionCfg, cfg.CORSOrigins, logger.With("component", "websocket"))

	nodeHandler := handler.NewNodeHandler(service.NewNodeService(store, hub, counters, self))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger.With("component", "http")))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.GET("/ws", wsHandler.ServeWS)
	r.GET("/health", nodeHandler.Health)
	nodeHandler.RegisterRoutes(r.Group("/api"))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}
	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	logger.Info("relay_server_listening", "addr", srv.Addr)

	select {
	case <-ctx.Done():
		logger.Info("received_shutdown_signal")
	case err := <-errChan:
		return fmt.Errorf("http server: %w", err)
	case err := <-bridgeDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("gossip bridge: %w", err)
		}
		logger.Warn("gossip_bridge_exited")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// sessions are hijacked connections, srv.Shutdown does not wait for them
	if err := wsHandler.Shutdown(shutdownCtx); err != nil {
		logger.Warn("websocket_drain_incomplete", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http_shutdown_incomplete", "error", err)
	}
	logger.Info("server_stopped_gracefully", "sessions", hub.SessionCount())
	return nil
}

func openStore(cfg *config.Config) (peerstore.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		addr := strings.TrimPrefix(cfg.RedisURL, "redis://")
		addr = strings.TrimPrefix(addr, "rediss://")
		return peerstore.NewRedisStore(addr, cfg.RedisPassword)
	case config.StorePostgres:
		return peerstore.OpenPostgresStore(cfg.DatabaseURL)
	default:
		return peerstore.NewMemoryStore(), nil
	}
}

func openNetwork(ctx context.Context, cfg *config.Config, logger *slog.Logger) (network.Network, error) {
	logger = logger.With("component", "network")
	switch cfg.NetworkBackend {
	case config.NetworkNATS:
		return network.DialNATS(ctx, network.NATSConfig{
			URL:          cfg.NATSURL,
			LocalPeerID:  nodeID(cfg),
			NodeName:     cfg.NodeName,
			EventBuffer:  cfg.EventBufferSize,
			ConnectTries: uint(cfg.NATSConnectTries),
		}, logger)
	case config.NetworkLoopback:
		return network.NewLoopback(nodeID(cfg), cfg.EventBufferSize, logger), nil
	default:
		g, err := network.NewGossipNetwork(ctx, network.GossipConfig{
			ListenPort:     cfg.P2PListenPort,
			BootstrapPeers: cfg.P2PBootstrapPeers,
			EnableMDNS:     cfg.P2PMDNSEnabled,
			EventBuffer:    cfg.EventBufferSize,
		}, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("p2p_listening", "addrs", g.ListenAddrs())
		return g, nil
	}
}

func nodeID(cfg *config.Config) string {
	if cfg.NodeID != "" {
		return cfg.NodeID
	}
	return uuid.NewString()
}
