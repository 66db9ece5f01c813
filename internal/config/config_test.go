package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"HTTP_PORT", "NETWORK_BACKEND", "STORE_BACKEND", "LOG_LEVEL", "P2P_BOOTSTRAP_PEERS", "CORS_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg, err := loadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, NetworkGossipsub, cfg.NetworkBackend)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.P2PBootstrapPeers)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("NETWORK_BACKEND", "nats")
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("P2P_BOOTSTRAP_PEERS", " /ip4/10.0.0.1/tcp/9000/p2p/QmA , ,/ip4/10.0.0.2/tcp/9000/p2p/QmB")
	t.Setenv("CLIENT_RATE_LIMIT", "2.5")
	t.Setenv("P2P_MDNS_ENABLED", "false")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := loadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.HTTPPort)
	assert.Equal(t, NetworkNATS, cfg.NetworkBackend)
	assert.Equal(t, StoreRedis, cfg.StoreBackend)
	assert.Equal(t, []string{"/ip4/10.0.0.1/tcp/9000/p2p/QmA", "/ip4/10.0.0.2/tcp/9000/p2p/QmB"}, cfg.P2PBootstrapPeers)
	assert.Equal(t, 2.5, cfg.ClientRateLimit)
	assert.False(t, cfg.P2PMDNSEnabled)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv_BadValues(t *testing.T) {
	tests := map[string]string{
		"HTTP_PORT":         "eighty",
		"P2P_MDNS_ENABLED":  "maybe",
		"SHUTDOWN_TIMEOUT":  "soon",
		"CLIENT_RATE_LIMIT": "fast",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := loadFromEnv()
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("NETWORK_BACKEND", "")
	base, err := loadFromEnv()
	require.NoError(t, err)

	bad := *base
	bad.HTTPPort = 0
	bad.NetworkBackend = "carrier-pigeon"
	bad.StoreBackend = "floppy"
	bad.LogFormat = "xml"

	err = bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP_PORT")
	assert.Contains(t, err.Error(), "NETWORK_BACKEND")
	assert.Contains(t, err.Error(), "STORE_BACKEND")
	assert.Contains(t, err.Error(), "LOG_FORMAT")
}
