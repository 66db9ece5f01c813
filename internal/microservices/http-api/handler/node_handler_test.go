package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"mycelhub/internal/microservices/http-api/dto"
	"mycelhub/internal/microservices/http-api/handler"
	"mycelhub/internal/microservices/http-api/service"
	"mycelhub/internal/peerstore"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func stringPtr(s string) *string { return &s }

// --- MOCK SERVICE ---

type MockNodeService struct {
	mock.Mock
}

func (m *MockNodeService) Peers(ctx context.Context) ([]peerstore.Record, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]peerstore.Record), args.Error(1)
}

func (m *MockNodeService) Stats(ctx context.Context) (*service.NodeStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.NodeStats), args.Error(1)
}

func (m *MockNodeService) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- SETUP ---

func setupRouter(svc *MockNodeService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := handler.NewNodeHandler(svc)
	h.RegisterRoutes(r.Group("/api"))
	r.GET("/health", h.Health)
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestNodeHandler_Peers(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc := new(MockNodeService)
		svc.On("Peers", mock.Anything).Return([]peerstore.Record{
			{Info: peerstore.PeerInfo{ID: "12D3KooWA", Name: stringPtr("alice"), Addresses: []string{"/ip4/10.0.0.1/tcp/9000"}},
				Reputation: peerstore.Reputation{Score: 0.7}},
			{Info: peerstore.PeerInfo{ID: "12D3KooWB"}, Reputation: peerstore.Reputation{Score: 0.5}},
		}, nil)

		w := get(setupRouter(svc), "/api/peers")
		require.Equal(t, http.StatusOK, w.Code)

		var resp dto.PeersResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Count)
		assert.Equal(t, "alice", *resp.Peers[0].Name)
		assert.Equal(t, 0.7, resp.Peers[0].Reputation)
		assert.Equal(t, []string{}, resp.Peers[1].Addresses)
		svc.AssertExpectations(t)
	})

	t.Run("StoreError", func(t *testing.T) {
		svc := new(MockNodeService)
		svc.On("Peers", mock.Anything).Return(nil, errors.New("redis down"))

		w := get(setupRouter(svc), "/api/peers")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "redis down")
	})
}

func TestNodeHandler_Stats(t *testing.T) {
	svc := new(MockNodeService)
	svc.On("Stats", mock.Anything).Return(&service.NodeStats{
		PeerID:        "12D3KooWLocal",
		NodeName:      "node-a",
		PeerCount:     4,
		MessageCount:  17,
		UptimeSeconds: 120,
		Sessions:      2,
	}, nil)

	w := get(setupRouter(svc), "/api/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.StatsResponse{
		PeerID:        "12D3KooWLocal",
		NodeName:      "node-a",
		PeerCount:     4,
		MessageCount:  17,
		UptimeSeconds: 120,
		Sessions:      2,
	}, resp)
}

func TestNodeHandler_Health(t *testing.T) {
	t.Run("Healthy", func(t *testing.T) {
		svc := new(MockNodeService)
		svc.On("Health", mock.Anything).Return(nil)

		w := get(setupRouter(svc), "/health")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	})

	t.Run("Degraded", func(t *testing.T) {
		svc := new(MockNodeService)
		svc.On("Health", mock.Anything).Return(errors.New("peer store: connection refused"))

		w := get(setupRouter(svc), "/health")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "degraded")
	})
}
