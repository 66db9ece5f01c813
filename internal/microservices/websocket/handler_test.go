package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mycelhub/internal/network"
	"mycelhub/internal/peerstore"
	"mycelhub/internal/protocol"
)

type relayFixture struct {
	net     *network.Loopback
	store   *peerstore.MemoryStore
	hub     *Hub
	handler *Handler
	server  *httptest.Server
}

func setupRelay(t *testing.T) *relayFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &relayFixture{
		net:   network.NewLoopback("12D3KooWLocal", 64, discardLogger()),
		store: peerstore.NewMemoryStore(),
		hub:   NewHub(64, discardLogger()),
	}
	counters := NewNodeCounters(time.Now())
	translator := NewTranslator(f.net, f.store, f.hub, counters, Identity{PeerID: "12D3KooWLocal", Name: "node-a"}, discardLogger())
	f.handler = NewHandler(f.hub, translator, f.store, DefaultSessionConfig(), nil, discardLogger())

	r := gin.New()
	r.GET("/ws", f.handler.ServeWS)
	f.server = httptest.NewServer(r)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = f.handler.Shutdown(ctx)
		f.server.Close()
	})
	return f
}

func (f *relayFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) ServerEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, mt)
	ev, err := DecodeEvent(data)
	require.NoError(t, err)
	return ev
}

func TestHandler_NewClientGetsPeersList(t *testing.T) {
	f := setupRelay(t)
	require.NoError(t, f.store.UpsertPeer(context.Background(), peerstore.PeerInfo{
		ID:        "12D3KooWRemote",
		Name:      strPtr("bob"),
		Addresses: []string{"/ip4/10.0.0.2/tcp/9000"},
	}))

	conn := f.dial(t)
	list, ok := readEvent(t, conn).(PeersList)
	require.True(t, ok)
	require.Len(t, list.Peers, 1)
	assert.Equal(t, "12D3KooWRemote", list.Peers[0].ID)
	assert.Equal(t, peerstore.DefaultReputation, list.Peers[0].Reputation)
}

func TestHandler_ChatEchoReachesEveryClient(t *testing.T) {
	f := setupRelay(t)

	a := f.dial(t)
	b := f.dial(t)
	readEvent(t, a) // peers_list
	readEvent(t, b)
	require.Eventually(t, func() bool { return f.hub.SubscriberCount() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{"type":"send_chat","content":"hello mesh"}`)))

	fromA, ok := readEvent(t, a).(ChatMessage)
	require.True(t, ok)
	fromB, ok := readEvent(t, b).(ChatMessage)
	require.True(t, ok)

	assert.Equal(t, fromA.ID, fromB.ID)
	assert.Equal(t, "hello mesh", fromB.Content)
	assert.Equal(t, "12D3KooWLocal", fromB.From)
	assert.Equal(t, "node-a", fromB.FromName)

	published := f.net.Published()
	require.Len(t, published, 1)
	assert.Equal(t, protocol.TopicChat, published[0].Topic)

	msg, err := protocol.Decode(published[0].Data)
	require.NoError(t, err)
	assert.Equal(t, fromA.ID, msg.(*protocol.Message).ID.String())
}

func TestHandler_BadCommandsAreSkipped(t *testing.T) {
	f := setupRelay(t)
	conn := f.dial(t)
	readEvent(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"cast_vote","proposal_id":"not-a-uuid","vote":"yes"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"get_stats"}`)))

	stats, ok := readEvent(t, conn).(Stats)
	require.True(t, ok)
	assert.Equal(t, 0, stats.PeerCount)
	assert.Empty(t, f.net.Published())
}

func TestHandler_ShutdownClosesSessions(t *testing.T) {
	f := setupRelay(t)
	conn := f.dial(t)
	readEvent(t, conn)
	require.Eventually(t, func() bool { return f.handler.SessionCount() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.handler.Shutdown(ctx))
	assert.Equal(t, 0, f.handler.SessionCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	resp, err := http.Get(f.server.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"empty list allows all", nil, "http://evil.example", true},
		{"wildcard", []string{"*"}, "http://evil.example", true},
		{"listed origin", []string{"http://localhost:3000"}, "http://localhost:3000", true},
		{"unlisted origin", []string{"http://localhost:3000"}, "http://evil.example", false},
		{"no origin header", []string{"http://localhost:3000"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, originChecker(tt.allowed)(req))
		})
	}
}
