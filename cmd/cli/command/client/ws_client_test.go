package client

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	relay "mycelhub/internal/microservices/websocket"
	"mycelhub/internal/network"
	"mycelhub/internal/peerstore"
)

func startRelay(t *testing.T) (*httptest.Server, *network.Loopback, *relay.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	net := network.NewLoopback("12D3KooWLocal", 64, logger)
	store := peerstore.NewMemoryStore()
	hub := relay.NewHub(64, logger)
	translator := relay.NewTranslator(net, store, hub, relay.NewNodeCounters(time.Now()), relay.Identity{PeerID: "12D3KooWLocal", Name: "node-a"}, logger)
	h := relay.NewHandler(hub, translator, store, relay.DefaultSessionConfig(), nil, logger)

	r := gin.New()
	r.GET("/ws", h.ServeWS)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		h.Shutdown(ctx)
		srv.Close()
	})
	return srv, net, hub
}

func TestWSURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"localhost:8080", "ws://localhost:8080/ws", false},
		{"http://localhost:8080", "ws://localhost:8080/ws", false},
		{"https://relay.example", "wss://relay.example/ws", false},
		{"ws://relay.example/custom", "ws://relay.example/custom", false},
		{"ftp://relay.example", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := wsURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWSClient_RequestGetsEcho(t *testing.T) {
	srv, net, _ := startRelay(t)

	ws, err := Dial(srv.URL)
	require.NoError(t, err)
	defer ws.Close()

	ev, err := ws.Request(relay.CreateCreditLine{Debtor: "12D3KooWBob", Limit: 100}, relay.TypeCreditLine, 2*time.Second)
	require.NoError(t, err)

	line := ev.(relay.CreditLine)
	assert.Equal(t, "12D3KooWLocal", line.Creditor)
	assert.Equal(t, "12D3KooWBob", line.Debtor)
	assert.Equal(t, 0.0, line.Balance)
	assert.Len(t, net.Published(), 1)
}

func TestWSClient_RequestWithoutEchoTimesOut(t *testing.T) {
	srv, net, _ := startRelay(t)

	ws, err := Dial(srv.URL)
	require.NoError(t, err)
	defer ws.Close()

	_, err = ws.Request(relay.CastVote{ProposalID: "not-a-uuid", Vote: "yes"}, relay.TypeVoteCast, 300*time.Millisecond)
	assert.ErrorIs(t, err, ErrNoEcho)
	assert.Empty(t, net.Published())
}

func TestWSClient_RequestSkipsOtherBroadcasts(t *testing.T) {
	srv, _, hub := startRelay(t)

	ws, err := Dial(srv.URL)
	require.NoError(t, err)
	defer ws.Close()

	first, err := ws.Next(time.Now().Add(2 * time.Second))
	require.NoError(t, err)
	require.Equal(t, relay.TypePeersList, first.EventType())

	hub.Publish(relay.CreditLine{ID: "other", Creditor: "12D3KooWRemote", Debtor: "12D3KooWCarol", Limit: 5})
	hub.Publish(relay.Stats{PeerCount: 7})

	ev, err := ws.Request(relay.CreateCreditLine{Debtor: "12D3KooWBob", Limit: 100}, relay.TypeCreditLine, 2*time.Second)
	require.NoError(t, err)

	line := ev.(relay.CreditLine)
	assert.NotEqual(t, "other", line.ID)
	assert.Equal(t, "12D3KooWBob", line.Debtor)
	assert.Equal(t, 100.0, line.Limit)
}

func TestIsEcho(t *testing.T) {
	to := "p2"
	memo := "rent"
	proposal := "4b0e3c1e-0a8e-4d7b-9c49-3d0c77a0e6f1"

	tests := []struct {
		name string
		cmd  relay.ClientCommand
		ev   relay.ServerEvent
		want bool
	}{
		{"chat", relay.SendChat{Content: "hi"}, relay.ChatMessage{Content: "hi"}, true},
		{"chat other content", relay.SendChat{Content: "hi"}, relay.ChatMessage{Content: "yo"}, false},
		{"chat direct vs broadcast", relay.SendChat{Content: "hi", To: &to}, relay.ChatMessage{Content: "hi"}, false},
		{"vouch", relay.SendVouch{Vouchee: "p2", Weight: 0.3}, relay.VouchRequest{Vouchee: "p2", Weight: 0.3}, true},
		{"vouch other weight", relay.SendVouch{Vouchee: "p2", Weight: 0.3}, relay.VouchRequest{Vouchee: "p2", Weight: 0.4}, false},
		{"respond", relay.RespondVouch{RequestID: "r1", Accept: true}, relay.VouchAck{RequestID: "r1", Accepted: true}, true},
		{"respond other request", relay.RespondVouch{RequestID: "r1", Accept: true}, relay.VouchAck{RequestID: "r2", Accepted: true}, false},
		{"transfer", relay.TransferCredit{To: "p2", Amount: 3, Memo: &memo}, relay.CreditTransfer{To: "p2", Amount: 3, Memo: &memo}, true},
		{"transfer without memo", relay.TransferCredit{To: "p2", Amount: 3, Memo: &memo}, relay.CreditTransfer{To: "p2", Amount: 3}, false},
		{"proposal", relay.CreateProposal{Title: "t", Description: "d", ProposalType: "text"},
			relay.Proposal{Title: "t", Description: "d", ProposalType: "text"}, true},
		{"proposal other title", relay.CreateProposal{Title: "t", Description: "d", ProposalType: "text"},
			relay.Proposal{Title: "u", Description: "d", ProposalType: "text"}, false},
		{"vote maps text", relay.CastVote{ProposalID: proposal, Vote: "yes"}, relay.VoteCast{ProposalID: proposal, Vote: "For"}, true},
		{"vote other choice", relay.CastVote{ProposalID: proposal, Vote: "yes"}, relay.VoteCast{ProposalID: proposal, Vote: "Against"}, false},
		{"resource", relay.ReportResource{ResourceType: "compute", Amount: 4, Unit: "cores"},
			relay.ResourceContribution{ResourceType: "compute", Amount: 4, Unit: "cores"}, true},
		{"resource other unit", relay.ReportResource{ResourceType: "compute", Amount: 4, Unit: "cores"},
			relay.ResourceContribution{ResourceType: "compute", Amount: 4, Unit: "gpus"}, false},
		{"wrong event type", relay.CreateCreditLine{Debtor: "p2", Limit: 1}, relay.ChatMessage{}, false},
		{"stats", relay.GetStats{}, relay.Stats{PeerCount: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isEcho(tt.cmd, tt.ev))
		})
	}
}

func TestWSClient_WatchStopsOnCancel(t *testing.T) {
	srv, _, _ := startRelay(t)

	ws, err := Dial(srv.URL)
	require.NoError(t, err)
	defer ws.Close()

	ctx, cancel := context.WithCancel(context.Background())
	seen := make(chan relay.ServerEvent, 4)
	done := make(chan error, 1)
	go func() { done <- ws.Watch(ctx, func(ev relay.ServerEvent) { seen <- ev }) }()

	select {
	case ev := <-seen:
		assert.Equal(t, relay.TypePeersList, ev.EventType())
	case <-time.After(2 * time.Second):
		t.Fatal("no initial peers list")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestFormatEvent(t *testing.T) {
	color.NoColor = true
	name := "alice"
	memo := "rent"

	tests := []struct {
		ev   relay.ServerEvent
		want string
	}{
		{relay.PeerJoined{PeerID: "p1", Name: &name}, "+ peer p1 (alice) joined"},
		{relay.PeerLeft{PeerID: "p1"}, "- peer p1 left"},
		{relay.Stats{PeerCount: 2, MessageCount: 9, UptimeSeconds: 90}, "peers=2 messages=9 uptime=1m30s"},
		{relay.ErrorNotice{Message: "Rate limit exceeded"}, "error: Rate limit exceeded"},
		{relay.CreditTransfer{From: "a", To: "b", Amount: 5, Memo: &memo}, "transfer 5.00 a -> b (rent)"},
		{relay.VouchAck{RequestID: "r1", Accepted: false}, "vouch r1 rejected"},
		{relay.VoteCast{Vote: "For", ProposalID: "x", Voter: "a"}, "vote For on x by a"},
	}
	for _, tt := range tests {
		t.Run(string(tt.ev.EventType()), func(t *testing.T) {
			assert.Equal(t, tt.want, FormatEvent(tt.ev))
		})
	}
}
