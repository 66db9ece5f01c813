package network

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gossipTestTopic = "/mycelial/test/chat"

func startGossip(t *testing.T, bootstrap ...string) *GossipNetwork {
	t.Helper()
	if testing.Short() {
		t.Skip("starts libp2p hosts")
	}
	g, err := NewGossipNetwork(context.Background(), GossipConfig{
		ListenPort:     0,
		BootstrapPeers: bootstrap,
		EventBuffer:    64,
	}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func loopbackAddr(t *testing.T, g *GossipNetwork) string {
	t.Helper()
	for _, addr := range g.ListenAddrs() {
		if strings.HasPrefix(addr, "/ip4/127.0.0.1/") {
			return addr
		}
	}
	t.Fatalf("no loopback listen address in %v", g.ListenAddrs())
	return ""
}

func TestGossipNetwork_TwoHosts(t *testing.T) {
	ctx := context.Background()
	a := startGossip(t)
	b := startGossip(t, loopbackAddr(t, a))

	joined := awaitEvent(t, a.Events(), 15*time.Second, peerEvent(EventPeerJoined, b.LocalPeerID()))
	assert.NotEmpty(t, joined.Peer.Addresses)
	awaitEvent(t, b.Events(), 15*time.Second, peerEvent(EventPeerJoined, a.LocalPeerID()))

	require.NoError(t, a.Subscribe(ctx, gossipTestTopic))
	require.NoError(t, b.Subscribe(ctx, gossipTestTopic))
	require.NoError(t, b.Subscribe(ctx, gossipTestTopic))

	var got Event
	require.Eventually(t, func() bool {
		if err := a.Publish(ctx, gossipTestTopic, []byte("hello mesh")); err != nil {
			return false
		}
		var ok bool
		got, ok = pollMessage(b.Events())
		return ok
	}, 20*time.Second, 250*time.Millisecond)

	assert.Equal(t, gossipTestTopic, got.Topic)
	assert.Equal(t, a.LocalPeerID(), got.From)
	assert.Equal(t, []byte("hello mesh"), got.Data)

	assert.Empty(t, messagesWithin(a.Events(), 500*time.Millisecond), "host received its own publication")

	require.NoError(t, b.Close())
	awaitEvent(t, a.Events(), 15*time.Second, peerEvent(EventPeerLeft, b.LocalPeerID()))
}

func TestGossipNetwork_AfterClose(t *testing.T) {
	ctx := context.Background()
	g := startGossip(t)
	require.NoError(t, g.Close())

	assert.ErrorIs(t, g.Subscribe(ctx, gossipTestTopic), ErrClosed)
	assert.ErrorIs(t, g.Publish(ctx, gossipTestTopic, []byte("x")), ErrClosed)
	g.HandlePeerFound(peer.AddrInfo{ID: peer.ID("someone-else")})

	_, ok := <-g.Events()
	assert.False(t, ok)
	assert.NoError(t, g.Close())
}

func TestGossipNetwork_SubscribeRacesClose(t *testing.T) {
	ctx := context.Background()
	g := startGossip(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = g.Subscribe(ctx, fmt.Sprintf("/mycelial/test/race-%d", i))
			g.HandlePeerFound(peer.AddrInfo{ID: peer.ID(fmt.Sprintf("peer-%d", i))})
		}(i)
	}
	require.NoError(t, g.Close())
	wg.Wait()

	for range g.Events() {
	}
	assert.ErrorIs(t, g.Subscribe(ctx, "/mycelial/test/late"), ErrClosed)
}
