package network

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func nextEvent(t *testing.T, n *Loopback) Event {
	t.Helper()
	select {
	case ev, ok := <-n.Events():
		require.True(t, ok, "event stream closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for network event")
		return Event{}
	}
}

func TestLoopback_RecordsWithoutRedelivery(t *testing.T) {
	ctx := context.Background()
	node := NewLoopback("self", 8, discardLogger())
	require.NoError(t, node.Subscribe(ctx, "/t"))
	require.NoError(t, node.Publish(ctx, "/t", []byte("x")))

	assert.Equal(t, []Published{{Topic: "/t", Data: []byte("x")}}, node.Published())
	assert.Equal(t, []string{"/t"}, node.Subscribed())
	assert.Empty(t, node.Events())

	require.NoError(t, node.Close())
	assert.ErrorIs(t, node.Publish(ctx, "/t", nil), ErrClosed)
	assert.ErrorIs(t, node.Subscribe(ctx, "/t"), ErrClosed)
	assert.NoError(t, node.Close())
}

func TestLoopback_CancelledContext(t *testing.T) {
	node := NewLoopback("self", 8, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, node.Publish(ctx, "/t", nil), context.Canceled)
	assert.Empty(t, node.Published())
}

func TestMesh_DeliversToSubscribedNeighbours(t *testing.T) {
	ctx := context.Background()
	mesh := NewMesh()
	a := mesh.Join(Peer{ID: "a"}, 8, discardLogger())
	b := mesh.Join(Peer{ID: "b", Addresses: []string{"mem://b"}}, 8, discardLogger())
	c := mesh.Join(Peer{ID: "c"}, 8, discardLogger())

	// churn from the joins
	assert.Equal(t, EventPeerJoined, nextEvent(t, a).Kind)
	assert.Equal(t, EventPeerJoined, nextEvent(t, a).Kind)
	nextEvent(t, b)
	nextEvent(t, b)
	nextEvent(t, c)
	nextEvent(t, c)

	require.NoError(t, b.Subscribe(ctx, "/chat"))
	require.NoError(t, a.Publish(ctx, "/chat", []byte("hi")))

	ev := nextEvent(t, b)
	assert.Equal(t, EventMessage, ev.Kind)
	assert.Equal(t, "a", ev.From)
	assert.Equal(t, "/chat", ev.Topic)
	assert.Equal(t, []byte("hi"), ev.Data)

	// c never subscribed, a is the publisher
	assert.Empty(t, c.Events())
	assert.Empty(t, a.Events())

	require.NoError(t, b.Close())
	left := nextEvent(t, a)
	assert.Equal(t, EventPeerLeft, left.Kind)
	assert.Equal(t, "b", left.Peer.ID)
}

func TestLoopback_FullBufferDrops(t *testing.T) {
	node := NewLoopback("self", 1, discardLogger())
	node.Inject(Event{Kind: EventMessage, Topic: "/t"})
	node.Inject(Event{Kind: EventMessage, Topic: "/t"})
	assert.Len(t, node.Events(), 1)
}

func TestSubjectForTopic(t *testing.T) {
	assert.Equal(t, "mycelial.1_0_0.chat", SubjectForTopic("/mycelial/1.0.0/chat"))
	assert.Equal(t, "a.b", SubjectForTopic("a/b"))
	assert.Equal(t, "x_y", SubjectForTopic("x*y"))
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "message", EventMessage.String())
	assert.Equal(t, "peer_joined", EventPeerJoined.String())
	assert.Equal(t, "peer_left", EventPeerLeft.String())
	assert.Equal(t, "unknown", EventKind(42).String())
}
