// Package network adapts topic publish/subscribe transports to the relay. Every
// backend shares one property with gossipsub: a node never receives its own
// publications back.
package network

import (
	"context"
	"errors"
	"log/slog"
)

var ErrClosed = errors.New("network closed")

type EventKind int

const (
	EventMessage EventKind = iota
	EventPeerJoined
	EventPeerLeft
)

func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventPeerJoined:
		return "peer_joined"
	case EventPeerLeft:
		return "peer_left"
	default:
		return "unknown"
	}
}

// Peer is the identity a transport can tell us about a remote node.
type Peer struct {
	ID        string
	Name      *string
	Addresses []string
}

// Event is either an inbound topic message or peer churn.
type Event struct {
	Kind  EventKind
	Topic string
	From  string
	Data  []byte
	Peer  Peer
}

// Publisher is the slice of the network the command translator needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, data []byte) error
	Subscribe(ctx context.Context, topic string) error
}

// Network is a running transport.
type Network interface {
	Publisher
	LocalPeerID() string
	Events() <-chan Event
	Close() error
}

// emit hands ev to the consumer without ever blocking the transport's reader.
func emit(events chan<- Event, ev Event, logger *slog.Logger) {
	select {
	case events <- ev:
	default:
		logger.Warn("network_event_dropped",
			"kind", ev.Kind.String(),
			"topic", ev.Topic,
			"from", ev.From,
		)
	}
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
