package network

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func awaitEvent(t *testing.T, events <-chan Event, timeout time.Duration, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "event stream closed")
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for network event")
			return Event{}
		}
	}
}

func peerEvent(kind EventKind, id string) func(Event) bool {
	return func(ev Event) bool {
		return ev.Kind == kind && ev.Peer.ID == id
	}
}

// pollMessage drains what is buffered without blocking and reports the first topic message.
func pollMessage(events <-chan Event) (Event, bool) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return Event{}, false
			}
			if ev.Kind == EventMessage {
				return ev, true
			}
		default:
			return Event{}, false
		}
	}
}

// messagesWithin collects the topic messages that arrive during d.
func messagesWithin(events <-chan Event, d time.Duration) []Event {
	var out []Event
	deadline := time.After(d)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			if ev.Kind == EventMessage {
				out = append(out, ev)
			}
		case <-deadline:
			return out
		}
	}
}
