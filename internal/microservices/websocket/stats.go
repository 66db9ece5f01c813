package websocket

import (
	"sync/atomic"
	"time"
)

// NodeCounters holds the process-wide counters reported by get_stats.
type NodeCounters struct {
	startedAt time.Time
	messages  atomic.Uint64
}

func NewNodeCounters(startedAt time.Time) *NodeCounters {
	return &NodeCounters{startedAt: startedAt}
}

// IncMessages counts one message received from the network.
func (c *NodeCounters) IncMessages() uint64 { return c.messages.Add(1) }

func (c *NodeCounters) Messages() uint64 { return c.messages.Load() }

// Uptime in whole seconds at now.
func (c *NodeCounters) Uptime(now time.Time) uint64 {
	d := now.Sub(c.startedAt)
	if d < 0 {
		return 0
	}
	return uint64(d / time.Second)
}
