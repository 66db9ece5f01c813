// Package peerstore keeps the known peers of the gossip network and their reputation.
package peerstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// DefaultReputation is the score a peer starts with before any vouches.
const DefaultReputation = 0.5

var ErrPeerNotFound = errors.New("peer not found")

// PeerInfo is a peer's network identity.
type PeerInfo struct {
	ID        string
	Name      *string
	Addresses []string
}

type Reputation struct {
	Score     float64
	UpdatedAt time.Time
}

// Record joins a peer with its current reputation.
type Record struct {
	Info       PeerInfo
	Reputation Reputation
}

// Store is the persistent peer and reputation collaborator. Implementations
// synchronize internally; callers never lock around them.
type Store interface {
	ListPeers(ctx context.Context) ([]Record, error)
	UpsertPeer(ctx context.Context, info PeerInfo) error
	RemovePeer(ctx context.Context, id string) error
	SetReputation(ctx context.Context, id string, score float64) error
	Close() error
}

// StoreError wraps a backend failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("peer store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Info.ID < records[j].Info.ID
	})
}
