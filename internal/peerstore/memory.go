package peerstore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps peers in process memory. Used for single-node development and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	peers map[string]*Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{peers: make(map[string]*Record)}
}

func (s *MemoryStore) ListPeers(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr("list", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]Record, 0, len(s.peers))
	for _, rec := range s.peers {
		records = append(records, copyRecord(rec))
	}
	sortRecords(records)
	return records, nil
}

// UpsertPeer refreshes identity fields and keeps any existing reputation.
func (s *MemoryStore) UpsertPeer(ctx context.Context, info PeerInfo) error {
	if err := ctx.Err(); err != nil {
		return storeErr("upsert", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.peers[info.ID]; ok {
		rec.Info = copyInfo(info)
		return nil
	}
	s.peers[info.ID] = &Record{
		Info:       copyInfo(info),
		Reputation: Reputation{Score: DefaultReputation, UpdatedAt: time.Now()},
	}
	return nil
}

func (s *MemoryStore) RemovePeer(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return storeErr("remove", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, id)
	return nil
}

func (s *MemoryStore) SetReputation(ctx context.Context, id string, score float64) error {
	if err := ctx.Err(); err != nil {
		return storeErr("set_reputation", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.peers[id]
	if !ok {
		return storeErr("set_reputation", ErrPeerNotFound)
	}
	rec.Reputation = Reputation{Score: score, UpdatedAt: time.Now()}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func copyInfo(info PeerInfo) PeerInfo {
	out := PeerInfo{ID: info.ID}
	if info.Name != nil {
		name := *info.Name
		out.Name = &name
	}
	out.Addresses = append([]string(nil), info.Addresses...)
	return out
}

func copyRecord(rec *Record) Record {
	return Record{Info: copyInfo(rec.Info), Reputation: rec.Reputation}
}
