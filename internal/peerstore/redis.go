package peerstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisPeerIndexKey = "peers:index"
	redisPeerKeyFmt   = "peer:%s"
)

// RedisStore keeps one hash per peer plus a set indexing every known peer id.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects and pings the server before returning.
func NewRedisStore(addr, password string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStore{client: rdb}, nil
}

func redisPeerKey(id string) string {
	return fmt.Sprintf(redisPeerKeyFmt, id)
}

func (r *RedisStore) ListPeers(ctx context.Context) ([]Record, error) {
	if r == nil || r.client == nil {
		return []Record{}, nil
	}
	ids, err := r.client.SMembers(ctx, redisPeerIndexKey).Result()
	if err != nil {
		return nil, storeErr("list", err)
	}

	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		fields, err := r.client.HGetAll(ctx, redisPeerKey(id)).Result()
		if err != nil {
			return nil, storeErr("list", err)
		}
		if len(fields) == 0 {
			// index entry without a hash, left behind by an interrupted remove
			continue
		}
		rec, err := recordFromHash(id, fields)
		if err != nil {
			return nil, storeErr("list", err)
		}
		records = append(records, rec)
	}
	sortRecords(records)
	return records, nil
}

// UpsertPeer writes identity fields and only seeds the reputation on first sight.
func (r *RedisStore) UpsertPeer(ctx context.Context, info PeerInfo) error {
	if r == nil || r.client == nil {
		return nil
	}
	addrs, err := json.Marshal(info.Addresses)
	if err != nil {
		return storeErr("upsert", err)
	}

	fields := map[string]any{
		"addresses": string(addrs),
		"has_name":  info.Name != nil,
		"name":      "",
	}
	if info.Name != nil {
		fields["name"] = *info.Name
	}

	key := redisPeerKey(info.ID)
	now := time.Now().Format(time.RFC3339Nano)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		pipe.HSetNX(ctx, key, "reputation", DefaultReputation)
		pipe.HSetNX(ctx, key, "reputation_updated_at", now)
		pipe.SAdd(ctx, redisPeerIndexKey, info.ID)
		return nil
	})
	return storeErr("upsert", err)
}

func (r *RedisStore) RemovePeer(ctx context.Context, id string) error {
	if r == nil || r.client == nil {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, redisPeerIndexKey, id)
		pipe.Del(ctx, redisPeerKey(id))
		return nil
	})
	return storeErr("remove", err)
}

func (r *RedisStore) SetReputation(ctx context.Context, id string, score float64) error {
	if r == nil || r.client == nil {
		return nil
	}
	known, err := r.client.SIsMember(ctx, redisPeerIndexKey, id).Result()
	if err != nil {
		return storeErr("set_reputation", err)
	}
	if !known {
		return storeErr("set_reputation", ErrPeerNotFound)
	}
	err = r.client.HSet(ctx, redisPeerKey(id),
		"reputation", score,
		"reputation_updated_at", time.Now().Format(time.RFC3339Nano),
	).Err()
	return storeErr("set_reputation", err)
}

func (r *RedisStore) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func recordFromHash(id string, fields map[string]string) (Record, error) {
	rec := Record{Info: PeerInfo{ID: id}}

	if fields["has_name"] == "1" || fields["has_name"] == "true" {
		name := fields["name"]
		rec.Info.Name = &name
	}
	if raw := fields["addresses"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &rec.Info.Addresses); err != nil {
			return Record{}, fmt.Errorf("invalid addresses for peer %s: %w", id, err)
		}
	}

	rec.Reputation.Score = DefaultReputation
	if raw, ok := fields["reputation"]; ok {
		score, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Record{}, fmt.Errorf("invalid reputation for peer %s: %w", id, err)
		}
		rec.Reputation.Score = score
	}
	if raw, ok := fields["reputation_updated_at"]; ok {
		rec.Reputation.UpdatedAt, _ = time.Parse(time.RFC3339Nano, raw)
	}
	return rec, nil
}
