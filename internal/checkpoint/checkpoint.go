// Package checkpoint persists ingestion progress markers in Redis. The
// markers are advisory: losing one only widens the next backfill window, so
// every operation here is best-effort from the adapter's point of view.
package checkpoint

import (
	"context"
	"fmt"
	"strconv"

	"tickvault/internal/cache"
)

// Conn is the slice of the Redis client the store needs. *redis.Redis from
// go-zero satisfies it.
type Conn interface {
	SetexCtx(ctx context.Context, key, value string, seconds int) error
	GetCtx(ctx context.Context, key string) (string, error)
}

// Store records and reads per-target write checkpoints.
type Store struct {
	conn Conn
	ttl  cache.TTLSet
}

// NewStore builds a checkpoint store over a Redis connection.
func NewStore(conn Conn, ttl cache.TTLSet) *Store {
	return &Store{conn: conn, ttl: ttl}
}

// RecordWrite stores the newest written timestamp for a target/symbol pair.
// Implements the ingestion adapter's Checkpointer.
func (s *Store) RecordWrite(ctx context.Context, target, symbol string, timestampMs int64) error {
	key := cache.CheckpointKey(target, symbol)
	seconds := int(cache.CheckpointTTL(s.ttl).Seconds())
	if err := s.conn.SetexCtx(ctx, key, strconv.FormatInt(timestampMs, 10), seconds); err != nil {
		return fmt.Errorf("checkpoint: set %s: %w", key, err)
	}
	return nil
}

// LastWrite reads the stored checkpoint. The second return is false when no
// checkpoint exists (or it expired).
func (s *Store) LastWrite(ctx context.Context, target, symbol string) (int64, bool, error) {
	key := cache.CheckpointKey(target, symbol)
	raw, err := s.conn.GetCtx(ctx, key)
	if err != nil {
		return 0, false, fmt.Errorf("checkpoint: get %s: %w", key, err)
	}
	if raw == "" {
		return 0, false, nil
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("checkpoint: parse %s value %q: %w", key, raw, err)
	}
	return ts, true, nil
}
