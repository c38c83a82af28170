package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"kitakita/internal/domain/finance"
)

// SnapshotCache keeps recently built financial snapshots so the dashboard and
// agent initialization do not rebuild aggregates on every request.
type SnapshotCache struct {
	client *Client
	ttl    time.Duration
}

// NewSnapshotCache wraps a Redis client with a snapshot TTL.
func NewSnapshotCache(client *Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SnapshotCache{client: client, ttl: ttl}
}

func snapshotKey(userID uuid.UUID) string {
	return fmt.Sprintf("snapshot:%s", userID)
}

// Get returns the cached snapshot, or (nil, nil) on a miss.
func (c *SnapshotCache) Get(ctx context.Context, userID uuid.UUID) (*finance.Snapshot, error) {
	var snapshot finance.Snapshot
	err := c.client.Get(ctx, snapshotKey(userID), &snapshot)
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Put stores a snapshot under the configured TTL.
func (c *SnapshotCache) Put(ctx context.Context, userID uuid.UUID, snapshot *finance.Snapshot) error {
	return c.client.Set(ctx, snapshotKey(userID), snapshot, c.ttl)
}

// Invalidate drops a cached snapshot, typically after new transactions land.
func (c *SnapshotCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	return c.client.Delete(ctx, snapshotKey(userID))
}
