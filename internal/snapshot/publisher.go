package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"queue_go/internal/domain"
)

const (
	snapshotKeyPrefix = "snapshot:"
	snapshotChannel   = "snapshots"
)

// RedisPublisher pushes each projection into Redis twice: a SET so late
// subscribers can read the latest state, and a PUBLISH so live dashboards
// get it without polling. Callers bound the context; a slow Redis drops the
// publish rather than backpressuring the feed.
type RedisPublisher struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		logger: slog.Default().With("module", "snapshot_publisher"),
	}
}

// Ping verifies the Redis connection at startup.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *RedisPublisher) Publish(ctx context.Context, instrument string, snap domain.InstrumentSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	key := snapshotKeyPrefix + instrument
	if err := p.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	if err := p.client.Publish(ctx, snapshotChannel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", snapshotChannel, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
