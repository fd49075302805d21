package webhook

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/expensehq/expensehq/app/models"
)

const terminalCacheKeyPrefix = "webhook:terminal:"

// redisTerminalCache caches terminal event statuses in Redis so redeliveries
// of settled events skip the database round trip. All failures are silent;
// the ledger remains the source of truth.
type redisTerminalCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTerminalCache wraps a Redis client as a TerminalCache. Entries
// expire with the ledger retention period.
func NewRedisTerminalCache(client *redis.Client) TerminalCache {
	return &redisTerminalCache{client: client, ttl: models.WebhookRetentionPeriod}
}

func (c *redisTerminalCache) Get(ctx context.Context, eventID string) (string, bool) {
	status, err := c.client.Get(ctx, terminalCacheKeyPrefix+eventID).Result()
	if err != nil {
		return "", false
	}
	return status, status != ""
}

func (c *redisTerminalCache) Set(ctx context.Context, eventID, status string) {
	_ = c.client.Set(ctx, terminalCacheKeyPrefix+eventID, status, c.ttl).Err()
}
