// Package cache provides the Redis-backed escrow summary cache. Summaries are
// rebuildable projections; the cache is a read optimization with TTL-bounded
// staleness and explicit invalidation on every account mutation.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"conveyr/internal/escrow/models"
	id "conveyr/pkg/domain"
)

const summaryKeyPrefix = "escrow:summary:"

// SummaryCache caches escrow summaries. A miss returns (nil, nil).
type SummaryCache interface {
	Get(ctx context.Context, escrowID id.EscrowID) (*models.Summary, error)
	Set(ctx context.Context, summary models.Summary) error
	Invalidate(ctx context.Context, escrowID id.EscrowID) error
}

// RedisSummaryCache stores summaries as JSON values with a TTL.
type RedisSummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSummaryCache(client *redis.Client, ttl time.Duration) *RedisSummaryCache {
	return &RedisSummaryCache{client: client, ttl: ttl}
}

func summaryKey(escrowID id.EscrowID) string {
	return summaryKeyPrefix + escrowID.String()
}

func (c *RedisSummaryCache) Get(ctx context.Context, escrowID id.EscrowID) (*models.Summary, error) {
	raw, err := c.client.Get(ctx, summaryKey(escrowID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached summary: %w", err)
	}
	var summary models.Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		// A corrupt entry is treated as a miss; the next Set overwrites it.
		return nil, nil
	}
	return &summary, nil
}

func (c *RedisSummaryCache) Set(ctx context.Context, summary models.Summary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := c.client.Set(ctx, summaryKey(summary.EscrowID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached summary: %w", err)
	}
	return nil
}

func (c *RedisSummaryCache) Invalidate(ctx context.Context, escrowID id.EscrowID) error {
	if err := c.client.Del(ctx, summaryKey(escrowID)).Err(); err != nil {
		return fmt.Errorf("invalidate cached summary: %w", err)
	}
	return nil
}
