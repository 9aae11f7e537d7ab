package summary

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"sla-status-tracking/pkg/constants"
)

// RedisCache stores summaries in a single hash keyed by conversation ID
type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, conversationID string) (*CachedSummary, error) {
	data, err := c.rdb.HGet(ctx, constants.ConversationSummariesKey, conversationID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached summary: %w", err)
	}

	var cached CachedSummary
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("invalid cached summary: %w", err)
	}
	return &cached, nil
}

func (c *RedisCache) Put(ctx context.Context, conversationID string, summary CachedSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	if err := c.rdb.HSet(ctx, constants.ConversationSummariesKey, conversationID, data).Err(); err != nil {
		return fmt.Errorf("failed to cache summary: %w", err)
	}
	return nil
}
