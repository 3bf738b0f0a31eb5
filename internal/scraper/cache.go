package scraper

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "stats:"

// Cache keeps scraped stats in Redis for a TTL so repeated lookups don't hit
// the remote site. Every operation degrades to a miss when Redis is down.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCache wraps the shared Redis client. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Get returns cached stats for the nickname, if present.
func (c *Cache) Get(ctx context.Context, nickname string) (*PlayerStats, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, cacheKeyPrefix+nickname).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("stats cache read failed", zap.String("nickname", nickname), zap.Error(err))
		}
		return nil, false
	}
	var stats PlayerStats
	if err := json.Unmarshal(data, &stats); err != nil {
		c.logger.Warn("stats cache entry corrupt", zap.String("nickname", nickname), zap.Error(err))
		return nil, false
	}
	return &stats, true
}

// Put stores stats under the nickname with the configured TTL.
func (c *Cache) Put(ctx context.Context, nickname string, stats *PlayerStats) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+nickname, data, c.ttl).Err(); err != nil {
		c.logger.Warn("stats cache write failed", zap.String("nickname", nickname), zap.Error(err))
	}
}
