// Package cache provides an optional Redis-backed cache for detection
// results, keyed by a hash of the document text. Cache failures always
// degrade to uncached operation; they never fail a detection run.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/docveil/docveil/internal/config"
	"github.com/docveil/docveil/internal/logger"
	"github.com/docveil/docveil/internal/pipeline"
)

// DetectionCache caches pipeline results in Redis.
type DetectionCache struct {
	client *redis.Client
	cfg    config.CacheConfig
	logger *logger.Logger

	// Counters are read by Stats while detections run concurrently.
	hits   atomic.Int64
	misses atomic.Int64
}

// New connects to Redis and verifies the connection.
func New(cfg config.CacheConfig, log *logger.Logger) (*DetectionCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Detection cache initialized",
		zap.Duration("default_ttl", cfg.DefaultTTL),
		zap.String("key_prefix", cfg.KeyPrefix),
	)
	return &DetectionCache{client: client, cfg: cfg, logger: log}, nil
}

// Key derives the cache key from the document text and a configuration
// revision marker, so config changes invalidate prior entries.
func (c *DetectionCache) Key(text, configRevision string) string {
	h := xxhash.New()
	_, _ = h.WriteString(configRevision)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(text)
	return fmt.Sprintf("%s%016x", c.cfg.KeyPrefix, h.Sum64())
}

// Get returns a cached result, or nil on miss or any cache failure.
func (c *DetectionCache) Get(ctx context.Context, key string) *pipeline.Result {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("Cache read failed", zap.Error(err))
		}
		c.misses.Add(1)
		return nil
	}

	var result pipeline.Result
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Debug("Cache entry corrupt, ignoring", zap.Error(err))
		c.misses.Add(1)
		return nil
	}
	c.hits.Add(1)
	return &result
}

// Set stores a result with the default TTL. Failures are logged only.
func (c *DetectionCache) Set(ctx context.Context, key string, result *pipeline.Result) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Debug("Cache serialize failed", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.DefaultTTL).Err(); err != nil {
		c.logger.Debug("Cache write failed", zap.Error(err))
	}
}

// Stats returns hit/miss counters since startup.
func (c *DetectionCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Close releases the Redis connection.
func (c *DetectionCache) Close() error {
	return c.client.Close()
}
