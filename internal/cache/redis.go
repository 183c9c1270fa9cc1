// Package cache provides a Redis-backed cache of anonymization results so
// repeated runs over identical input skip recomputation.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/textveil/textveil/internal/config"
	"github.com/textveil/textveil/internal/masking"
)

// ResultCache caches masking results keyed by a fingerprint of the input
// text, rule set and options.
type ResultCache struct {
	client *redis.Client
	config config.CacheConfig
	logger *zap.Logger
	stats  *cacheStats
}

type cacheStats struct {
	hits   int64
	misses int64
}

// Stats reports cache hit/miss counters.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hitRate"`
}

// New creates a Redis-backed result cache and verifies the connection.
func New(cfg config.CacheConfig, logger *zap.Logger) (*ResultCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = cfg.MaxConnections
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	cache := &ResultCache{
		client: client,
		config: cfg,
		logger: logger,
		stats:  &cacheStats{},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Result cache initialized",
		zap.String("redis_url", maskRedisURL(cfg.RedisURL)),
		zap.Duration("default_ttl", cfg.DefaultTTL))

	return cache, nil
}

// Key fingerprints one anonymize invocation. Only fields that affect the
// output participate: the input text, each applicable rule, and the
// detection flags.
func Key(prefix, text string, ruleSet []masking.Rule, opts masking.Options) string {
	hasher := sha256.New()
	hasher.Write([]byte(text))
	hasher.Write([]byte{0})
	for _, rule := range ruleSet {
		fmt.Fprintf(hasher, "%s\x00%s\x00%s\x00%t\x00", rule.Original, rule.Masked, rule.Kind, rule.Enabled)
	}
	fmt.Fprintf(hasher, "%t%t%t", opts.DetectURLs, opts.DetectEmails, opts.DetectPhones)

	hash := hex.EncodeToString(hasher.Sum(nil))
	return fmt.Sprintf("%s:result:%s", prefix, hash[:32])
}

// Get returns a cached result, or nil on a miss. Lookup failures degrade to
// a miss so callers simply recompute.
func (c *ResultCache) Get(ctx context.Context, key string) *masking.Result {
	data, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		c.stats.misses++
		return nil
	} else if err != nil {
		c.logger.Error("Cache lookup failed", zap.Error(err))
		return nil
	}

	var result masking.Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("Failed to unmarshal cached result", zap.Error(err))
		c.client.Del(ctx, key)
		return nil
	}

	c.stats.hits++
	c.logger.Debug("Cache hit", zap.String("key", key))
	return &result
}

// Set stores a result with the configured TTL.
func (c *ResultCache) Set(ctx context.Context, key string, result *masking.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result for caching: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.config.DefaultTTL).Err(); err != nil {
		c.logger.Error("Failed to cache result", zap.Error(err))
		return fmt.Errorf("failed to cache result: %w", err)
	}
	return nil
}

// GetStats returns cache performance counters.
func (c *ResultCache) GetStats() Stats {
	stats := Stats{Hits: c.stats.hits, Misses: c.stats.misses}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}
	return stats
}

// Clear removes all cached results under the configured prefix.
func (c *ResultCache) Clear(ctx context.Context) error {
	pattern := c.config.KeyPrefix + ":result:*"

	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}

	c.logger.Info("Cache cleared", zap.Int("deleted_keys", len(keys)))
	return nil
}

// Close closes the Redis connection.
func (c *ResultCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// maskRedisURL masks credentials in a Redis URL for logging.
func maskRedisURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
