package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/fundsight/fundsight-go/internal/backtest"
	"github.com/fundsight/fundsight-go/internal/models"
)

// navCacheEntry is a cached NAV series with metadata.
type navCacheEntry struct {
	Series   []models.NavObservation `json:"series"`
	CachedAt time.Time               `json:"cached_at"`
}

// NavCacheStats tracks cache performance metrics.
type NavCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	mu     sync.RWMutex
}

// RedisNavCache is a read-through NAV-history cache. It decorates an
// inner NAVProvider: hits come from Redis, misses fall through and are
// stored with a TTL. Cache failures never fail a read, the inner
// provider is always the source of truth.
type RedisNavCache struct {
	inner  backtest.NAVProvider
	redis  *redis.Client
	ttl    time.Duration
	stats  *NavCacheStats
	prefix string
}

// NewRedisNavCache wraps inner with a Redis cache.
func NewRedisNavCache(inner backtest.NAVProvider, redisClient *redis.Client, ttl time.Duration) *RedisNavCache {
	return &RedisNavCache{
		inner:  inner,
		redis:  redisClient,
		ttl:    ttl,
		stats:  &NavCacheStats{},
		prefix: "nav_cache:",
	}
}

// GetNAVHistory implements backtest.NAVProvider.
func (c *RedisNavCache) GetNAVHistory(ctx context.Context, fundID int64, from, to time.Time) ([]models.NavObservation, error) {
	key := c.key(fundID, from, to)

	data, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		var entry navCacheEntry
		if jsonErr := json.Unmarshal([]byte(data), &entry); jsonErr == nil {
			c.stats.mu.Lock()
			c.stats.Hits++
			c.stats.mu.Unlock()
			return entry.Series, nil
		}
		logrus.WithField("key", key).Warn("corrupt NAV cache entry, falling through")
	} else if err != redis.Nil {
		logrus.WithError(err).WithField("key", key).Warn("redis NAV cache read failed, falling through")
	}

	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()

	series, err := c.inner.GetNAVHistory(ctx, fundID, from, to)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, series)
	return series, nil
}

func (c *RedisNavCache) store(ctx context.Context, key string, series []models.NavObservation) {
	entry := navCacheEntry{Series: series, CachedAt: time.Now()}
	data, err := json.Marshal(entry)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("failed to serialize NAV series for cache")
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("redis NAV cache write failed")
		return
	}
	c.stats.mu.Lock()
	c.stats.Sets++
	c.stats.mu.Unlock()
}

func (c *RedisNavCache) key(fundID int64, from, to time.Time) string {
	return fmt.Sprintf("%s%d:%s:%s", c.prefix, fundID, from.Format("2006-01-02"), to.Format("2006-01-02"))
}

// GetStats returns current cache statistics.
func (c *RedisNavCache) GetStats() NavCacheStats {
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()
	return NavCacheStats{
		Hits:   c.stats.Hits,
		Misses: c.stats.Misses,
		Sets:   c.stats.Sets,
	}
}

// LogStats logs current cache performance statistics.
func (c *RedisNavCache) LogStats() {
	stats := c.GetStats()
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	logrus.WithFields(logrus.Fields{
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"sets":     stats.Sets,
		"hit_rate": fmt.Sprintf("%.2f%%", hitRate),
	}).Info("NAV cache stats")
}
