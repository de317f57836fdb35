package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundsight/fundsight-go/internal/models"
)

// setupTestRedis creates a test Redis instance using miniredis
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	s, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		s.Close()
	})
	return s, client
}

// stubProvider counts calls and serves a fixed series or error.
type stubProvider struct {
	series []models.NavObservation
	err    error
	calls  int
}

func (s *stubProvider) GetNAVHistory(_ context.Context, _ int64, _, _ time.Time) ([]models.NavObservation, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.series, nil
}

func navWindow() (time.Time, time.Time) {
	return time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)
}

func sampleSeries(from time.Time) []models.NavObservation {
	return []models.NavObservation{
		{FundID: 1, Date: from, Value: decimal.NewFromFloat(100.5)},
		{FundID: 1, Date: from.AddDate(0, 1, 0), Value: decimal.NewFromFloat(101.25)},
	}
}

func TestRedisNavCache_MissThenHit(t *testing.T) {
	_, client := setupTestRedis(t)
	from, to := navWindow()
	inner := &stubProvider{series: sampleSeries(from)}
	cache := NewRedisNavCache(inner, client, time.Hour)

	first, err := cache.GetNAVHistory(context.Background(), 1, from, to)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 1, inner.calls)

	second, err := cache.GetNAVHistory(context.Background(), 1, from, to)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls, "second read must be served from cache")
	require.Len(t, second, 2)
	assert.True(t, second[0].Value.Equal(first[0].Value))

	stats := cache.GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
}

func TestRedisNavCache_DistinctWindowsDistinctKeys(t *testing.T) {
	_, client := setupTestRedis(t)
	from, to := navWindow()
	inner := &stubProvider{series: sampleSeries(from)}
	cache := NewRedisNavCache(inner, client, time.Hour)

	_, err := cache.GetNAVHistory(context.Background(), 1, from, to)
	require.NoError(t, err)
	_, err = cache.GetNAVHistory(context.Background(), 1, from, to.AddDate(0, 1, 0))
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls, "different windows must not share a cache entry")
}

func TestRedisNavCache_InnerErrorPropagates(t *testing.T) {
	_, client := setupTestRedis(t)
	from, to := navWindow()
	inner := &stubProvider{err: errors.New("upstream down")}
	cache := NewRedisNavCache(inner, client, time.Hour)

	_, err := cache.GetNAVHistory(context.Background(), 1, from, to)
	require.Error(t, err)

	stats := cache.GetStats()
	assert.Equal(t, int64(0), stats.Sets, "failed reads must not be cached")
}

func TestRedisNavCache_CorruptEntryFallsThrough(t *testing.T) {
	s, client := setupTestRedis(t)
	from, to := navWindow()
	inner := &stubProvider{series: sampleSeries(from)}
	cache := NewRedisNavCache(inner, client, time.Hour)

	require.NoError(t, s.Set("nav_cache:1:2023-01-01:2023-12-01", "{not json"))

	series, err := cache.GetNAVHistory(context.Background(), 1, from, to)
	require.NoError(t, err)
	assert.Len(t, series, 2)
	assert.Equal(t, 1, inner.calls)
}

func TestRedisNavCache_RedisDownDegradesToInner(t *testing.T) {
	s, client := setupTestRedis(t)
	from, to := navWindow()
	inner := &stubProvider{series: sampleSeries(from)}
	cache := NewRedisNavCache(inner, client, time.Hour)

	s.Close()

	series, err := cache.GetNAVHistory(context.Background(), 1, from, to)
	require.NoError(t, err, "cache outage must not fail the read")
	assert.Len(t, series, 2)
	assert.Equal(t, 1, inner.calls)
}

func TestRedisNavCache_EntryExpires(t *testing.T) {
	s, client := setupTestRedis(t)
	from, to := navWindow()
	inner := &stubProvider{series: sampleSeries(from)}
	cache := NewRedisNavCache(inner, client, time.Minute)

	_, err := cache.GetNAVHistory(context.Background(), 1, from, to)
	require.NoError(t, err)

	s.FastForward(2 * time.Minute)

	_, err = cache.GetNAVHistory(context.Background(), 1, from, to)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "expired entry must be refetched")
}
