package task

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"tasktracker/pkg/config"
	"tasktracker/pkg/rediskey"
)

func TestNewListCacheWithoutRedis(t *testing.T) {
	cache := NewListCache(CacheParams{Config: &config.Config{}})
	require.IsType(t, noopCache{}, cache)

	ctx := context.Background()
	cache.Set(ctx, 0, FilterActive, SortDefault, []Task{{ID: 1}})
	_, ok := cache.Get(ctx, 0, FilterActive, SortDefault)
	require.False(t, ok)
	require.Zero(t, cache.Generation(ctx))
}

func TestRedisCacheDegradesToMiss(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{}
	cfg.Redis.CacheTTL = time.Minute
	cache := NewListCache(CacheParams{Config: cfg, Redis: rdb})

	ctx := context.Background()
	require.Zero(t, cache.Generation(ctx))
	cache.Set(ctx, 0, FilterActive, SortLimitDate, []Task{{ID: 1}})
	_, ok := cache.Get(ctx, 0, FilterActive, SortLimitDate)
	require.False(t, ok)
	cache.Invalidate(ctx)
}

func TestSortKey(t *testing.T) {
	require.Equal(t, "default", sortKey(SortDefault))
	require.Equal(t, "limit_date", sortKey(SortLimitDate))
}

func newRedisCache(t *testing.T) (ListCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{}
	cfg.Redis.CacheTTL = time.Minute
	return NewListCache(CacheParams{Config: cfg, Redis: rdb}), mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	cache, mr := newRedisCache(t)
	ctx := context.Background()

	limit := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	tasks := []Task{
		{ID: 1, Name: "A", Detail: strPtr("notes"), LimitDate: &limit, Status: StatusDoing, DisplayOrder: 0, CreatedAt: created, UpdatedAt: created},
		{ID: 2, Name: "B", IsNotMain: true, Status: StatusTodo, DisplayOrder: 1, CreatedAt: created, UpdatedAt: created},
	}

	gen := cache.Generation(ctx)
	require.Zero(t, gen)

	_, ok := cache.Get(ctx, gen, FilterActive, SortDefault)
	require.False(t, ok)

	cache.Set(ctx, gen, FilterActive, SortDefault, tasks)
	require.True(t, mr.Exists(rediskey.BuildTaskListKey(gen, string(FilterActive), "default")))
	require.Equal(t, time.Minute, mr.TTL(rediskey.BuildTaskListKey(gen, string(FilterActive), "default")))

	hits := promtest.ToFloat64(cacheHits)
	got, ok := cache.Get(ctx, gen, FilterActive, SortDefault)
	require.True(t, ok)
	require.Equal(t, tasks, got)
	require.Equal(t, hits+1, promtest.ToFloat64(cacheHits))

	_, ok = cache.Get(ctx, gen, FilterActive, SortLimitDate)
	require.False(t, ok)
}

func TestRedisCacheInvalidateStartsNewGeneration(t *testing.T) {
	cache, _ := newRedisCache(t)
	ctx := context.Background()

	old := cache.Generation(ctx)
	cache.Set(ctx, old, FilterCompleted, SortDefault, []Task{{ID: 1, Name: "A", Status: StatusCompleted}})

	cache.Invalidate(ctx)
	gen := cache.Generation(ctx)
	require.Equal(t, old+1, gen)

	misses := promtest.ToFloat64(cacheMiss)
	_, ok := cache.Get(ctx, gen, FilterCompleted, SortDefault)
	require.False(t, ok)
	require.Equal(t, misses+1, promtest.ToFloat64(cacheMiss))
}

func TestServiceListThroughRedisCache(t *testing.T) {
	cache, mr := newRedisCache(t)
	s, _ := newTestService(t, cache)
	ctx := context.Background()

	mustCreate(t, s, "A", nil)

	first, err := s.List(ctx, FilterActive, SortDefault)
	require.NoError(t, err)
	hits := promtest.ToFloat64(cacheHits)
	second, err := s.List(ctx, FilterActive, SortDefault)
	require.NoError(t, err)
	require.Equal(t, hits+1, promtest.ToFloat64(cacheHits))
	require.Equal(t, names(first), names(second))
	require.Equal(t, first[0].ID, second[0].ID)

	mustCreate(t, s, "B", nil)
	third, err := s.List(ctx, FilterActive, SortDefault)
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, names(third))

	require.ElementsMatch(t, []string{
		rediskey.BuildTaskListGenerationKey(),
		rediskey.BuildTaskListKey(1, string(FilterActive), "default"),
		rediskey.BuildTaskListKey(2, string(FilterActive), "default"),
	}, mr.Keys())
}
