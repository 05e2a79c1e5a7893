package task

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"tasktracker/pkg/config"
	"tasktracker/pkg/rediskey"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{Name: "task_list_cache_hits_total"})
	cacheMiss = promauto.NewCounter(prometheus.CounterOpts{Name: "task_list_cache_miss_total"})
)

// ListCache stores list results per generation. Invalidate starts a new
// generation, so entries written under an older one are never read again.
type ListCache interface {
	Generation(ctx context.Context) int64
	Get(ctx context.Context, generation int64, filter Filter, sortBy SortBy) ([]Task, bool)
	Set(ctx context.Context, generation int64, filter Filter, sortBy SortBy, tasks []Task)
	Invalidate(ctx context.Context)
}

type CacheParams struct {
	fx.In
	Config *config.Config
	Redis  *redis.Client `optional:"true"`
}

func NewListCache(p CacheParams) ListCache {
	if p.Redis == nil {
		return noopCache{}
	}
	return &redisCache{rdb: p.Redis, ttl: p.Config.Redis.CacheTTL}
}

type noopCache struct{}

func (noopCache) Generation(context.Context) int64 { return 0 }

func (noopCache) Get(context.Context, int64, Filter, SortBy) ([]Task, bool) { return nil, false }

func (noopCache) Set(context.Context, int64, Filter, SortBy, []Task) {}

func (noopCache) Invalidate(context.Context) {}

type redisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func (c *redisCache) Generation(ctx context.Context) int64 {
	gen, err := c.rdb.Get(ctx, rediskey.BuildTaskListGenerationKey()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		zap.L().Warn("task list cache: read generation", zap.Error(err))
	}
	return gen
}

func (c *redisCache) Get(ctx context.Context, generation int64, filter Filter, sortBy SortBy) ([]Task, bool) {
	key := rediskey.BuildTaskListKey(generation, string(filter), sortKey(sortBy))
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("task list cache: get", zap.String("key", key), zap.Error(err))
		}
		cacheMiss.Inc()
		return nil, false
	}

	var tasks []Task
	if err := json.Unmarshal(raw, &tasks); err != nil {
		zap.L().Warn("task list cache: decode", zap.String("key", key), zap.Error(err))
		cacheMiss.Inc()
		return nil, false
	}

	cacheHits.Inc()
	return tasks, true
}

func (c *redisCache) Set(ctx context.Context, generation int64, filter Filter, sortBy SortBy, tasks []Task) {
	key := rediskey.BuildTaskListKey(generation, string(filter), sortKey(sortBy))
	raw, err := json.Marshal(tasks)
	if err != nil {
		zap.L().Warn("task list cache: encode", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		zap.L().Warn("task list cache: set", zap.String("key", key), zap.Error(err))
	}
}

func (c *redisCache) Invalidate(ctx context.Context) {
	if err := c.rdb.Incr(ctx, rediskey.BuildTaskListGenerationKey()).Err(); err != nil {
		zap.L().Error("task list cache: invalidate", zap.Error(err))
	}
}

func sortKey(s SortBy) string {
	if s == SortDefault {
		return "default"
	}
	return string(s)
}
