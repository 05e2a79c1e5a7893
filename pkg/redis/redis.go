package redis

import (
	"context"
	"fmt"
	"time"

	"tasktracker/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("redis",
	fx.Provide(New),
)

const (
	pingAttempts = 5
	pingBackoff  = 3 * time.Second
)

// New returns nil when REDIS.ADDR is empty; consumers treat a nil client as "no cache".
func New(lc fx.Lifecycle, c *config.Config) (*redis.Client, error) {
	if c.Redis.Addr == "" {
		zap.L().Info("[Redis] REDIS.ADDR not set, running without cache")
		return nil, nil
	}

	zapLog := zap.L().With(
		zap.String("addr", c.Redis.Addr),
		zap.Int("db", c.Redis.DB),
		zap.Int("pool_size", c.Redis.PoolSize),
		zap.Duration("pool_timeout", c.Redis.PoolTimeout),
	)

	rdb := redis.NewClient(&redis.Options{
		Addr:        c.Redis.Addr,
		Password:    c.Redis.Password,
		DB:          c.Redis.DB,
		PoolSize:    c.Redis.PoolSize,
		PoolTimeout: c.Redis.PoolTimeout,
	})

	var err error
	for i := 0; i < pingAttempts; i++ {
		if err = rdb.Ping(context.Background()).Err(); err == nil {
			break
		}
		zapLog.Warn("[Redis] Redis not ready, retrying...", zap.Int("retry", i+1), zap.Error(err))
		time.Sleep(pingBackoff)
	}
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", c.Redis.Addr, err)
	}

	zapLog.Info("[Redis] Connected to Redis")

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return rdb.Close()
		},
	})

	return rdb, nil
}
