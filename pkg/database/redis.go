package database

import (
	"aerovision_backend/internal/config"
	"aerovision_backend/pkg/logger"
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// InitRedis 未配置 Redis 时返回 nil，调用方需自行降级
func InitRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled() {
		logger.Log.Warn("Redis not configured, sessions and mailbox events stay in memory")
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     50,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, err
	}

	logger.Log.Info("Redis connection established")
	return rdb, nil
}
