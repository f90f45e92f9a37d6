package utils

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharath018/calendar-backend/config"
)

// RedisClient is nil when REDIS_ADDR is unset.
var RedisClient *redis.Client

// InitRedis connects when Redis is configured. A missing address is not an
// error: callers fall back to process-local behaviour.
func InitRedis(cfg *config.Config) error {
	if cfg.RedisAddr == "" {
		slog.Info("redis not configured, using process-local locks and no in-app push")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}

	RedisClient = client
	slog.Info("connected to redis", "addr", cfg.RedisAddr)
	return nil
}

func CloseRedis() {
	if RedisClient != nil {
		_ = RedisClient.Close()
	}
}
