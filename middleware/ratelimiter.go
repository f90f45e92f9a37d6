package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	memory "github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// RateLimiter limits requests per client IP. With a Redis client the
// counters are shared across instances; otherwise they are per process.
func RateLimiter(limit int64, period time.Duration, rdb *redis.Client) gin.HandlerFunc {
	if limit <= 0 {
		limit = 100
	}
	if period <= 0 {
		period = time.Minute
	}
	rate := limiter.Rate{Period: period, Limit: limit}

	var store limiter.Store = memory.NewStore()
	if rdb != nil {
		shared, err := sredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "calendar:ratelimit"})
		if err != nil {
			slog.Warn("redis rate limit store unavailable, using memory store", "error", err)
		} else {
			store = shared
		}
	}

	return ginlimiter.NewMiddleware(limiter.New(store, rate))
}
