package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	memory "github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/sharath018/tenant-access-backend/logger"
)

const rateLimitPrefix = "ratelimit"

// RateLimiter limits requests per minute for each host and client IP pair.
// The IP is gin's ClientIP, so forwarding headers only count when the engine
// trusts the proxy that sent them.
// Counters live in redis when a client is given, in memory otherwise.
func RateLimiter(perMinute int64, client *redis.Client) gin.HandlerFunc {
	if perMinute <= 0 {
		perMinute = 100
	}
	rate := limiter.Rate{
		Period: time.Minute,
		Limit:  perMinute,
	}

	var store limiter.Store
	if client != nil {
		s, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: rateLimitPrefix})
		if err != nil {
			logger.L().Warn("redis rate limit store unavailable, using memory", zap.Error(err))
		} else {
			store = s
		}
	}
	if store == nil {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          rateLimitPrefix,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		})
	}

	instance := limiter.New(store, rate)
	return ginlimiter.NewMiddleware(instance,
		ginlimiter.WithKeyGetter(rateLimitKey),
		ginlimiter.WithLimitReachedHandler(func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please try again later."})
		}),
	)
}

func rateLimitKey(c *gin.Context) string {
	host := strings.ToLower(c.Request.Host)
	return host + "|" + c.ClientIP()
}
