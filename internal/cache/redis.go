package cache

import (
	"context"
	"fmt"
	"time"

	"todo_auth/internal/config"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// SetupRedis connects to Redis, or returns nil when Redis is not configured.
func SetupRedis(redisCfg *config.RedisConfig) *redis.Client {
	if !redisCfg.Enabled() {
		logrus.Warn("REDIS_HOST not set, cache, token revocation and rate limiting are disabled")
		return nil
	}

	addr := fmt.Sprintf("%s:%s", redisCfg.Host, redisCfg.Port)

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: redisCfg.RedisPassword,
		DB:       redisCfg.RedisDB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		logrus.Fatalf("Failed to connect to Redis: %v", err)
	}

	logrus.WithField("addr", addr).Info("Redis connection established successfully")
	return rdb
}
