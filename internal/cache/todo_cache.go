package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"todo_auth/internal/observability"

	"github.com/go-redis/redis/v8"
)

const TodoCacheTTL = 1 * time.Hour

const userTodosKeyType = "user_todos"

// TodoCache stores serialized todo lists per user. A nil client makes every
// call a miss.
type TodoCache struct {
	client *redis.Client
}

func NewTodoCache(client *redis.Client) *TodoCache {
	return &TodoCache{client: client}
}

// Get returns the cached payload for key, or nil on a miss.
func (c *TodoCache) Get(ctx context.Context, key string) ([]byte, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}

	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		observability.GlobalMetrics.CacheMissesTotal.WithLabelValues(userTodosKeyType).Inc()
		return nil, nil // Cache miss
	}
	if err != nil {
		return nil, err
	}
	observability.GlobalMetrics.CacheHitsTotal.WithLabelValues(userTodosKeyType).Inc()
	return val, nil
}

// Set stores data as JSON with TodoCacheTTL.
func (c *TodoCache) Set(ctx context.Context, key string, data interface{}) error {
	if c == nil || c.client == nil {
		return nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, jsonData, TodoCacheTTL).Err()
}

func (c *TodoCache) Invalidate(ctx context.Context, key string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, key).Err()
}

// Build cache key for user todos
func UserTodosKey(userID string) string {
	return fmt.Sprintf("todos:user:%s", userID)
}
