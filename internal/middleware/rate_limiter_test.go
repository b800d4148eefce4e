package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"todo_auth/internal/user"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

// setupTestRouter creates a test Gin router with a per-user rate limiter
func setupTestRouter(redisClient *redis.Client, config *RateLimiterConfig, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	router.Use(func(c *gin.Context) {
		c.Set(user.ContextKey, &user.User{ID: userID})
		c.Next()
	})

	router.Use(RateLimiterMiddleware(redisClient, config, UserKey))

	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	return router
}

func doGet(router *gin.Engine) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_AllowRequestsUnderLimit(t *testing.T) {
	_, redisClient := setupTestRedis(t)

	config := &RateLimiterConfig{
		Capacity:   5,
		RefillRate: 10.0,
	}

	router := setupTestRouter(redisClient, config, "u1")

	for i := 0; i < 5; i++ {
		w := doGet(router)
		assert.Equal(t, http.StatusOK, w.Code, "Request %d should succeed", i+1)
	}
}

func TestRateLimiter_DenyRequestsOverLimit(t *testing.T) {
	_, redisClient := setupTestRedis(t)

	config := &RateLimiterConfig{
		Capacity:   3,
		RefillRate: 0.01,
	}

	router := setupTestRouter(redisClient, config, "u1")

	for i := 0; i < 3; i++ {
		w := doGet(router)
		assert.Equal(t, http.StatusOK, w.Code, "Request %d should succeed", i+1)
	}

	w := doGet(router)
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "Request should be rate limited")
	assert.JSONEq(t, `{"message":{"msgBody":"Too many requests","msgError":true}}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimiter_TokenRefill(t *testing.T) {
	_, redisClient := setupTestRedis(t)

	config := &RateLimiterConfig{
		Capacity:   2,
		RefillRate: 20.0, // one token every 50ms
	}

	router := setupTestRouter(redisClient, config, "u1")

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, doGet(router).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, doGet(router).Code)

	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, http.StatusOK, doGet(router).Code, "Request should succeed after token refill")
}

func TestRateLimiter_DifferentUsers(t *testing.T) {
	_, redisClient := setupTestRedis(t)

	config := &RateLimiterConfig{
		Capacity:   2,
		RefillRate: 0.01,
	}

	router1 := setupTestRouter(redisClient, config, "u1")
	router2 := setupTestRouter(redisClient, config, "u2")

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, doGet(router1).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, doGet(router1).Code)

	assert.Equal(t, http.StatusOK, doGet(router2).Code, "User 2 should not be affected by User 1's rate limit")
}

func TestRateLimiter_ClientIPKey(t *testing.T) {
	_, redisClient := setupTestRedis(t)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimiterMiddleware(redisClient, &RateLimiterConfig{Capacity: 1, RefillRate: 0.01}, ClientIPKey))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:5678"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1234"))
}

func TestRateLimiter_NoUserInContextPassesThrough(t *testing.T) {
	_, redisClient := setupTestRedis(t)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimiterMiddleware(redisClient, &RateLimiterConfig{Capacity: 1, RefillRate: 0.01}, UserKey))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doGet(router).Code)
	}
}

func TestRateLimiter_NilClientDisabled(t *testing.T) {
	router := setupTestRouter(nil, &RateLimiterConfig{Capacity: 1, RefillRate: 0.01}, "u1")

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doGet(router).Code)
	}
}

func TestRateLimiter_RedisFailure_FailOpen(t *testing.T) {
	mr, redisClient := setupTestRedis(t)
	router := setupTestRouter(redisClient, &RateLimiterConfig{Capacity: 1, RefillRate: 0.01}, "u1")

	mr.Close()

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doGet(router).Code)
	}
}

func TestRateLimiter_BucketExpires(t *testing.T) {
	mr, redisClient := setupTestRedis(t)
	router := setupTestRouter(redisClient, &RateLimiterConfig{Capacity: 4, RefillRate: 2}, "u1")

	require.Equal(t, http.StatusOK, doGet(router).Code)

	key := UserRateLimiterKey("u1")
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 3*time.Second, mr.TTL(key))
}

func TestRateLimiterKeys(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{name: "user", got: UserRateLimiterKey("abc"), expected: "rate_limiter:user:abc"},
		{name: "ip", got: IPRateLimiterKey("10.0.0.1"), expected: "rate_limiter:ip:10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}

func TestRateLimiterPresets(t *testing.T) {
	config := DefaultRateLimiterConfig()
	require.NotNil(t, config)
	assert.Equal(t, 20, config.Capacity)
	assert.Equal(t, 10.0, config.RefillRate)

	strict := StrictRateLimiter()
	assert.Less(t, strict.Capacity, config.Capacity)
	assert.Less(t, strict.RefillRate, config.RefillRate)
}
