package middleware

// DefaultRateLimiterConfig is used on authenticated routes.
// Burst: 20 requests, Sustained: 10 requests per second
func DefaultRateLimiterConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		Capacity:   20,
		RefillRate: 10.0,
	}
}

// StrictRateLimiter - For credential endpoints (register, login)
// Burst: 5 requests, Sustained: 1 request every 2 seconds
func StrictRateLimiter() *RateLimiterConfig {
	return &RateLimiterConfig{
		Capacity:   5,
		RefillRate: 0.5,
	}
}
