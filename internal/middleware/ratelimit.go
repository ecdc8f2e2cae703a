// ratelimit.go provides Gin middleware that enforces per-client rate limits,
// returning 429 responses when the configured requests-per-minute threshold
// is exceeded. When Redis is configured the limiter uses redis_rate so limits
// hold across replicas; otherwise an in-process token bucket applies per
// instance.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// RequestsPerMinute is the maximum number of requests allowed per minute
	RequestsPerMinute int
	// BurstSize is the maximum burst of requests allowed
	BurstSize int
	// CleanupInterval is how often to clean up expired entries
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig returns sensible defaults for the admin API
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 200, // Dashboard pages load several resources at once
		BurstSize:         50,
		CleanupInterval:   5 * time.Minute,
	}
}

// ImportRateLimitConfig returns stricter limits for bulk import endpoints
func ImportRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 10,
		BurstSize:         3,
		CleanupInterval:   5 * time.Minute,
	}
}

// Limiter decides whether a keyed request may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, remaining int)
	Limit() int
}

// rateLimitEntry tracks request counts for a single client
type rateLimitEntry struct {
	tokens     float64
	lastUpdate time.Time
}

// LocalRateLimiter implements a per-instance token bucket rate limiter.
type LocalRateLimiter struct {
	config  RateLimitConfig
	entries map[string]*rateLimitEntry
	mu      sync.Mutex
	stopCh  chan struct{}
}

// NewLocalRateLimiter creates an in-process rate limiter with the given config.
func NewLocalRateLimiter(config RateLimitConfig) *LocalRateLimiter {
	rl := &LocalRateLimiter{
		config:  config,
		entries: make(map[string]*rateLimitEntry),
		stopCh:  make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// cleanup periodically removes expired entries
func (rl *LocalRateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, entry := range rl.entries {
				if now.Sub(entry.lastUpdate) > 10*time.Minute {
					delete(rl.entries, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine
func (rl *LocalRateLimiter) Stop() {
	close(rl.stopCh)
}

// Limit reports the configured requests-per-minute threshold.
func (rl *LocalRateLimiter) Limit() int {
	return rl.config.RequestsPerMinute
}

// Allow checks if a request from the given key should be allowed
func (rl *LocalRateLimiter) Allow(_ context.Context, key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	entry, exists := rl.entries[key]

	if !exists {
		// New client, give them full burst
		rl.entries[key] = &rateLimitEntry{
			tokens:     float64(rl.config.BurstSize) - 1,
			lastUpdate: now,
		}
		return true, rl.config.BurstSize - 1
	}

	// Refill based on time elapsed, capped at burst size
	elapsed := now.Sub(entry.lastUpdate)
	tokensPerSecond := float64(rl.config.RequestsPerMinute) / 60.0
	entry.tokens = min(float64(rl.config.BurstSize), entry.tokens+elapsed.Seconds()*tokensPerSecond)
	entry.lastUpdate = now

	if entry.tokens >= 1 {
		entry.tokens--
		return true, int(entry.tokens)
	}
	return false, 0
}

// RedisRateLimiter enforces limits through redis_rate's GCRA implementation
// so they hold across all running instances. On Redis errors it fails open;
// losing rate limiting briefly is preferable to rejecting all admin traffic.
type RedisRateLimiter struct {
	limiter *redis_rate.Limiter
	config  RateLimitConfig
}

// NewRedisRateLimiter creates a Redis-backed limiter over the given client.
func NewRedisRateLimiter(client *redis.Client, config RateLimitConfig) *RedisRateLimiter {
	return &RedisRateLimiter{
		limiter: redis_rate.NewLimiter(client),
		config:  config,
	}
}

// Limit reports the configured requests-per-minute threshold.
func (rl *RedisRateLimiter) Limit() int {
	return rl.config.RequestsPerMinute
}

// Allow checks the shared Redis bucket for the given key.
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, int) {
	limit := redis_rate.Limit{
		Rate:   rl.config.RequestsPerMinute,
		Burst:  rl.config.BurstSize,
		Period: time.Minute,
	}
	res, err := rl.limiter.Allow(ctx, "ratelimit:"+key, limit)
	if err != nil {
		slog.Warn("redis rate limit check failed, allowing request", "error", err)
		return true, rl.config.BurstSize
	}
	return res.Allowed > 0, res.Remaining
}

// RateLimitMiddleware creates a Gin middleware that rate limits requests
func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := getRateLimitKey(c)

		allowed, remaining := limiter.Allow(c.Request.Context(), key)
		if !allowed {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": 60,
			})
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		c.Next()
	}
}

// getRateLimitKey determines the key to use for rate limiting
// Priority: user_id > api_key_id > IP address
func getRateLimitKey(c *gin.Context) string {
	if userID := c.GetString("user_id"); userID != "" {
		return "user:" + userID
	}
	if apiKeyID := c.GetString("api_key_id"); apiKeyID != "" {
		return "apikey:" + apiKeyID
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}
