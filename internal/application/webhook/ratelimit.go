package webhook

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mbflow/automation-engine/internal/infrastructure/cache"
)

// rateLimiter enforces a fixed-window counter per endpoint, grounded on
// webhook_registry.go's checkRateLimit: Redis-backed when a cache is wired,
// falling back to an in-process counter otherwise. Redis errors fail open,
// matching the teacher's behavior.
type rateLimiter struct {
	cache *cache.RedisCache

	mu      sync.Mutex
	windows map[string]*localWindow
}

type localWindow struct {
	count    int
	expiresAt time.Time
}

func newRateLimiter(c *cache.RedisCache) *rateLimiter {
	return &rateLimiter{
		cache:   c,
		windows: make(map[string]*localWindow),
	}
}

// allow reports whether a request against endpointID is within limit
// requests per window. A nil or zero limit always allows.
func (rl *rateLimiter) allow(ctx context.Context, endpointID string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	if window <= 0 {
		window = time.Minute
	}

	if rl.cache != nil {
		return rl.allowRedis(ctx, endpointID, limit, window)
	}
	return rl.allowLocal(endpointID, limit, window), nil
}

func (rl *rateLimiter) allowRedis(ctx context.Context, endpointID string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf("webhook:%s:ratelimit", endpointID)

	count, err := rl.cache.Increment(ctx, key)
	if err != nil {
		return true, nil
	}

	if count == 1 {
		_ = rl.cache.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

func (rl *rateLimiter) allowLocal(endpointID string, limit int, window time.Duration) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.windows[endpointID]
	if !ok || now.After(w.expiresAt) {
		w = &localWindow{count: 0, expiresAt: now.Add(window)}
		rl.windows[endpointID] = w
	}
	w.count++
	return w.count <= limit
}
