package actionexecutor

import (
	"sync"
	"time"
)

// fixedWindowLimiter caps submissions to maxRequests per window, resetting
// the counter when the window elapses. Simpler than a sliding window, and
// matches spec.md §4.7's "fixed window {max_requests, window}" contract.
type fixedWindowLimiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	count       int
	windowStart time.Time
}

func newFixedWindowLimiter(maxRequests int, window time.Duration) *fixedWindowLimiter {
	return &fixedWindowLimiter{
		maxRequests: maxRequests,
		window:      window,
		windowStart: time.Now(),
	}
}

// Allow reports whether a new submission fits in the current window,
// incrementing the counter if so.
func (l *fixedWindowLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.count = 0
	}
	if l.count >= l.maxRequests {
		return false
	}
	l.count++
	return true
}
