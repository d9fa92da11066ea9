package ratelimiter

import (
	"sync"
	"time"
)

// FixedWindowCounter limits with a fixed window counter: at most limit
// requests per window, with the counter reset when a new window starts.
// Up to 2x the limit can pass around a window boundary, which is the
// known trade-off of this algorithm.
type FixedWindowCounter struct {
	limit       int
	window      time.Duration
	count       int
	windowStart time.Time
	mutex       sync.Mutex
}

// NewFixedWindowCounter creates a FixedWindowCounter allowing limit
// requests per window.
func NewFixedWindowCounter(limit int, window time.Duration) *FixedWindowCounter {
	return &FixedWindowCounter{
		limit:       limit,
		window:      window,
		windowStart: time.Now(),
	}
}

// Allow resets the counter when the window has elapsed, then admits the
// request if the counter is below the limit.
func (fwc *FixedWindowCounter) Allow() bool {
	fwc.mutex.Lock()
	defer fwc.mutex.Unlock()

	now := time.Now()
	if now.After(fwc.windowStart.Add(fwc.window)) {
		fwc.windowStart = now
		fwc.count = 0
	}

	if fwc.count < fwc.limit {
		fwc.count++
		return true
	}
	return false
}

var _ RateLimiter = (*FixedWindowCounter)(nil)
