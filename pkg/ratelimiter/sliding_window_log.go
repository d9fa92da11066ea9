package ratelimiter

import (
	"sync"
	"time"
)

// SlidingWindowLog limits by keeping the timestamp of every admitted
// request inside the window. Exact at the cost of O(limit) memory, so
// it suits modest limits.
type SlidingWindowLog struct {
	limit  int
	window time.Duration
	log    []time.Time // admitted timestamps in ascending order
	mutex  sync.Mutex
}

// NewSlidingWindowLog creates a SlidingWindowLog allowing limit requests
// per window.
func NewSlidingWindowLog(limit int, window time.Duration) *SlidingWindowLog {
	return &SlidingWindowLog{
		limit:  limit,
		window: window,
	}
}

// Allow expires timestamps that left the window and admits the request
// if fewer than limit remain.
func (swl *SlidingWindowLog) Allow() bool {
	swl.mutex.Lock()
	defer swl.mutex.Unlock()

	boundary := time.Now().Add(-swl.window)
	expired := 0
	for expired < len(swl.log) && swl.log[expired].Before(boundary) {
		expired++
	}
	if expired > 0 {
		swl.log = append(swl.log[:0], swl.log[expired:]...)
	}

	if len(swl.log) < swl.limit {
		swl.log = append(swl.log, time.Now())
		return true
	}
	return false
}

var _ RateLimiter = (*SlidingWindowLog)(nil)
