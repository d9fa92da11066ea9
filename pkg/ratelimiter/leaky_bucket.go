package ratelimiter

import (
	"sync"
	"time"
)

// LeakyBucket limits with the leaky bucket algorithm: requests fill the
// bucket and drain at a fixed rate, which smooths bursts into a steady
// outflow. A request arriving at a full bucket is rejected.
type LeakyBucket struct {
	rate       float64 // drain rate in requests per second
	capacity   float64
	waterLevel float64
	lastLeak   time.Time
	mutex      sync.Mutex
}

// NewLeakyBucket creates a LeakyBucket draining rate requests per second
// with the given capacity. The bucket starts empty.
func NewLeakyBucket(rate float64, capacity int) *LeakyBucket {
	return &LeakyBucket{
		rate:     rate,
		capacity: float64(capacity),
		lastLeak: time.Now(),
	}
}

// Allow drains the bucket for the elapsed time and adds the request if
// the bucket is not full.
func (lb *LeakyBucket) Allow() bool {
	lb.mutex.Lock()
	defer lb.mutex.Unlock()

	now := time.Now()
	elapsed := now.Sub(lb.lastLeak)
	leaked := elapsed.Seconds() * lb.rate
	if leaked > 0 {
		lb.waterLevel -= leaked
		if lb.waterLevel < 0 {
			lb.waterLevel = 0
		}
		lb.lastLeak = now
	}

	if lb.waterLevel < lb.capacity {
		lb.waterLevel++
		return true
	}
	return false
}

var _ RateLimiter = (*LeakyBucket)(nil)
