package ratelimiter

import (
	"sync"
	"time"
)

// SlidingWindowCounter limits with a sliding window split into buckets.
// It spends O(numBuckets) memory instead of the log's O(limit) and is
// accurate to one bucket width at the window boundary.
type SlidingWindowCounter struct {
	limit         int
	window        time.Duration
	numBuckets    int
	bucketSize    time.Duration
	buckets       []int
	currentBucket int
	lastSlide     time.Time
	mutex         sync.Mutex
}

// NewSlidingWindowCounter creates a SlidingWindowCounter allowing limit
// requests per window, with the window divided into numBuckets buckets.
func NewSlidingWindowCounter(limit int, window time.Duration, numBuckets int) *SlidingWindowCounter {
	if numBuckets <= 0 {
		numBuckets = 10
	}
	return &SlidingWindowCounter{
		limit:      limit,
		window:     window,
		numBuckets: numBuckets,
		bucketSize: window / time.Duration(numBuckets),
		buckets:    make([]int, numBuckets),
		lastSlide:  time.Now(),
	}
}

// slideWindow advances the window by whole buckets, zeroing the buckets
// that fell out. lastSlide moves by the slid amount rather than to now,
// so fractional bucket progress is not lost between calls.
func (swc *SlidingWindowCounter) slideWindow() {
	elapsed := time.Since(swc.lastSlide)
	bucketsToSlide := int(elapsed / swc.bucketSize)
	if bucketsToSlide <= 0 {
		return
	}

	if bucketsToSlide >= swc.numBuckets {
		for i := range swc.buckets {
			swc.buckets[i] = 0
		}
	} else {
		for i := 1; i <= bucketsToSlide; i++ {
			swc.buckets[(swc.currentBucket+i)%swc.numBuckets] = 0
		}
	}
	swc.currentBucket = (swc.currentBucket + bucketsToSlide) % swc.numBuckets
	swc.lastSlide = swc.lastSlide.Add(time.Duration(bucketsToSlide) * swc.bucketSize)
}

// Allow slides the window forward and admits the request if the total
// count across all buckets is below the limit.
func (swc *SlidingWindowCounter) Allow() bool {
	swc.mutex.Lock()
	defer swc.mutex.Unlock()

	swc.slideWindow()

	total := 0
	for _, count := range swc.buckets {
		total += count
	}

	if total < swc.limit {
		swc.buckets[swc.currentBucket]++
		return true
	}
	return false
}

var _ RateLimiter = (*SlidingWindowCounter)(nil)
