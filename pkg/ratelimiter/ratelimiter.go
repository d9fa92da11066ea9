// Package ratelimiter provides in-process rate limiting algorithms:
// token bucket, leaky bucket, fixed window counter, sliding window log
// and sliding window counter. All implementations are safe for
// concurrent use and share the RateLimiter interface so the caller can
// pick an algorithm from configuration.
package ratelimiter

// RateLimiter decides whether a request may proceed.
type RateLimiter interface {
	// Allow returns true if the request is allowed, otherwise returns false.
	Allow() bool
}
