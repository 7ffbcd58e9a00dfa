package models

import (
	"math"
	"time"
)

// BucketPolicy is the shape of every token bucket.
type BucketPolicy struct {
	Capacity        int     `json:"capacity"`
	RefillPerSecond float64 `json:"refill_per_second"`
}

// RateLimitResult represents the outcome of an admission check.
type RateLimitResult struct {
	Allowed   bool    `json:"allowed"`
	Limit     int     `json:"limit"`
	Remaining float64 `json:"remaining"`
	// RetryAfter is zero when Allowed.
	RetryAfter time.Duration `json:"retry_after"`
}

// RateBucket is a point-in-time view of one identity's bucket.
// 0 <= Tokens <= Capacity always holds.
type RateBucket struct {
	Tokens     float64   `json:"tokens"`
	LastRefill time.Time `json:"last_refill"`
	Capacity   int       `json:"capacity"`
	RefillRate float64   `json:"refill_rate"`
}

// RetryAfterFor is the wait until cost tokens are available, given the
// current token count. Rounded up to the millisecond so callers never retry
// early.
func RetryAfterFor(cost int, tokens, refillPerSecond float64) time.Duration {
	if refillPerSecond <= 0 {
		return time.Duration(math.MaxInt64)
	}
	missing := float64(cost) - tokens
	if missing <= 0 {
		return 0
	}
	secs := missing / refillPerSecond
	return time.Duration(math.Ceil(secs*1000)) * time.Millisecond
}
