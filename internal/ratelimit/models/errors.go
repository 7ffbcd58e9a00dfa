package models

import (
	"fmt"
	"math"
	"time"
)

// RateLimitError is returned by Admit when the identity's bucket holds fewer
// tokens than the request costs.
type RateLimitError struct {
	RetryAfter time.Duration
	Limit      int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %.3fs", e.RetryAfter.Seconds())
}

// RetryAfterSeconds reports RetryAfter in seconds, rounded to milliseconds.
func (e *RateLimitError) RetryAfterSeconds() float64 {
	return math.Round(e.RetryAfter.Seconds()*1000) / 1000
}
