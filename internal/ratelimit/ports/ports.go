// Package ports defines the interfaces the ratelimit service depends on.
package ports

import (
	"context"
	"time"

	"github.com/patrickcarmichael/changedetection-mcp-server/internal/ratelimit/models"
)

// BucketStore holds one token bucket per identity.
type BucketStore interface {
	// AllowN refills the bucket for key at now and consumes cost tokens if
	// enough are available. Creates the bucket, full, on first use.
	AllowN(ctx context.Context, key string, cost int, policy models.BucketPolicy, now time.Time) (*models.RateLimitResult, error)

	// Reset drops the bucket for key; the next request starts full.
	Reset(ctx context.Context, key string) error

	// Peek returns the current state of the bucket for key without consuming.
	Peek(ctx context.Context, key string, now time.Time) (models.RateBucket, bool)

	// Sweep evicts buckets unused for idleFor that have refilled to capacity
	// by now, and returns how many.
	Sweep(ctx context.Context, now time.Time, idleFor time.Duration) int

	// Len returns the number of live buckets.
	Len() int

	// Evictions returns how many buckets were dropped so far.
	Evictions() uint64
}

// Metrics receives limiter outcomes.
type Metrics interface {
	RecordAdmitted()
	RecordRejected()
	RecordEvicted(n int)
	SetActiveBuckets(n int)
}
