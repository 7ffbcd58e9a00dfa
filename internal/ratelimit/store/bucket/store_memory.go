package bucket

import (
	"context"
	"errors"
	"math/bits"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/time/rate"

	"github.com/patrickcarmichael/changedetection-mcp-server/internal/ratelimit/models"
)

const (
	defaultShardCount         = 64
	defaultMaxBucketsPerShard = 4096
)

var errInvalidCost = errors.New("cost must be positive")

// InMemoryBucketStore keeps one token bucket per identity in a sharded map.
// A shard lock guards only map membership; token arithmetic happens under the
// bucket's own lock so distinct identities never wait on each other's updates.
// Buckets live only as long as the process.
type InMemoryBucketStore struct {
	shards      []*shard
	mask        uint64
	maxPerShard int
	evictions   atomic.Uint64
}

type shard struct {
	mu      sync.RWMutex
	buckets map[string]*tokenBucket
}

type tokenBucket struct {
	mu         sync.Mutex
	limiter    *rate.Limiter
	policy     models.BucketPolicy
	lastRefill time.Time
	// evicted is set under mu once the bucket leaves its shard; holders must
	// look the key up again.
	evicted bool
	// lastSeen is unix nanos, read without mu by eviction.
	lastSeen atomic.Int64
}

// fullAt reports whether the bucket has refilled to capacity. Caller holds mu.
func (b *tokenBucket) fullAt(now time.Time) bool {
	return b.limiter.TokensAt(now) >= float64(b.policy.Capacity)
}

type Option func(*InMemoryBucketStore)

// WithShardCount sets the number of shards, rounded up to a power of two.
func WithShardCount(n int) Option {
	return func(s *InMemoryBucketStore) {
		if n > 0 {
			s.shards = make([]*shard, 1<<bits.Len(uint(n-1)))
		}
	}
}

// WithMaxBucketsPerShard caps each shard; inserting past the cap evicts a
// bucket that has refilled to capacity, see evictLocked.
func WithMaxBucketsPerShard(n int) Option {
	return func(s *InMemoryBucketStore) {
		if n > 0 {
			s.maxPerShard = n
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *InMemoryBucketStore {
	s := &InMemoryBucketStore{
		shards:      make([]*shard, defaultShardCount),
		maxPerShard: defaultMaxBucketsPerShard,
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := range s.shards {
		s.shards[i] = &shard{buckets: make(map[string]*tokenBucket)}
	}
	s.mask = uint64(len(s.shards) - 1)
	return s
}

// AllowN refills the bucket at now and consumes cost tokens when available.
func (s *InMemoryBucketStore) AllowN(_ context.Context, key string, cost int, policy models.BucketPolicy, now time.Time) (*models.RateLimitResult, error) {
	if cost < 1 {
		return nil, errInvalidCost
	}

	b := s.lockedBucket(key, policy, now)
	defer b.mu.Unlock()

	if b.policy != policy {
		b.limiter.SetLimitAt(now, rate.Limit(policy.RefillPerSecond))
		b.limiter.SetBurstAt(now, policy.Capacity)
		b.policy = policy
	}
	b.lastRefill = now
	b.lastSeen.Store(now.UnixNano())

	if b.limiter.AllowN(now, cost) {
		return &models.RateLimitResult{
			Allowed:   true,
			Limit:     policy.Capacity,
			Remaining: b.limiter.TokensAt(now),
		}, nil
	}

	tokens := b.limiter.TokensAt(now)
	return &models.RateLimitResult{
		Allowed:    false,
		Limit:      policy.Capacity,
		Remaining:  tokens,
		RetryAfter: models.RetryAfterFor(cost, tokens, policy.RefillPerSecond),
	}, nil
}

// Reset clears the bucket for a key.
func (s *InMemoryBucketStore) Reset(_ context.Context, key string) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if b := sh.buckets[key]; b != nil {
		b.mu.Lock()
		s.removeLocked(sh, key, b)
		b.mu.Unlock()
	}
	return nil
}

// Peek reports the bucket state at now without consuming tokens.
func (s *InMemoryBucketStore) Peek(_ context.Context, key string, now time.Time) (models.RateBucket, bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	b := sh.buckets[key]
	sh.mu.RUnlock()
	if b == nil {
		return models.RateBucket{}, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return models.RateBucket{
		Tokens:     b.limiter.TokensAt(now),
		LastRefill: b.lastRefill,
		Capacity:   b.policy.Capacity,
		RefillRate: b.policy.RefillPerSecond,
	}, true
}

// Sweep removes buckets unused for idleFor that have also refilled to
// capacity by now. A partially refilled bucket stays until a later sweep
// finds it full.
func (s *InMemoryBucketStore) Sweep(_ context.Context, now time.Time, idleFor time.Duration) int {
	limit := now.Add(-idleFor).UnixNano()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, b := range sh.buckets {
			if b.lastSeen.Load() >= limit {
				continue
			}
			b.mu.Lock()
			if b.fullAt(now) {
				s.removeLocked(sh, key, b)
				removed++
			}
			b.mu.Unlock()
		}
		sh.mu.Unlock()
	}
	s.evictions.Add(uint64(removed))
	return removed
}

// Len returns the total number of buckets.
func (s *InMemoryBucketStore) Len() int {
	total, _ := s.Stats()
	return total
}

// Stats returns the total bucket count and the count per shard.
func (s *InMemoryBucketStore) Stats() (total int, perShard []int) {
	perShard = make([]int, len(s.shards))
	for i, sh := range s.shards {
		sh.mu.RLock()
		perShard[i] = len(sh.buckets)
		sh.mu.RUnlock()
		total += perShard[i]
	}
	return total, perShard
}

// Evictions returns how many buckets were dropped by the LRU cap or Sweep.
func (s *InMemoryBucketStore) Evictions() uint64 {
	return s.evictions.Load()
}

func (s *InMemoryBucketStore) shardFor(key string) *shard {
	return s.shards[xxhash.Sum64String(key)&s.mask]
}

// lockedBucket returns the live bucket for key with its mu held, creating a
// full one when absent. A bucket evicted between lookup and locking is
// retried so tokens are never spent on a bucket that left the shard.
func (s *InMemoryBucketStore) lockedBucket(key string, policy models.BucketPolicy, now time.Time) *tokenBucket {
	for {
		b := s.getOrCreateBucket(key, policy, now)
		b.mu.Lock()
		if !b.evicted {
			return b
		}
		b.mu.Unlock()
	}
}

// getOrCreateBucket returns an existing bucket or creates a full one.
func (s *InMemoryBucketStore) getOrCreateBucket(key string, policy models.BucketPolicy, now time.Time) *tokenBucket {
	sh := s.shardFor(key)

	sh.mu.RLock()
	b := sh.buckets[key]
	sh.mu.RUnlock()
	if b != nil {
		return b
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if b := sh.buckets[key]; b != nil {
		return b
	}
	if len(sh.buckets) >= s.maxPerShard {
		s.evictLocked(sh, now)
	}

	b = &tokenBucket{
		limiter:    rate.NewLimiter(rate.Limit(policy.RefillPerSecond), policy.Capacity),
		policy:     policy,
		lastRefill: now,
	}
	b.lastSeen.Store(now.UnixNano())
	sh.buckets[key] = b
	return b
}

// evictLocked makes room in a full shard. It drops the least recently seen
// bucket that has refilled to capacity. When every bucket is still
// refilling, the one holding the most tokens goes: its identity may regain at
// most capacity minus those tokens, the smallest grant any choice allows
// without refusing the new identity. Caller holds sh.mu.
func (s *InMemoryBucketStore) evictLocked(sh *shard, now time.Time) {
	var (
		victimKey  string
		victim     *tokenBucket
		victimSeen int64
		fullest    float64
		haveFull   bool
	)
	for key, b := range sh.buckets {
		b.mu.Lock()
		tokens := b.limiter.TokensAt(now)
		full := tokens >= float64(b.policy.Capacity)
		b.mu.Unlock()
		seen := b.lastSeen.Load()

		switch {
		case full && (!haveFull || seen < victimSeen):
			victimKey, victim, victimSeen, haveFull = key, b, seen, true
		case !full && !haveFull && (victim == nil || tokens > fullest):
			victimKey, victim, fullest = key, b, tokens
		}
	}
	if victim == nil {
		return
	}
	victim.mu.Lock()
	s.removeLocked(sh, victimKey, victim)
	victim.mu.Unlock()
	s.evictions.Add(1)
}

// removeLocked deletes b from sh and marks it evicted. Caller holds sh.mu and
// b.mu.
func (s *InMemoryBucketStore) removeLocked(sh *shard, key string, b *tokenBucket) {
	delete(sh.buckets, key)
	b.evicted = true
}
