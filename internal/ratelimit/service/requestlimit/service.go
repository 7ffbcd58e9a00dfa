package requestlimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/patrickcarmichael/changedetection-mcp-server/internal/platform/logger"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/ratelimit/config"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/ratelimit/models"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/ratelimit/ports"
)

// Type aliases for interfaces from ports package.
type (
	BucketStore = ports.BucketStore
	Metrics     = ports.Metrics
)

const anonymousIdentity = "anonymous"

// minJanitorInterval bounds how often RunJanitor sweeps.
const minJanitorInterval = time.Second

// Service admits or rejects requests per client identity. It is built once in
// main and shared by every transport.
type Service struct {
	buckets BucketStore
	logger  *log.Logger
	config  *config.Config
	metrics Metrics
	now     func() time.Time
	policy  models.BucketPolicy
}

type Option func(*Service)

func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock replaces time.Now; tests pass a fake clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(buckets BucketStore, opts ...Option) (*Service, error) {
	if buckets == nil {
		return nil, errors.New("buckets store is required")
	}

	svc := &Service{
		buckets: buckets,
		config:  config.DefaultConfig(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.config == nil {
		return nil, errors.New("config is required")
	}
	if svc.now == nil {
		return nil, errors.New("clock is required")
	}
	if err := svc.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rate limit config: %w", err)
	}
	if svc.logger == nil {
		svc.logger = logger.Discard()
	}
	svc.policy = models.BucketPolicy{
		Capacity:        svc.config.Burst,
		RefillPerSecond: svc.config.RefillPerSecond(),
	}

	if !svc.config.Enabled {
		svc.logger.Info("rate limiting disabled")
	}
	return svc, nil
}

// Admit spends cost tokens from identity's bucket. It returns a
// *models.RateLimitError when the bucket cannot cover the cost, and nil when
// limiting is disabled.
func (s *Service) Admit(ctx context.Context, identity string, cost int) error {
	if !s.config.Enabled {
		return nil
	}
	if identity == "" {
		identity = anonymousIdentity
	}
	if cost < 1 {
		cost = 1
	}

	result, err := s.buckets.AllowN(ctx, identity, cost, s.policy, s.now())
	if err != nil {
		return fmt.Errorf("check rate limit: %w", err)
	}

	if !result.Allowed {
		if s.metrics != nil {
			s.metrics.RecordRejected()
		}
		s.logger.Warn("rate limit exceeded",
			"identity", identity,
			"cost", cost,
			"retry_after_ms", result.RetryAfter.Milliseconds(),
		)
		return &models.RateLimitError{RetryAfter: result.RetryAfter, Limit: result.Limit}
	}

	if s.metrics != nil {
		s.metrics.RecordAdmitted()
	}
	return nil
}

// Reset refills identity's bucket.
func (s *Service) Reset(ctx context.Context, identity string) error {
	return s.buckets.Reset(ctx, identity)
}

// Bucket returns identity's current bucket state.
func (s *Service) Bucket(ctx context.Context, identity string) (models.RateBucket, bool) {
	return s.buckets.Peek(ctx, identity, s.now())
}

// Stats summarizes limiter state.
func (s *Service) Stats() models.StatsResponse {
	return models.StatsResponse{
		Enabled:           s.config.Enabled,
		Policy:            s.policy,
		RequestsPerMinute: s.config.RequestsPerMinute,
		ActiveBuckets:     s.buckets.Len(),
		Evictions:         s.buckets.Evictions(),
	}
}

// Sweep evicts buckets idle for longer than the configured TTL.
func (s *Service) Sweep(ctx context.Context) int {
	removed := s.buckets.Sweep(ctx, s.now(), s.config.IdleTTL)
	if s.metrics != nil {
		s.metrics.RecordEvicted(removed)
		s.metrics.SetActiveBuckets(s.buckets.Len())
	}
	if removed > 0 {
		s.logger.Debug("evicted idle buckets", "count", removed, "remaining", s.buckets.Len())
	}
	return removed
}

// RunJanitor sweeps idle buckets every interval until ctx is done. An
// interval of zero uses half the idle TTL. Intervals below one second are
// raised to one second.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(s.janitorInterval(interval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

func (s *Service) janitorInterval(interval time.Duration) time.Duration {
	if interval <= 0 {
		interval = s.config.IdleTTL / 2
	}
	return max(interval, minJanitorInterval)
}
