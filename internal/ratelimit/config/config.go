package config

import (
	"errors"
	"time"
)

// Config holds token bucket settings shared by every identity.
type Config struct {
	Enabled            bool          `json:"enabled"`
	RequestsPerMinute  int           `json:"requests_per_minute"`
	Burst              int           `json:"burst"`
	IdleTTL            time.Duration `json:"idle_ttl"`
	MaxBucketsPerShard int           `json:"max_buckets_per_shard"`
}

// DefaultConfig returns 60 requests per minute with a burst of 10.
func DefaultConfig() *Config {
	return &Config{
		Enabled:            true,
		RequestsPerMinute:  60,
		Burst:              10,
		IdleTTL:            10 * time.Minute,
		MaxBucketsPerShard: 4096,
	}
}

// RefillPerSecond converts the per-minute setting into the bucket refill rate.
func (c *Config) RefillPerSecond() float64 {
	return float64(c.RequestsPerMinute) / 60.0
}

func (c *Config) Validate() error {
	if c.RequestsPerMinute <= 0 {
		return errors.New("requests per minute must be positive")
	}
	if c.Burst <= 0 {
		return errors.New("burst must be positive")
	}
	if c.IdleTTL <= 0 {
		return errors.New("idle ttl must be positive")
	}
	if c.MaxBucketsPerShard <= 0 {
		return errors.New("max buckets per shard must be positive")
	}
	return nil
}
