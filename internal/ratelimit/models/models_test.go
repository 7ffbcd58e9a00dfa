package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryAfterFor(t *testing.T) {
	tests := []struct {
		name     string
		cost     int
		tokens   float64
		rate     float64
		expected time.Duration
	}{
		{name: "empty bucket at one per second", cost: 1, tokens: 0, rate: 1, expected: time.Second},
		{name: "partial token", cost: 1, tokens: 0.75, rate: 1, expected: 250 * time.Millisecond},
		{name: "multi token cost", cost: 3, tokens: 1, rate: 0.5, expected: 4 * time.Second},
		{name: "rounds up to the millisecond", cost: 1, tokens: 0, rate: 3, expected: 334 * time.Millisecond},
		{name: "already available", cost: 1, tokens: 2, rate: 1, expected: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RetryAfterFor(tt.cost, tt.tokens, tt.rate))
		})
	}
}

func TestRateLimitError(t *testing.T) {
	err := &RateLimitError{RetryAfter: 1500 * time.Millisecond, Limit: 10}
	assert.InDelta(t, 1.5, err.RetryAfterSeconds(), 1e-9)
	assert.Contains(t, err.Error(), "retry after 1.500s")
}

func TestIdentities(t *testing.T) {
	t.Run("api key identity is hashed and stable", func(t *testing.T) {
		a := IdentityFromAPIKey("super-secret")
		b := IdentityFromAPIKey("super-secret")
		assert.Equal(t, a, b)
		assert.True(t, strings.HasPrefix(a, "key:"))
		assert.Len(t, a, len("key:")+apiKeyHashLen)
		assert.NotContains(t, a, "super-secret")
		assert.NotEqual(t, a, IdentityFromAPIKey("other-secret"))
	})

	t.Run("ipv6 colons cannot forge a prefix", func(t *testing.T) {
		assert.Equal(t, "ip:2001_db8__1", IdentityFromIP("2001:db8::1"))
		assert.Equal(t, "ip:key_abc", IdentityFromIP("key:abc"))
	})
}
