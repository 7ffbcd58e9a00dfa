// Package config loads the immutable process configuration.
//
// Sources, lowest to highest precedence: built-in defaults, an optional YAML
// file, the environment. Load is called once from main.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/patrickcarmichael/changedetection-mcp-server/internal/platform/logger"
	ratelimitconfig "github.com/patrickcarmichael/changedetection-mcp-server/internal/ratelimit/config"
)

// AppName names the XDG config directory.
const AppName = "changedetection-mcp"

// Environment keys.
const (
	KeyURL                = "CHANGEDETECTION_URL"
	KeyAPIKey             = "CHANGEDETECTION_API_KEY"
	KeyRateLimitEnabled   = "RATE_LIMIT_ENABLED"
	KeyRateLimitPerMinute = "RATE_LIMIT_PER_MINUTE"
	KeyRateLimitBurst     = "RATE_LIMIT_BURST"
	KeyRateLimitIdleTTL   = "RATE_LIMIT_IDLE_TTL"
	KeyRateLimitMaxShard  = "RATE_LIMIT_MAX_BUCKETS_PER_SHARD"
	KeyAllowedOrigins     = "ALLOWED_ORIGINS"
	KeyTrustProxyHeaders  = "TRUST_PROXY_HEADERS"
	KeyLogLevel           = "LOG_LEVEL"
	KeyLogFormat          = "LOG_FORMAT"
	KeyDebug              = "DEBUG"
	KeyEnableMetrics      = "ENABLE_METRICS"
	KeyMetricsPort        = "METRICS_PORT"
	KeyTransport          = "MCP_TRANSPORT"
	KeyHTTPAddr           = "HTTP_ADDR"
	KeyUpstreamTimeout    = "UPSTREAM_TIMEOUT"
	KeyConnectTimeout     = "UPSTREAM_CONNECT_TIMEOUT"
	KeyMaxRetries         = "UPSTREAM_MAX_RETRIES"
	KeyBreakerThreshold   = "UPSTREAM_BREAKER_THRESHOLD"
	KeyHealthTimeout      = "HEALTH_CHECK_TIMEOUT"
	KeyMaxURLLength       = "MAX_URL_LENGTH"
	KeyMaxTagLength       = "MAX_TAG_LENGTH"
	KeyConfigFile         = "CONFIG_FILE"
)

// Transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// RequiredKeys must be set explicitly for the server to be considered healthy.
var RequiredKeys = []string{KeyURL, KeyAPIKey}

// RecommendedKeys produce a health warning when left at their defaults.
var RecommendedKeys = []string{KeyLogLevel, KeyRateLimitEnabled, KeyEnableMetrics}

// Upstream configures the changedetection.io client.
type Upstream struct {
	BaseURL          string
	APIKey           string
	Timeout          time.Duration
	ConnectTimeout   time.Duration
	MaxRetries       int
	BreakerThreshold int
}

// Validation bounds inbound parameters.
type Validation struct {
	MaxURLLength int
	MaxTagLength int
}

// Server configures the exposed transports.
type Server struct {
	Transport         string
	HTTPAddr          string
	AllowedOrigins    []string
	TrustProxyHeaders bool
}

type Logging struct {
	Level  string
	Format string
	Debug  bool
}

type Metrics struct {
	Enabled bool
	Port    int
}

type Health struct {
	CheckTimeout time.Duration
}

// Config is the complete process configuration.
type Config struct {
	Upstream   Upstream
	RateLimit  ratelimitconfig.Config
	Validation Validation
	Server     Server
	Logging    Logging
	Metrics    Metrics
	Health     Health

	// File is the config file that was read, empty when none.
	File string

	provided map[string]struct{}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Upstream: Upstream{
			BaseURL:        "http://localhost:5000",
			Timeout:        30 * time.Second,
			ConnectTimeout: 10 * time.Second,
		},
		RateLimit: *ratelimitconfig.DefaultConfig(),
		Validation: Validation{
			MaxURLLength: 2048,
			MaxTagLength: 100,
		},
		Server: Server{
			Transport: TransportStdio,
			HTTPAddr:  ":8080",
		},
		Logging: Logging{
			Level:  "INFO",
			Format: "json",
		},
		Metrics: Metrics{
			Enabled: true,
			Port:    9090,
		},
		Health: Health{
			CheckTimeout: 5 * time.Second,
		},
		provided: map[string]struct{}{},
	}
}

// FromEnv loads configuration from the process environment.
func FromEnv() (*Config, error) {
	return Load(os.Environ())
}

// Load builds a Config from defaults, the optional YAML file, and environ
// (KEY=value entries, as returned by os.Environ).
func Load(environ []string) (*Config, error) {
	cfg := Default()
	env := envMap(environ)

	path, explicit := env[KeyConfigFile]
	if !explicit {
		path = defaultFilePath()
	}
	if path != "" {
		values, err := loadFile(path, env)
		switch {
		case err == nil:
			if err := cfg.apply(values); err != nil {
				return nil, fmt.Errorf("config file %s: %w", path, err)
			}
			cfg.File = path
		case !explicit && errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	if err := cfg.apply(env); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func defaultFilePath() string {
	if xdg.ConfigHome == "" {
		return ""
	}
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// IsSet reports whether key was provided by the file or the environment.
func (c *Config) IsSet(key string) bool {
	_, ok := c.provided[key]
	return ok
}

// MissingRequired lists required keys that were not provided.
func (c *Config) MissingRequired() []string {
	var missing []string
	for _, key := range RequiredKeys {
		if !c.IsSet(key) {
			missing = append(missing, key)
		}
	}
	return missing
}

// DefaultedRecommended lists recommended keys left at their defaults.
func (c *Config) DefaultedRecommended() []string {
	var defaulted []string
	for _, key := range RecommendedKeys {
		if !c.IsSet(key) {
			defaulted = append(defaulted, key)
		}
	}
	return defaulted
}

// APIKeyConfigured reports whether an upstream key is present. The key itself
// is never exposed for logging.
func (c *Config) APIKeyConfigured() bool {
	return c.Upstream.APIKey != ""
}

// Validate enforces ranges and formats after all sources are applied.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL", KeyURL)
	}
	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	if c.Validation.MaxURLLength <= 0 {
		return fmt.Errorf("%s must be positive", KeyMaxURLLength)
	}
	if c.Validation.MaxTagLength <= 0 {
		return fmt.Errorf("%s must be positive", KeyMaxTagLength)
	}
	if c.Server.Transport != TransportStdio && c.Server.Transport != TransportHTTP {
		return fmt.Errorf("%s must be %q or %q", KeyTransport, TransportStdio, TransportHTTP)
	}
	if c.Server.Transport == TransportHTTP && c.Server.HTTPAddr == "" {
		return fmt.Errorf("%s is required for the http transport", KeyHTTPAddr)
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%s: %w", KeyLogLevel, err)
	}
	if f := c.Logging.Format; f != "json" && f != "text" {
		return fmt.Errorf("%s must be json or text", KeyLogFormat)
	}
	if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("%s must be a valid port", KeyMetricsPort)
	}
	if c.Upstream.Timeout <= 0 || c.Upstream.ConnectTimeout <= 0 {
		return errors.New("upstream timeouts must be positive")
	}
	if c.Upstream.MaxRetries < 0 {
		return fmt.Errorf("%s must not be negative", KeyMaxRetries)
	}
	if c.Upstream.BreakerThreshold < 0 {
		return fmt.Errorf("%s must not be negative", KeyBreakerThreshold)
	}
	if c.Health.CheckTimeout <= 0 {
		return fmt.Errorf("%s must be positive", KeyHealthTimeout)
	}
	return nil
}

// apply copies recognised keys from values onto c.
func (c *Config) apply(values map[string]string) error {
	var err error
	set := func(key string, fn func(string) error) {
		if err != nil {
			return
		}
		value, ok := values[key]
		if !ok || strings.TrimSpace(value) == "" {
			return
		}
		if ferr := fn(value); ferr != nil {
			err = ferr
			return
		}
		c.provided[key] = struct{}{}
	}
	str := func(dst *string) func(string) error {
		return func(v string) error {
			*dst = strings.TrimSpace(v)
			return nil
		}
	}

	set(KeyURL, func(v string) error {
		c.Upstream.BaseURL = strings.TrimRight(strings.TrimSpace(v), "/")
		return nil
	})
	set(KeyAPIKey, str(&c.Upstream.APIKey))
	set(KeyRateLimitEnabled, boolValue(KeyRateLimitEnabled, &c.RateLimit.Enabled))
	set(KeyRateLimitPerMinute, intValue(KeyRateLimitPerMinute, &c.RateLimit.RequestsPerMinute))
	set(KeyRateLimitBurst, intValue(KeyRateLimitBurst, &c.RateLimit.Burst))
	set(KeyRateLimitIdleTTL, durationValue(KeyRateLimitIdleTTL, &c.RateLimit.IdleTTL))
	set(KeyRateLimitMaxShard, intValue(KeyRateLimitMaxShard, &c.RateLimit.MaxBucketsPerShard))
	set(KeyAllowedOrigins, listValue(&c.Server.AllowedOrigins))
	set(KeyTrustProxyHeaders, boolValue(KeyTrustProxyHeaders, &c.Server.TrustProxyHeaders))
	set(KeyLogLevel, str(&c.Logging.Level))
	set(KeyLogFormat, func(v string) error {
		c.Logging.Format = strings.ToLower(strings.TrimSpace(v))
		return nil
	})
	set(KeyDebug, boolValue(KeyDebug, &c.Logging.Debug))
	set(KeyEnableMetrics, boolValue(KeyEnableMetrics, &c.Metrics.Enabled))
	set(KeyMetricsPort, intValue(KeyMetricsPort, &c.Metrics.Port))
	set(KeyTransport, func(v string) error {
		c.Server.Transport = strings.ToLower(strings.TrimSpace(v))
		return nil
	})
	set(KeyHTTPAddr, str(&c.Server.HTTPAddr))
	set(KeyUpstreamTimeout, durationValue(KeyUpstreamTimeout, &c.Upstream.Timeout))
	set(KeyConnectTimeout, durationValue(KeyConnectTimeout, &c.Upstream.ConnectTimeout))
	set(KeyMaxRetries, intValue(KeyMaxRetries, &c.Upstream.MaxRetries))
	set(KeyBreakerThreshold, intValue(KeyBreakerThreshold, &c.Upstream.BreakerThreshold))
	set(KeyHealthTimeout, durationValue(KeyHealthTimeout, &c.Health.CheckTimeout))
	set(KeyMaxURLLength, intValue(KeyMaxURLLength, &c.Validation.MaxURLLength))
	set(KeyMaxTagLength, intValue(KeyMaxTagLength, &c.Validation.MaxTagLength))
	return err
}
