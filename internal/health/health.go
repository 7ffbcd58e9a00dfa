// Package health runs the server's self checks: configuration presence,
// upstream reachability, and host resources.
package health

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/patrickcarmichael/changedetection-mcp-server/internal/platform/config"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/platform/logger"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/upstream"
	"github.com/patrickcarmichael/changedetection-mcp-server/pkg/platform/sentinel"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusSkipped   Status = "skipped"
)

const (
	CheckEnvironment = "environment"
	CheckUpstream    = "changedetection_api"
	CheckResources   = "system_resources"
)

// resourceThreshold is the usage percentage above which a resource is
// reported as degraded.
const resourceThreshold = 90.0

// Environment reports which configuration keys were explicitly provided.
type Environment interface {
	IsSet(key string) bool
}

// Prober calls the upstream API.
type Prober interface {
	Call(ctx context.Context, method, path string, body any) (*upstream.Response, error)
}

// Resources is one sample of host usage, in percent.
type Resources struct {
	CPUPercent    float64
	MemoryPercent float64
	DiskPercent   float64
}

type ResourceSampler interface {
	Sample(ctx context.Context) (Resources, error)
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Check          string            `json:"check"`
	Status         Status            `json:"status"`
	Details        map[string]string `json:"details,omitempty"`
	Error          string            `json:"error,omitempty"`
	Message        string            `json:"message,omitempty"`
	ResponseTimeMS *float64          `json:"response_time_ms,omitempty"`
	APIVersion     string            `json:"api_version,omitempty"`
	CPUPercent     *float64          `json:"cpu_percent,omitempty"`
	MemoryPercent  *float64          `json:"memory_percent,omitempty"`
	DiskPercent    *float64          `json:"disk_percent,omitempty"`
	Warnings       []string          `json:"warnings,omitempty"`

	passed int
	failed int
}

type Summary struct {
	Total    int      `json:"total"`
	Passed   int      `json:"passed"`
	Failed   int      `json:"failed"`
	Warnings []string `json:"warnings,omitempty"`
}

type ServerInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
}

// Report aggregates every check. Status is the worst check status.
type Report struct {
	Status     Status        `json:"status"`
	Timestamp  time.Time     `json:"timestamp"`
	DurationMS float64       `json:"duration_ms"`
	Checks     []CheckResult `json:"checks"`
	Summary    Summary       `json:"summary"`
	Server     ServerInfo    `json:"server"`
}

// ExitCode is 1 for an unhealthy report and 0 otherwise; degraded servers
// stay up.
func (r Report) ExitCode() int {
	if r.Status == StatusUnhealthy {
		return 1
	}
	return 0
}

// Checker runs all checks concurrently.
type Checker struct {
	env       Environment
	prober    Prober
	baseURL   string
	resources ResourceSampler
	timeout   time.Duration
	version   string
	now       func() time.Time
	logger    *log.Logger
}

type Option func(*Checker)

// WithUpstream enables the upstream probe. baseURL is only used in messages.
func WithUpstream(p Prober, baseURL string) Option {
	return func(c *Checker) {
		c.prober = p
		c.baseURL = baseURL
	}
}

func WithResources(s ResourceSampler) Option {
	return func(c *Checker) {
		c.resources = s
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithVersion(v string) Option {
	return func(c *Checker) {
		c.version = v
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Checker) {
		c.now = now
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(c *Checker) {
		c.logger = logger
	}
}

func New(env Environment, opts ...Option) *Checker {
	c := &Checker{
		env:     env,
		timeout: 5 * time.Second,
		version: "dev",
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Discard()
	}
	return c
}

// Run executes the checks and never fails; problems are part of the report.
func (c *Checker) Run(ctx context.Context) Report {
	start := c.now()

	results := make([]CheckResult, 3)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		results[0] = c.checkEnvironment()
		return nil
	})
	g.Go(func() error {
		results[1] = c.checkUpstream(gctx)
		return nil
	})
	g.Go(func() error {
		results[2] = c.checkResources(gctx)
		return nil
	})
	_ = g.Wait()

	report := Report{
		Status:    StatusHealthy,
		Timestamp: start.UTC(),
		Checks:    results,
		Server:    ServerInfo{Version: c.version, GoVersion: runtime.Version()},
	}
	for _, r := range results {
		report.Summary.Passed += r.passed
		report.Summary.Failed += r.failed
		report.Summary.Warnings = append(report.Summary.Warnings, r.Warnings...)
		switch r.Status {
		case StatusUnhealthy:
			report.Status = StatusUnhealthy
		case StatusDegraded:
			if report.Status == StatusHealthy {
				report.Status = StatusDegraded
			}
		}
	}
	report.Summary.Total = report.Summary.Passed + report.Summary.Failed
	report.DurationMS = millis(c.now().Sub(start))

	c.logger.Debug("health check complete",
		"status", report.Status,
		"passed", report.Summary.Passed,
		"failed", report.Summary.Failed,
		"duration_ms", report.DurationMS,
	)
	return report
}

func (c *Checker) checkEnvironment() CheckResult {
	result := CheckResult{
		Check:   CheckEnvironment,
		Status:  StatusHealthy,
		Details: map[string]string{},
	}
	for _, key := range config.RequiredKeys {
		if c.env != nil && c.env.IsSet(key) {
			result.Details[key] = "configured"
			result.passed++
			continue
		}
		result.Details[key] = "missing"
		result.Status = StatusUnhealthy
		result.failed++
	}
	for _, key := range config.RecommendedKeys {
		if c.env == nil || !c.env.IsSet(key) {
			result.Warnings = append(result.Warnings, key+" not set, using defaults")
		}
	}
	return result
}

func (c *Checker) checkUpstream(ctx context.Context) CheckResult {
	result := CheckResult{Check: CheckUpstream}
	if c.prober == nil {
		result.Status = StatusSkipped
		result.Message = "upstream probe not configured"
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := c.now()
	resp, err := c.prober.Call(ctx, http.MethodGet, "/systeminfo", nil)
	elapsed := millis(c.now().Sub(start))
	if err == nil {
		result.Status = StatusHealthy
		result.ResponseTimeMS = &elapsed
		result.APIVersion = apiVersion(resp)
		result.passed = 1
		return result
	}

	result.Status = StatusUnhealthy
	result.failed = 1
	var uerr *upstream.Error
	if !errors.As(err, &uerr) {
		result.Error = "unknown_error"
		result.Message = "upstream probe failed"
		return result
	}
	switch {
	case uerr.Status == http.StatusUnauthorized:
		result.Error = "authentication_failed"
		result.Message = "Invalid or missing API key"
	case uerr.Status != 0:
		result.Error = fmt.Sprintf("http_error_%d", uerr.Status)
		result.ResponseTimeMS = &elapsed
	case uerr.Kind == upstream.KindTimeout:
		result.Error = "timeout"
		result.Message = fmt.Sprintf("Request timed out after %s", c.timeout)
	case errors.Is(err, sentinel.ErrUnavailable):
		result.Error = "circuit_open"
		result.Message = "Upstream circuit breaker is open"
	case uerr.Kind == upstream.KindUnreachable:
		result.Error = "connection_refused"
		result.Message = "Cannot connect to " + c.baseURL
	default:
		result.Error = "unknown_error"
		result.Message = uerr.Message
	}
	return result
}

func apiVersion(resp *upstream.Response) string {
	if resp != nil {
		if body, ok := resp.Body.(map[string]any); ok {
			if v, ok := body["version"].(string); ok && v != "" {
				return v
			}
		}
	}
	return "unknown"
}

func (c *Checker) checkResources(ctx context.Context) CheckResult {
	result := CheckResult{Check: CheckResources}
	if c.resources == nil {
		result.Status = StatusSkipped
		result.Message = "resource sampling not configured"
		return result
	}

	sample, err := c.resources.Sample(ctx)
	if err != nil {
		c.logger.Warn("resource sampling failed", "error", err)
		result.Status = StatusSkipped
		result.Message = "resource sampling unavailable"
		return result
	}

	cpu, mem, disk := round2(sample.CPUPercent), round2(sample.MemoryPercent), round2(sample.DiskPercent)
	result.CPUPercent, result.MemoryPercent, result.DiskPercent = &cpu, &mem, &disk
	result.Status = StatusHealthy
	if cpu > resourceThreshold {
		result.Warnings = append(result.Warnings, "High CPU usage")
	}
	if mem > resourceThreshold {
		result.Warnings = append(result.Warnings, "High memory usage")
	}
	if disk > resourceThreshold {
		result.Warnings = append(result.Warnings, "High disk usage")
	}
	if len(result.Warnings) > 0 {
		result.Status = StatusDegraded
	} else {
		result.passed = 1
	}
	return result
}

func millis(d time.Duration) float64 {
	return round2(float64(d) / float64(time.Millisecond))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
