// Package dispatcher runs one MCP tool call through validation, rate
// limiting and the upstream call, and formats the result envelope.
package dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/patrickcarmichael/changedetection-mcp-server/internal/health"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/platform/logger"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/platform/metrics"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/ratelimit/models"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/upstream"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/validation"
	"github.com/patrickcarmichael/changedetection-mcp-server/pkg/requestcontext"
)

//go:generate mockgen -source=dispatcher.go -destination=mocks/mocks.go -package=mocks Validator,Limiter,Upstream,HealthChecker,Metrics

type Validator interface {
	Validate(action string, args map[string]any) (validation.Params, error)
}

type Limiter interface {
	Admit(ctx context.Context, identity string, cost int) error
	Stats() models.StatsResponse
}

type Upstream interface {
	Call(ctx context.Context, method, path string, body any) (*upstream.Response, error)
}

type HealthChecker interface {
	Run(ctx context.Context) health.Report
}

type Metrics interface {
	ObserveRequest(tool string, outcome metrics.Outcome, d time.Duration)
	Snapshot() (metrics.Snapshot, error)
}

// Stage is a step of the request lifecycle.
type Stage string

const (
	StageReceived     Stage = "received"
	StageValidating   Stage = "validating"
	StageRateChecking Stage = "rate_checking"
	StageCalling      Stage = "calling"
	StageResponding   Stage = "responding"
)

// unknownTool labels metrics for calls naming no known action, so arbitrary
// client input cannot create new series.
const unknownTool = "unknown"

// requestCost is the token cost of one proxied call.
const requestCost = 1

type Dispatcher struct {
	validator Validator
	limiter   Limiter
	upstream  Upstream
	health    HealthChecker
	metrics   Metrics
	logger    *log.Logger
	version   string
	now       func() time.Time
}

type Option func(*Dispatcher)

func WithHealthChecker(h HealthChecker) Option {
	return func(d *Dispatcher) {
		d.health = h
	}
}

func WithMetrics(m Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithVersion(v string) Option {
	return func(d *Dispatcher) {
		d.version = v
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

func New(v Validator, l Limiter, u Upstream, opts ...Option) (*Dispatcher, error) {
	if v == nil {
		return nil, errors.New("validator is required")
	}
	if l == nil {
		return nil, errors.New("limiter is required")
	}
	if u == nil {
		return nil, errors.New("upstream client is required")
	}
	d := &Dispatcher{
		validator: v,
		limiter:   l,
		upstream:  u,
		version:   "dev",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logger.Discard()
	}
	return d, nil
}

// Dispatch handles one tool call. It always returns an envelope; failures are
// reported in it rather than as a Go error.
func (d *Dispatcher) Dispatch(ctx context.Context, action string, args map[string]any) Envelope {
	start := d.now()
	requestID := requestcontext.RequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = requestcontext.WithRequestID(ctx, requestID)
	}
	reqLog := d.logger.With("tool", action, "request_id", requestID)
	reqLog.Debug("tool call", "stage", StageReceived)

	data, outcome, err := d.run(ctx, reqLog, action, args)

	reqLog.Debug("tool call", "stage", StageResponding)
	elapsed := d.now().Sub(start)
	d.observe(action, outcome, elapsed)

	if err != nil {
		env := failureEnvelope(action, err)
		fields := []any{"kind", env.Kind, "duration_ms", elapsed.Milliseconds()}
		if env.Status != 0 {
			fields = append(fields, "status", env.Status)
		}
		if env.Error == CategoryInternal {
			reqLog.Error("tool call failed", append(fields, "error", err)...)
		} else {
			reqLog.Warn("tool call failed", fields...)
		}
		return env
	}

	reqLog.Info("tool call completed", "duration_ms", elapsed.Milliseconds())
	return successEnvelope(action, data)
}

func (d *Dispatcher) run(ctx context.Context, reqLog *log.Logger, action string, args map[string]any) (any, metrics.Outcome, error) {
	reqLog.Debug("tool call", "stage", StageValidating)
	params, err := d.validator.Validate(action, args)
	if err != nil {
		return nil, metrics.OutcomeFailed, err
	}

	if isLocal(action) {
		data, err := d.local(ctx, action)
		if err != nil {
			return nil, metrics.OutcomeFailed, err
		}
		return data, metrics.OutcomeSuccess, nil
	}

	r, ok := routes[action]
	if !ok {
		return nil, metrics.OutcomeFailed, errors.New("no route for action " + action)
	}

	reqLog.Debug("tool call", "stage", StageRateChecking)
	if err := d.limiter.Admit(ctx, requestcontext.ClientIdentity(ctx), requestCost); err != nil {
		var rerr *models.RateLimitError
		if errors.As(err, &rerr) {
			return nil, metrics.OutcomeRateLimited, err
		}
		return nil, metrics.OutcomeFailed, err
	}

	reqLog.Debug("tool call", "stage", StageCalling)
	var body any
	if r.body != nil {
		body = r.body(params)
	}
	resp, err := d.upstream.Call(ctx, r.method, r.path(params), body)
	if err != nil {
		return nil, metrics.OutcomeFailed, err
	}
	return resp.Body, metrics.OutcomeSuccess, nil
}

// MetricsData is the payload of the get_metrics tool.
type MetricsData struct {
	ServerMetrics *metrics.Snapshot    `json:"server_metrics,omitempty"`
	RateLimiter   models.StatsResponse `json:"rate_limiter"`
	Version       string               `json:"version"`
}

func (d *Dispatcher) local(ctx context.Context, action string) (any, error) {
	switch action {
	case validation.ActionHealthCheck:
		if d.health == nil {
			return nil, errors.New("health checker not configured")
		}
		return d.health.Run(ctx), nil
	default:
		data := MetricsData{RateLimiter: d.limiter.Stats(), Version: d.version}
		if d.metrics != nil {
			snap, err := d.metrics.Snapshot()
			if err != nil {
				return nil, err
			}
			data.ServerMetrics = &snap
		}
		return data, nil
	}
}

func (d *Dispatcher) observe(action string, outcome metrics.Outcome, elapsed time.Duration) {
	if d.metrics == nil {
		return
	}
	tool := action
	if _, ok := routes[action]; !ok && !isLocal(action) {
		tool = unknownTool
	}
	d.metrics.ObserveRequest(tool, outcome, elapsed)
}
