// Package upstream is the HTTP client for the changedetection.io REST API.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/patrickcarmichael/changedetection-mcp-server/internal/platform/logger"
	"github.com/patrickcarmichael/changedetection-mcp-server/pkg/domain"
	"github.com/patrickcarmichael/changedetection-mcp-server/pkg/platform/circuit"
	"github.com/patrickcarmichael/changedetection-mcp-server/pkg/platform/sentinel"
)

// APIKeyHeader carries the changedetection.io API key.
const APIKeyHeader = "x-api-key"

const (
	tracerName       = "github.com/patrickcarmichael/changedetection-mcp-server/internal/upstream"
	maxResponseBytes = 10 << 20
	maxRedirects     = 10
)

// Response is a successful upstream reply. Body is the decoded JSON value,
// the raw text for non-JSON bodies, or nil when empty.
type Response struct {
	Status int
	Body   any
}

// Client forwards validated requests to changedetection.io.
type Client struct {
	baseURL        *url.URL
	apiKey         string
	version        domain.APIVersion
	httpClient     *http.Client
	timeout        time.Duration
	connectTimeout time.Duration
	userAgent      string
	logger         *log.Logger
	tracer         trace.Tracer
	breaker        *circuit.Breaker
	maxRetries     int
	retryInitial   time.Duration
	retryMax       time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the default client; timeouts are then the
// caller's responsibility.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.connectTimeout = d
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = tp.Tracer(tracerName)
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithBreaker fails calls fast while b is open.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// WithRetries enables up to n retries with exponential backoff for idempotent
// requests that fail with Unreachable or ServerError.
func WithRetries(n int, initial, max time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = n
		if initial > 0 {
			c.retryInitial = initial
		}
		if max > 0 {
			c.retryMax = max
		}
	}
}

func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("base URL must be an absolute http(s) URL")
	}

	c := &Client{
		baseURL:        u,
		apiKey:         apiKey,
		version:        domain.DefaultVersion(),
		timeout:        30 * time.Second,
		connectTimeout: 10 * time.Second,
		userAgent:      "changedetection-mcp-server",
		tracer:         otel.GetTracerProvider().Tracer(tracerName),
		retryInitial:   200 * time.Millisecond,
		retryMax:       2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Discard()
	}
	if c.maxRetries < 0 {
		return nil, errors.New("retries must not be negative")
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Timeout: c.timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   c.connectTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: c.connectTimeout,
				MaxIdleConns:        16,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	c.httpClient = c.withRedirectPolicy(c.httpClient)
	return c, nil
}

// withRedirectPolicy returns a copy of hc that only follows redirects which
// stay on the upstream host. Any CheckRedirect already set on hc still runs
// for the redirects that pass.
func (c *Client) withRedirectPolicy(hc *http.Client) *http.Client {
	next := hc.CheckRedirect
	clone := *hc
	clone.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		// x-api-key is a custom header, so net/http would forward it to any host
		if req.URL.Host != c.baseURL.Host || (c.baseURL.Scheme == "https" && req.URL.Scheme != "https") {
			c.logger.Warn("upstream redirect refused", "target_host", req.URL.Host)
			return http.ErrUseLastResponse
		}
		if next != nil {
			return next(req, via)
		}
		if len(via) >= maxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}
	return &clone
}

// BaseURL returns the configured upstream base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Call sends method to path, relative to the versioned API root ("/watch"
// becomes "/api/v1/watch"). body, when non-nil, is sent as JSON.
func (c *Client) Call(ctx context.Context, method, path string, body any) (*Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	endpoint := c.endpoint(path)
	ctx, span := c.tracer.Start(ctx, "changedetection "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", endpoint.Path),
		),
	)
	defer span.End()

	var (
		resp    *Response
		attempt int
	)
	operation := func() error {
		attempt++
		r, uerr := c.attempt(ctx, method, endpoint, payload)
		if uerr == nil {
			resp = r
			return nil
		}
		if !c.retryable(method, uerr) {
			return backoff.Permanent(uerr)
		}
		return uerr
	}

	err := backoff.RetryNotify(operation, c.backoff(ctx),
		func(err error, wait time.Duration) {
			c.logger.Warn("retrying upstream call",
				"method", method,
				"path", endpoint.Path,
				"attempt", attempt,
				"wait_ms", wait.Milliseconds(),
				"error", err,
			)
		},
	)
	if err != nil {
		var uerr *Error
		if !errors.As(err, &uerr) {
			uerr = transportError(ctx, err)
		}
		span.SetStatus(codes.Error, string(uerr.Kind))
		if uerr.Status != 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", uerr.Status))
		}
		return nil, uerr
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.Status))
	return resp, nil
}

func (c *Client) retryable(method string, err *Error) bool {
	if c.maxRetries == 0 || !err.Retryable() {
		return false
	}
	// the breaker's own fail-fast error is not worth retrying
	if errors.Is(err, sentinel.ErrUnavailable) {
		return false
	}
	return method == http.MethodGet || method == http.MethodDelete
}

func (c *Client) backoff(ctx context.Context) backoff.BackOff {
	if c.maxRetries == 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.retryInitial
	expo.MaxInterval = c.retryMax
	expo.MaxElapsedTime = 0
	expo.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(expo, uint64(c.maxRetries)), ctx)
}

// attempt performs one round trip, consulting the breaker when configured.
func (c *Client) attempt(ctx context.Context, method string, endpoint *url.URL, payload []byte) (*Response, *Error) {
	if c.breaker != nil && !c.breaker.Allow() {
		return nil, &Error{Kind: KindUnreachable, Message: "upstream circuit open", cause: sentinel.ErrUnavailable}
	}

	start := time.Now()
	resp, uerr := c.roundTrip(ctx, method, endpoint, payload)
	status := 0
	if resp != nil {
		status = resp.Status
	} else if uerr != nil {
		status = uerr.Status
	}
	c.logger.Debug("upstream call",
		"method", method,
		"path", endpoint.Path,
		"status", status,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	c.recordOutcome(uerr)
	return resp, uerr
}

func (c *Client) recordOutcome(uerr *Error) {
	if c.breaker == nil {
		return
	}
	if uerr != nil && uerr.countsAsFailure() {
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.logger.Warn("upstream circuit opened", "breaker", c.breaker.Name())
		}
		return
	}
	if uerr != nil && uerr.Kind == KindCanceled {
		return
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.Info("upstream circuit closed", "breaker", c.breaker.Name())
	}
}

func (c *Client) roundTrip(ctx context.Context, method string, endpoint *url.URL, payload []byte) (*Response, *Error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, &Error{Kind: KindUnreachable, Message: "invalid upstream request", cause: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(httpResp.Body, maxResponseBytes))
		return nil, statusError(httpResp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(ctx, err)
	}
	return &Response{Status: httpResp.StatusCode, Body: decodeBody(raw)}, nil
}

// decodeBody returns the JSON value of raw, its text when not JSON, or nil.
func decodeBody(raw []byte) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	if json.Valid(trimmed) {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err == nil {
			return v
		}
	}
	return string(raw)
}

func (c *Client) endpoint(path string) *url.URL {
	u := *c.baseURL
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + c.version.PathPrefix() + "/" + strings.TrimLeft(path, "/")
	u.RawQuery = ""
	return &u
}
