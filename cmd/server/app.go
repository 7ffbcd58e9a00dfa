package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/patrickcarmichael/changedetection-mcp-server/internal/dispatcher"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/health"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/platform/config"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/platform/httpserver"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/platform/logger"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/platform/metrics"
	ratelimitmetrics "github.com/patrickcarmichael/changedetection-mcp-server/internal/ratelimit/metrics"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/ratelimit/service/requestlimit"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/ratelimit/store/bucket"
	httptransport "github.com/patrickcarmichael/changedetection-mcp-server/internal/transport/http"
	mcptransport "github.com/patrickcarmichael/changedetection-mcp-server/internal/transport/mcp"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/upstream"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/validation"
	"github.com/patrickcarmichael/changedetection-mcp-server/pkg/platform/circuit"
)

// app holds the wired process. Every transport shares one limiter, one
// upstream client and one metrics registry.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	registry *prometheus.Registry
	limiter  *requestlimit.Service
	checker  *health.Checker
	mcp      *mcptransport.Server
}

func newApp(cfg *config.Config) (*app, error) {
	log, err := logger.New(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Debug:  cfg.Logging.Debug,
	})
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	limiter, err := requestlimit.New(
		bucket.New(bucket.WithMaxBucketsPerShard(cfg.RateLimit.MaxBucketsPerShard)),
		requestlimit.WithConfig(&cfg.RateLimit),
		requestlimit.WithMetrics(ratelimitmetrics.New(reg)),
		requestlimit.WithLogger(log.With("component", "ratelimit")),
	)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	clientOpts := []upstream.Option{
		upstream.WithTimeout(cfg.Upstream.Timeout),
		upstream.WithConnectTimeout(cfg.Upstream.ConnectTimeout),
		upstream.WithRetries(cfg.Upstream.MaxRetries, 0, 0),
		upstream.WithUserAgent(mcptransport.ServerName + "/" + version),
		upstream.WithLogger(log.With("component", "upstream")),
	}
	if n := cfg.Upstream.BreakerThreshold; n > 0 {
		clientOpts = append(clientOpts, upstream.WithBreaker(
			circuit.New("changedetection", circuit.WithFailureThreshold(n)),
		))
	}
	client, err := upstream.New(cfg.Upstream.BaseURL, cfg.Upstream.APIKey, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("upstream client: %w", err)
	}

	validator := validation.New(
		validation.WithMaxURLLength(cfg.Validation.MaxURLLength),
		validation.WithMaxTagLength(cfg.Validation.MaxTagLength),
	)

	checker := health.New(cfg,
		health.WithUpstream(client, client.BaseURL()),
		health.WithResources(health.NewHostSampler()),
		health.WithTimeout(cfg.Health.CheckTimeout),
		health.WithVersion(version),
		health.WithLogger(log.With("component", "health")),
	)

	d, err := dispatcher.New(validator, limiter, client,
		dispatcher.WithHealthChecker(checker),
		dispatcher.WithMetrics(metrics.New(reg)),
		dispatcher.WithLogger(log.With("component", "dispatcher")),
		dispatcher.WithVersion(version),
	)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   log,
		registry: reg,
		limiter:  limiter,
		checker:  checker,
		mcp:      mcptransport.New(d, validator, version, mcptransport.WithLogger(log.With("component", "mcp"))),
	}, nil
}

// Run serves the configured transport until ctx is done. With the stdio
// transport, closing in also stops the process.
func (a *app) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	a.logger.Info("starting changedetection mcp server",
		"version", version,
		"transport", a.cfg.Server.Transport,
		"upstream", a.cfg.Upstream.BaseURL,
		"api_key_configured", a.cfg.APIKeyConfigured(),
		"rate_limit_enabled", a.cfg.RateLimit.Enabled,
		"metrics_enabled", a.cfg.Metrics.Enabled,
	)
	if a.cfg.File != "" {
		a.logger.Info("loaded config file", "path", a.cfg.File)
	}
	if !a.cfg.APIKeyConfigured() {
		a.logger.Warn("no changedetection.io API key configured")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.limiter.RunJanitor(ctx, 0)
	})

	if a.cfg.Metrics.Enabled {
		srv := httpserver.New("metrics", fmt.Sprintf(":%d", a.cfg.Metrics.Port), a.metricsHandler(),
			httpserver.WithLogger(a.logger))
		g.Go(func() error {
			return srv.Run(ctx)
		})
	}

	switch a.cfg.Server.Transport {
	case config.TransportHTTP:
		srv := httpserver.New("mcp", a.cfg.Server.HTTPAddr, a.httpHandler(), httpserver.WithLogger(a.logger))
		g.Go(func() error {
			return srv.Run(ctx)
		})
	default:
		g.Go(func() error {
			defer cancel()
			err := a.mcp.ServeStdio(ctx, in, out)
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		})
	}

	err := g.Wait()
	a.logger.Info("server stopped")
	return err
}

func (a *app) httpHandler() http.Handler {
	var gatherer prometheus.Gatherer
	if a.cfg.Metrics.Enabled {
		gatherer = a.registry
	}
	return httptransport.NewRouter(a.mcp.HTTPHandler(), a.checker, httptransport.Options{
		AllowedOrigins:    a.cfg.Server.AllowedOrigins,
		TrustProxyHeaders: a.cfg.Server.TrustProxyHeaders,
		Gatherer:          gatherer,
		Logger:            a.logger.With("component", "http"),
	})
}

func (a *app) metricsHandler() http.Handler {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{
		Timeout: 10 * time.Second,
	}))
	return r
}
