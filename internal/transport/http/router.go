// Package httptransport serves the streamable HTTP MCP endpoint and the
// operational endpoints next to it.
package httptransport

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/patrickcarmichael/changedetection-mcp-server/internal/platform/logger"
	"github.com/patrickcarmichael/changedetection-mcp-server/pkg/platform/middleware/metadata"
)

// Options configures NewRouter.
type Options struct {
	AllowedOrigins    []string
	TrustProxyHeaders bool
	// Gatherer serves /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Logger   *log.Logger
}

// NewRouter mounts mcpHandler at /mcp together with /healthz, /readyz and
// /metrics.
func NewRouter(mcpHandler http.Handler, checker HealthChecker, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestIDContext)
	r.Use(middleware.Recoverer)
	r.Use(metadata.ClientMetadata(opts.TrustProxyHeaders))
	r.Use(requestLogger(opts.Logger))
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "Mcp-Session-Id", "Mcp-Protocol-Version"},
			ExposedHeaders:   []string{"Mcp-Session-Id"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	NewHealthHandler(checker).Register(r)
	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(clientIdentity)
		r.Handle("/mcp", mcpHandler)
	})
	return r
}
