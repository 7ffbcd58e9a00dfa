package httptransport

import (
	"context"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/patrickcarmichael/changedetection-mcp-server/internal/health"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/platform/logger"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/ratelimit/models"
	"github.com/patrickcarmichael/changedetection-mcp-server/pkg/requestcontext"
	"github.com/patrickcarmichael/changedetection-mcp-server/pkg/testutil"
)

type stubChecker struct {
	status health.Status
}

func (s stubChecker) Run(context.Context) health.Report {
	return health.Report{Status: s.status}
}

// captured records the request context seen by the MCP endpoint.
type captured struct {
	identity  string
	requestID string
}

type RouterSuite struct {
	suite.Suite
	seen *captured
	reg  *prometheus.Registry
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.seen = &captured{}
	s.reg = prometheus.NewRegistry()
}

func (s *RouterSuite) router(checker HealthChecker, opts Options) http.Handler {
	mcp := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		s.seen.identity = requestcontext.ClientIdentity(ctx)
		s.seen.requestID = requestcontext.RequestID(ctx)
		w.WriteHeader(http.StatusAccepted)
	})
	return NewRouter(mcp, checker, opts)
}

func (s *RouterSuite) TestHealthEndpoints() {
	s.Run("liveness", func() {
		rr := testutil.DoRequest(s.router(stubChecker{status: health.StatusUnhealthy}, Options{}),
			testutil.NewRequest(s.T(), http.MethodGet, "/healthz"))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		testutil.AssertJSONContains(s.T(), rr, "status", "ok")
	})

	s.Run("ready when degraded", func() {
		rr := testutil.DoRequest(s.router(stubChecker{status: health.StatusDegraded}, Options{}),
			testutil.NewRequest(s.T(), http.MethodGet, "/readyz"))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		testutil.AssertJSONContains(s.T(), rr, "status", "degraded")
	})

	s.Run("not ready when unhealthy", func() {
		rr := testutil.DoRequest(s.router(stubChecker{status: health.StatusUnhealthy}, Options{}),
			testutil.NewRequest(s.T(), http.MethodGet, "/readyz"))
		testutil.AssertStatus(s.T(), rr, http.StatusServiceUnavailable)
	})

	s.Run("no checker", func() {
		rr := testutil.DoRequest(s.router(nil, Options{}),
			testutil.NewRequest(s.T(), http.MethodGet, "/readyz"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusServiceUnavailable, "not_configured")
	})
}

func (s *RouterSuite) TestMetricsEndpoint() {
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "router_test_total", Help: "test"})
	s.reg.MustRegister(counter)
	counter.Inc()

	rr := testutil.DoRequest(s.router(nil, Options{Gatherer: s.reg}),
		testutil.NewRequest(s.T(), http.MethodGet, "/metrics"))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	s.Contains(rr.Body.String(), "router_test_total 1")

	rr = testutil.DoRequest(s.router(nil, Options{}),
		testutil.NewRequest(s.T(), http.MethodGet, "/metrics"))
	testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
}

func (s *RouterSuite) TestClientIdentity() {
	tests := []struct {
		name    string
		headers map[string]string
		opts    Options
		want    string
	}{
		{
			name:    "api key header",
			headers: map[string]string{"X-API-Key": "client-secret"},
			want:    models.IdentityFromAPIKey("client-secret"),
		},
		{
			name:    "bearer token",
			headers: map[string]string{"Authorization": "Bearer client-secret"},
			want:    models.IdentityFromAPIKey("client-secret"),
		},
		{
			name: "remote address",
			want: models.IdentityFromIP("192.0.2.1"),
		},
		{
			name:    "forwarded header ignored without trust",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.9"},
			want:    models.IdentityFromIP("192.0.2.1"),
		},
		{
			name:    "forwarded header honored with trust",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"},
			opts:    Options{TrustProxyHeaders: true},
			want:    models.IdentityFromIP("203.0.113.9"),
		},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			req := testutil.NewRequest(s.T(), http.MethodPost, "/mcp")
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			rr := testutil.DoRequest(s.router(nil, tt.opts), req)

			testutil.AssertStatus(s.T(), rr, http.StatusAccepted)
			s.Equal(tt.want, s.seen.identity)
			s.NotEmpty(s.seen.requestID)
			s.NotContains(s.seen.identity, "client-secret")
		})
	}
}

func (s *RouterSuite) TestCORS() {
	h := s.router(nil, Options{AllowedOrigins: []string{"https://app.example.com"}})

	rr := testutil.DoRequest(h, testutil.NewRequest(s.T(), http.MethodOptions, "/mcp",
		"Origin", "https://app.example.com",
		"Access-Control-Request-Method", http.MethodPost,
	))
	s.Equal("https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = testutil.DoRequest(h, testutil.NewRequest(s.T(), http.MethodOptions, "/mcp",
		"Origin", "https://evil.example.com",
		"Access-Control-Request-Method", http.MethodPost,
	))
	s.Empty(rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLoggerOmitsHeaders(t *testing.T) {
	log, buf := logger.NewTestLogger()
	h := NewRouter(http.NotFoundHandler(), nil, Options{Logger: log})

	testutil.DoRequest(h, testutil.NewRequest(t, http.MethodPost, "/mcp", "X-API-Key", "client-secret"))

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, "http request")
	assert.NotContains(t, out, "client-secret")
}
