package health

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickcarmichael/changedetection-mcp-server/internal/platform/config"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/upstream"
)

type fakeEnv map[string]bool

func (f fakeEnv) IsSet(key string) bool { return f[key] }

func fullEnv() fakeEnv {
	return fakeEnv{
		config.KeyURL:              true,
		config.KeyAPIKey:           true,
		config.KeyLogLevel:         true,
		config.KeyRateLimitEnabled: true,
		config.KeyEnableMetrics:    true,
	}
}

type fakeSampler struct {
	res Resources
	err error
}

func (f fakeSampler) Sample(context.Context) (Resources, error) { return f.res, f.err }

func newChecker(t *testing.T, env Environment, status int, body string, opts ...Option) *Checker {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/systeminfo", r.URL.Path)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	client, err := upstream.New(srv.URL, "key")
	require.NoError(t, err)
	opts = append([]Option{WithUpstream(client, srv.URL), WithVersion("1.2.3")}, opts...)
	return New(env, opts...)
}

func findCheck(t *testing.T, r Report, name string) CheckResult {
	t.Helper()
	for _, c := range r.Checks {
		if c.Check == name {
			return c
		}
	}
	t.Fatalf("check %s not in report", name)
	return CheckResult{}
}

func TestRunHealthy(t *testing.T) {
	checker := newChecker(t, fullEnv(), http.StatusOK, `{"version":"0.49.4","watch_count":3}`,
		WithResources(fakeSampler{res: Resources{CPUPercent: 12.345, MemoryPercent: 40, DiskPercent: 55}}))

	report := checker.Run(context.Background())

	assert.Equal(t, StatusHealthy, report.Status)
	assert.Equal(t, 0, report.ExitCode())
	assert.Equal(t, Summary{Total: 4, Passed: 4}, report.Summary)
	assert.Equal(t, "1.2.3", report.Server.Version)

	api := findCheck(t, report, CheckUpstream)
	assert.Equal(t, "0.49.4", api.APIVersion)
	assert.NotNil(t, api.ResponseTimeMS)

	res := findCheck(t, report, CheckResources)
	require.NotNil(t, res.CPUPercent)
	assert.InDelta(t, 12.35, *res.CPUPercent, 1e-9)
}

func TestEnvironmentCheck(t *testing.T) {
	t.Run("missing required keys are unhealthy", func(t *testing.T) {
		checker := New(fakeEnv{config.KeyURL: true})
		report := checker.Run(context.Background())

		env := findCheck(t, report, CheckEnvironment)
		assert.Equal(t, StatusUnhealthy, env.Status)
		assert.Equal(t, map[string]string{
			config.KeyURL:    "configured",
			config.KeyAPIKey: "missing",
		}, env.Details)
		assert.Equal(t, StatusUnhealthy, report.Status)
		assert.Equal(t, 1, report.ExitCode())
	})

	t.Run("defaulted recommended keys are warnings", func(t *testing.T) {
		checker := New(fakeEnv{config.KeyURL: true, config.KeyAPIKey: true})
		report := checker.Run(context.Background())

		assert.Equal(t, StatusHealthy, report.Status)
		assert.ElementsMatch(t, []string{
			"LOG_LEVEL not set, using defaults",
			"RATE_LIMIT_ENABLED not set, using defaults",
			"ENABLE_METRICS not set, using defaults",
		}, report.Summary.Warnings)
	})

	t.Run("unconfigured probes are skipped", func(t *testing.T) {
		report := New(fullEnv()).Run(context.Background())
		assert.Equal(t, StatusSkipped, findCheck(t, report, CheckUpstream).Status)
		assert.Equal(t, StatusSkipped, findCheck(t, report, CheckResources).Status)
		assert.Equal(t, StatusHealthy, report.Status)
	})
}

func TestUpstreamCheck(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   string
	}{
		{name: "401", status: http.StatusUnauthorized, want: "authentication_failed"},
		{name: "500", status: http.StatusInternalServerError, want: "http_error_500"},
		{name: "404", status: http.StatusNotFound, want: "http_error_404"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := newChecker(t, fullEnv(), tt.status, "").Run(context.Background())
			api := findCheck(t, report, CheckUpstream)
			assert.Equal(t, StatusUnhealthy, api.Status)
			assert.Equal(t, tt.want, api.Error)
			assert.Equal(t, StatusUnhealthy, report.Status)
		})
	}

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()
		client, err := upstream.New(srv.URL, "key")
		require.NoError(t, err)

		report := New(fullEnv(), WithUpstream(client, srv.URL), WithTimeout(50*time.Millisecond)).
			Run(context.Background())
		assert.Equal(t, "timeout", findCheck(t, report, CheckUpstream).Error)
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		addr := srv.URL
		srv.Close()
		client, err := upstream.New(addr, "key")
		require.NoError(t, err)

		report := New(fullEnv(), WithUpstream(client, addr)).Run(context.Background())
		api := findCheck(t, report, CheckUpstream)
		assert.Equal(t, "connection_refused", api.Error)
		assert.Equal(t, "Cannot connect to "+addr, api.Message)
	})
}

func TestResourceCheck(t *testing.T) {
	t.Run("high usage degrades", func(t *testing.T) {
		report := New(fullEnv(), WithResources(fakeSampler{res: Resources{CPUPercent: 95, MemoryPercent: 91, DiskPercent: 10}})).
			Run(context.Background())

		res := findCheck(t, report, CheckResources)
		assert.Equal(t, StatusDegraded, res.Status)
		assert.Equal(t, []string{"High CPU usage", "High memory usage"}, res.Warnings)
		assert.Equal(t, StatusDegraded, report.Status)
		assert.Equal(t, 0, report.ExitCode())
	})

	t.Run("sampling failure is skipped", func(t *testing.T) {
		report := New(fullEnv(), WithResources(fakeSampler{err: errors.New("no /proc")})).
			Run(context.Background())
		assert.Equal(t, StatusSkipped, findCheck(t, report, CheckResources).Status)
		assert.Equal(t, StatusHealthy, report.Status)
	})
}
