package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickcarmichael/changedetection-mcp-server/internal/platform/config"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/validation"
)

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, version+"\n", out.String())
}

func TestNewAppWiring(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Transport = config.TransportHTTP

	a, err := newApp(cfg)
	require.NoError(t, err)
	assert.Len(t, a.mcp.Tools(), len(validation.New().Actions()))

	h := a.httpHandler()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestRunStopsWhenStdinCloses(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = false

	a, err := newApp(cfg)
	require.NoError(t, err)

	var out bytes.Buffer
	err = a.Run(context.Background(), bytes.NewReader(nil), &out)
	assert.NoError(t, err)
}

func TestExitError(t *testing.T) {
	assert.Equal(t, "exit status 1", (&exitError{code: 1}).Error())
}
