package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/patrickcarmichael/changedetection-mcp-server/internal/health"
	"github.com/patrickcarmichael/changedetection-mcp-server/pkg/platform/httputil"
)

type HealthChecker interface {
	Run(ctx context.Context) health.Report
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	checker HealthChecker
}

func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

func (h *HealthHandler) Register(r chi.Router) {
	r.Get("/healthz", h.HandleLive)
	r.Get("/readyz", h.HandleReady)
}

// HandleLive reports that the process is serving.
func (h *HealthHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady runs the full check. Degraded is still ready.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if h.checker == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "not_configured", "")
		return
	}
	report := h.checker.Run(r.Context())
	status := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, report)
}
