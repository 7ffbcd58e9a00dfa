package httptransport

import (
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/patrickcarmichael/changedetection-mcp-server/internal/ratelimit/models"
	"github.com/patrickcarmichael/changedetection-mcp-server/pkg/requestcontext"
)

// requestIDContext copies chi's request ID into requestcontext so code
// below the transport does not depend on chi.
func requestIDContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(requestcontext.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// clientIdentity derives the rate-limit identity. A presented key (X-API-Key
// or a bearer token) is hashed; otherwise the client IP is used. The key is
// not authenticated here.
func clientIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		identity := models.IdentityFromIP(requestcontext.ClientIP(ctx))
		if key := presentedKey(r); key != "" {
			identity = models.IdentityFromAPIKey(key)
		}
		next.ServeHTTP(w, r.WithContext(requestcontext.WithClientIdentity(ctx, identity)))
	})
}

func presentedKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// requestLogger logs one line per request. Headers are never logged.
func requestLogger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", requestcontext.RequestID(r.Context()),
				"client_ip", requestcontext.ClientIP(r.Context()),
			)
		})
	}
}
