package testutil

import (
	"net/http"

	"github.com/patrickcarmichael/changedetection-mcp-server/pkg/requestcontext"
)

// WithClientIdentity sets the rate-limit identity on the request context,
// simulating what the identity middleware does.
func WithClientIdentity(req *http.Request, identity string) *http.Request {
	return req.WithContext(requestcontext.WithClientIdentity(req.Context(), identity))
}

// WithRequestID sets the request ID on the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
