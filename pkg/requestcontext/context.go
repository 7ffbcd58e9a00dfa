// Package requestcontext provides transport-independent context accessors for
// request-scoped values.
//
// Transports (stdio, streamable HTTP) set these; the dispatcher and the
// components behind it only read them.
//
//	ctx = requestcontext.WithRequestID(ctx, id)
//	ctx = requestcontext.WithClientIdentity(ctx, "key:3f2a...")
//	ctx = requestcontext.WithTime(ctx, fixedTime) // tests
package requestcontext

import (
	"context"
	"time"
)

type (
	requestIDKey      struct{}
	clientIdentityKey struct{}
	clientIPKey       struct{}
	userAgentKey      struct{}
	requestTimeKey    struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyRequestID      = requestIDKey{}
	ContextKeyClientIdentity = clientIdentityKey{}
	ContextKeyClientIP       = clientIPKey{}
	ContextKeyUserAgent      = userAgentKey{}
	ContextKeyRequestTime    = requestTimeKey{}
)

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// ClientIdentity retrieves the rate-limit identity of the caller.
// Returns "" when the transport did not set one.
func ClientIdentity(ctx context.Context) string {
	if identity, ok := ctx.Value(ContextKeyClientIdentity).(string); ok {
		return identity
	}
	return ""
}

// WithClientIdentity injects the caller's rate-limit identity.
func WithClientIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, ContextKeyClientIdentity, identity)
}

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return ctx
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
