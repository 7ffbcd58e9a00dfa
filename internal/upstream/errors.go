package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies an upstream failure.
type Kind string

const (
	KindClientError Kind = "ClientError"
	KindServerError Kind = "ServerError"
	KindUnreachable Kind = "Unreachable"
	KindTimeout     Kind = "Timeout"
	KindCanceled    Kind = "Canceled"
	// KindUnexpectedStatus covers non-2xx replies outside 4xx and 5xx, such
	// as a redirect that was not followed.
	KindUnexpectedStatus Kind = "UnexpectedStatus"
)

// Error is returned by Client.Call. Message is sanitized: it is derived from
// the status code or failure class and never carries upstream bodies,
// headers, or the API key.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream %s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("upstream %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Retryable reports whether a retry could plausibly succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindUnreachable || e.Kind == KindServerError
}

// countsAsFailure reports whether the error should trip the breaker.
// Client errors and caller cancellation say nothing about upstream health.
func (e *Error) countsAsFailure() bool {
	switch e.Kind {
	case KindUnreachable, KindServerError, KindTimeout:
		return true
	default:
		return false
	}
}

func statusError(status int) *Error {
	var kind Kind
	switch {
	case status >= 400 && status <= 499:
		kind = KindClientError
	case status >= 500 && status <= 599:
		kind = KindServerError
	default:
		kind = KindUnexpectedStatus
	}
	msg := http.StatusText(status)
	if msg == "" {
		msg = "unexpected status"
	}
	return &Error{Kind: kind, Status: status, Message: msg}
}

// transportError maps a failed round trip. ctx is checked first so a caller
// deadline is reported as Timeout even when the transport saw it as a
// generic dial failure.
func transportError(ctx context.Context, err error) *Error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled):
		return &Error{Kind: KindCanceled, Message: "request canceled", cause: context.Canceled}
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Message: "request timed out", cause: context.DeadlineExceeded}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Message: "request timed out", cause: err}
	}
	return &Error{Kind: KindUnreachable, Message: "upstream unreachable", cause: err}
}
