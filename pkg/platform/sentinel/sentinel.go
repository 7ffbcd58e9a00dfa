package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Infrastructure layers return these
// (optionally wrapped) so callers can branch with errors.Is without depending
// on a concrete error type.
//
// - ErrUnavailable: a dependency is temporarily unavailable (open circuit)
// - ErrNotConfigured: a required setting is missing
// - ErrNotFound: a resource does not exist
var (
	ErrUnavailable   = errors.New("unavailable")
	ErrNotConfigured = errors.New("not configured")
	ErrNotFound      = errors.New("not found")
)
