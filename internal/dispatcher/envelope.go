package dispatcher

import (
	"errors"
	"fmt"

	"github.com/patrickcarmichael/changedetection-mcp-server/internal/ratelimit/models"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/upstream"
	"github.com/patrickcarmichael/changedetection-mcp-server/internal/validation"
)

// Error categories reported in the failure envelope.
const (
	CategoryValidation  = "validation_error"
	CategoryRateLimited = "rate_limit_exceeded"
	CategoryUpstream    = "upstream_error"
	CategoryInternal    = "internal_error"
)

// KindInternal is reported for failures outside the typed error families.
const KindInternal = "Internal"

// Envelope is the JSON document returned for every tool call.
type Envelope struct {
	Success    bool     `json:"success"`
	Tool       string   `json:"tool"`
	Data       any      `json:"data,omitempty"`
	Error      string   `json:"error,omitempty"`
	Kind       string   `json:"kind,omitempty"`
	Message    string   `json:"message,omitempty"`
	RetryAfter *float64 `json:"retry_after,omitempty"`
	Status     int      `json:"status,omitempty"`
}

func successEnvelope(tool string, data any) Envelope {
	return Envelope{Success: true, Tool: tool, Data: data}
}

// failureEnvelope maps err onto the failure envelope. Messages come from the
// typed errors, which are already free of keys, headers and upstream bodies.
func failureEnvelope(tool string, err error) Envelope {
	env := Envelope{Success: false, Tool: tool}

	var (
		verr *validation.Error
		rerr *models.RateLimitError
		uerr *upstream.Error
	)
	switch {
	case errors.As(err, &verr):
		env.Error = CategoryValidation
		env.Kind = string(verr.Kind)
		if verr.Param != "" {
			env.Message = verr.Param + " " + verr.Message
		} else {
			env.Message = verr.Message
		}
	case errors.As(err, &rerr):
		retry := rerr.RetryAfterSeconds()
		env.Error = CategoryRateLimited
		env.Kind = "RateLimited"
		env.Message = fmt.Sprintf("Rate limit exceeded. Retry after %.1fs", retry)
		env.RetryAfter = &retry
	case errors.As(err, &uerr):
		env.Error = CategoryUpstream
		env.Kind = string(uerr.Kind)
		env.Message = uerr.Message
		env.Status = uerr.Status
	default:
		env.Error = CategoryInternal
		env.Kind = KindInternal
		env.Message = "An error occurred processing your request"
	}
	return env
}
