package validation

import "fmt"

// Kind classifies a validation failure.
type Kind string

const (
	KindInvalidURL       Kind = "InvalidURL"
	KindInvalidUUID      Kind = "InvalidUUID"
	KindInvalidFormat    Kind = "InvalidFormat"
	KindTooLong          Kind = "TooLong"
	KindUnknownAction    Kind = "UnknownAction"
	KindMissingParameter Kind = "MissingParameter"
)

// Error is returned by Validate. Message is safe to show to callers; it never
// echoes the rejected value.
type Error struct {
	Kind    Kind
	Param   string
	Message string
}

func (e *Error) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Param, e.Message)
}

func newError(kind Kind, param, format string, args ...any) *Error {
	return &Error{Kind: kind, Param: param, Message: fmt.Sprintf(format, args...)}
}
