// Package validation checks MCP tool arguments before any rate limiting or
// network I/O happens. Validate is pure: the rule table is built once and
// never mutated.
package validation

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/asaskevich/govalidator"

	"github.com/patrickcarmichael/changedetection-mcp-server/pkg/domain"
)

const (
	DefaultMaxURLLength = 2048
	DefaultMaxTagLength = 100
)

// tagPattern is the allow-list for free-text tags.
var tagPattern = regexp.MustCompile(`^[\p{L}\p{N} _\-.,:/@#()]+$`)

// Params holds sanitized, normalized argument values keyed by canonical name.
type Params map[string]string

// Get returns the value for name, or "".
func (p Params) Get(name string) string {
	return p[name]
}

// Validator applies the per-action rule table.
type Validator struct {
	actions      map[string]ActionSpec
	maxURLLength int
	maxTagLength int
}

type Option func(*Validator)

func WithMaxURLLength(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.maxURLLength = n
		}
	}
}

func WithMaxTagLength(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.maxTagLength = n
		}
	}
}

func New(opts ...Option) *Validator {
	v := &Validator{
		maxURLLength: DefaultMaxURLLength,
		maxTagLength: DefaultMaxTagLength,
	}
	for _, opt := range opts {
		opt(v)
	}
	specs := defaultActions(v.maxURLLength, v.maxTagLength)
	v.actions = make(map[string]ActionSpec, len(specs))
	for _, spec := range specs {
		v.actions[spec.Name] = spec
	}
	return v
}

// Spec returns the rule table entry for action.
func (v *Validator) Spec(action string) (ActionSpec, bool) {
	spec, ok := v.actions[action]
	return spec, ok
}

// Actions returns the known action names, sorted.
func (v *Validator) Actions() []string {
	names := make([]string, 0, len(v.actions))
	for name := range v.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks args against action's rules and returns the sanitized
// values. Arguments not named by any rule are ignored.
func (v *Validator) Validate(action string, args map[string]any) (Params, error) {
	spec, ok := v.actions[action]
	if !ok {
		return nil, newError(KindUnknownAction, "", "unknown action %q", action)
	}

	params := make(Params, len(spec.Rules))
	for _, rule := range spec.Rules {
		raw, present, err := lookup(args, rule)
		if err != nil {
			return nil, err
		}
		value := Sanitize(raw)
		if !present || value == "" {
			if rule.Required {
				return nil, newError(KindMissingParameter, rule.Name, "parameter is required")
			}
			continue
		}

		normalized, err := v.check(rule, value)
		if err != nil {
			return nil, err
		}
		params[rule.Name] = normalized
	}
	return params, nil
}

// lookup finds the argument for rule under its name or an alias. A nil value
// counts as absent; any other non-string value is a format error.
func lookup(args map[string]any, rule Rule) (string, bool, error) {
	names := append([]string{rule.Name}, rule.Aliases...)
	for _, name := range names {
		raw, ok := args[name]
		if !ok || raw == nil {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			return "", false, newError(KindInvalidFormat, rule.Name, "must be a string")
		}
		return s, true, nil
	}
	return "", false, nil
}

func (v *Validator) check(rule Rule, value string) (string, error) {
	if rule.MaxLength > 0 && utf8.RuneCountInString(value) > rule.MaxLength {
		return "", newError(KindTooLong, rule.Name, "must be at most %d characters", rule.MaxLength)
	}

	switch rule.Type {
	case TypeURL:
		if err := ValidateURL(value); err != nil {
			return "", newError(KindInvalidURL, rule.Name, "%s", err.Message)
		}
		return value, nil
	case TypeUUID:
		id, err := domain.ParseWatchID(value)
		if err != nil {
			return "", newError(KindInvalidUUID, rule.Name, "must be a UUID in 8-4-4-4-12 hex form")
		}
		return id.String(), nil
	case TypeText:
		if !tagPattern.MatchString(value) {
			return "", newError(KindInvalidFormat, rule.Name, "contains characters outside letters, digits, spaces and _-.,:/@#()")
		}
		return value, nil
	default:
		return "", newError(KindInvalidFormat, rule.Name, "unsupported parameter type %s", rule.Type)
	}
}

// Sanitize strips NUL bytes and surrounding whitespace.
func Sanitize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}

// ValidateURL accepts absolute http and https URLs whose host is localhost,
// an IP literal, or a DNS name.
func ValidateURL(raw string) *Error {
	if strings.IndexFunc(raw, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return newError(KindInvalidURL, ParamURL, "must not contain whitespace or control characters")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return newError(KindInvalidURL, ParamURL, "is not a valid URL")
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	case "":
		return newError(KindInvalidURL, ParamURL, "must be absolute with an http or https scheme")
	default:
		return newError(KindInvalidURL, ParamURL, "scheme must be http or https")
	}
	host := u.Hostname()
	if host == "" {
		return newError(KindInvalidURL, ParamURL, "must include a host")
	}
	if !validHost(host) {
		return newError(KindInvalidURL, ParamURL, "host must be localhost, an IP address, or a DNS name")
	}
	return nil
}

func validHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	return govalidator.IsIP(host) || govalidator.IsDNSName(host)
}
