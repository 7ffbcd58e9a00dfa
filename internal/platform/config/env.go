package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	pkgstrings "github.com/patrickcarmichael/changedetection-mcp-server/pkg/platform/strings"
)

func envMap(environ []string) map[string]string {
	values := make(map[string]string)
	for _, entry := range environ {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = value
	}
	return values
}

func boolValue(name string, dst *bool) func(string) error {
	return func(value string) error {
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("invalid value for %s: %q is not a boolean", name, value)
		}
		*dst = parsed
		return nil
	}
}

func intValue(name string, dst *int) func(string) error {
	return func(value string) error {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("invalid value for %s: %q is not an integer", name, value)
		}
		*dst = parsed
		return nil
	}
}

// durationValue accepts Go durations ("30s", "1m30s") or a bare number of seconds.
func durationValue(name string, dst *time.Duration) func(string) error {
	return func(value string) error {
		value = strings.TrimSpace(value)
		if secs, err := strconv.ParseFloat(value, 64); err == nil {
			*dst = time.Duration(secs * float64(time.Second))
			return nil
		}
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %q is not a duration", name, value)
		}
		*dst = parsed
		return nil
	}
}

func listValue(dst *[]string) func(string) error {
	return func(value string) error {
		*dst = pkgstrings.SplitList(value)
		return nil
	}
}
