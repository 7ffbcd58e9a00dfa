package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// loadFile reads a flat YAML mapping of setting names to values. Keys are
// matched case-insensitively against the environment key names, so
// "rate_limit_burst: 20" and "RATE_LIMIT_BURST: 20" are equivalent.
// ${VAR} references are expanded from env before parsing.
func loadFile(path string, env map[string]string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data), env)

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	values := make(map[string]string, len(raw))
	for key, value := range raw {
		name := strings.ToUpper(strings.TrimSpace(key))
		switch v := value.(type) {
		case nil:
			continue
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
			values[name] = strings.Join(parts, ",")
		case map[string]any:
			return nil, fmt.Errorf("parsing config file: %s must be a scalar or list", key)
		default:
			values[name] = fmt.Sprint(v)
		}
	}
	return values, nil
}

// expandEnvVars replaces ${VAR_NAME} with the value from env, or "" if unset.
func expandEnvVars(s string, env map[string]string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return env[envVarPattern.FindStringSubmatch(match)[1]]
	})
}
