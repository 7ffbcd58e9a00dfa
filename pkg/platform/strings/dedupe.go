// Package strings holds small string helpers for configuration parsing.
package strings

import (
	"strings"
)

// SplitList splits a comma-separated setting such as ALLOWED_ORIGINS into
// lower-cased entries without empties or duplicates, keeping first-seen order.
// Trailing slashes are dropped so "https://a.example.com/" matches the Origin
// header a browser sends. A blank input yields nil.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return NormalizeList(strings.Split(s, ","))
}

// NormalizeList applies the SplitList rules to already separated values.
func NormalizeList(values []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimRight(strings.ToLower(strings.TrimSpace(v)), "/")
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
