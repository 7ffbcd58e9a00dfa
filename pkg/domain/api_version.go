package domain

import (
	"fmt"
)

// APIVersion is a changedetection.io REST API version segment.
type APIVersion string

// Supported API versions.
const (
	APIVersionV1 APIVersion = "v1"
)

var knownVersions = map[APIVersion]struct{}{
	APIVersionV1: {},
}

// ParseAPIVersion validates and returns an APIVersion.
func ParseAPIVersion(s string) (APIVersion, error) {
	v := APIVersion(s)
	if _, ok := knownVersions[v]; !ok {
		return "", fmt.Errorf("unknown API version: %s", s)
	}
	return v, nil
}

func (v APIVersion) String() string {
	return string(v)
}

// PathPrefix returns the URL path prefix for this version, e.g. "/api/v1".
func (v APIVersion) PathPrefix() string {
	return "/api/" + string(v)
}

// DefaultVersion returns the version the upstream client targets.
func DefaultVersion() APIVersion {
	return APIVersionV1
}
