package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// KeyPrefix namespaces client identities by how they were derived.
type KeyPrefix string

const (
	KeyPrefixAPIKey KeyPrefix = "key"
	KeyPrefixIP     KeyPrefix = "ip"
	KeyPrefixStdio  KeyPrefix = "stdio"
)

// StdioIdentity is the single caller behind a stdio transport.
const StdioIdentity = string(KeyPrefixStdio) + ":local"

// apiKeyHashLen is the number of hex characters kept from the digest.
const apiKeyHashLen = 16

// SanitizeKeySegment escapes delimiter characters in identity segments so a
// value containing ':' (an IPv6 address, say) cannot forge another prefix.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// IdentityFromAPIKey derives a bucket key from a caller credential. Only a
// truncated SHA-256 digest is kept; the raw credential never becomes a key.
func IdentityFromAPIKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return string(KeyPrefixAPIKey) + ":" + hex.EncodeToString(sum[:])[:apiKeyHashLen]
}

// IdentityFromIP derives a bucket key from a network address.
func IdentityFromIP(ip string) string {
	return string(KeyPrefixIP) + ":" + SanitizeKeySegment(ip)
}
