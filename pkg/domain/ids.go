package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// canonicalUUIDLen is the length of the 8-4-4-4-12 textual form.
const canonicalUUIDLen = 36

// ErrInvalidWatchID is returned when a string is not a canonical UUID.
var ErrInvalidWatchID = errors.New("watch id must be a UUID in 8-4-4-4-12 form")

// WatchID identifies a watch in the upstream changedetection.io instance.
// The server never interprets it beyond format.
type WatchID uuid.UUID

// ParseWatchID accepts only the canonical hyphenated form. uuid.Parse alone also
// accepts urn:uuid:, braced and 32-char forms, which are rejected here.
func ParseWatchID(s string) (WatchID, error) {
	if len(s) != canonicalUUIDLen {
		return WatchID{}, ErrInvalidWatchID
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return WatchID{}, ErrInvalidWatchID
	}
	return WatchID(parsed), nil
}

// String returns the lower-case canonical form.
func (id WatchID) String() string {
	return strings.ToLower(uuid.UUID(id).String())
}

// IsNil reports whether the ID is the all-zero UUID.
func (id WatchID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}
