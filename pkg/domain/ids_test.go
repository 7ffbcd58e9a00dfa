package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseWatchID_Invariants validates the parsing invariant:
// "watch IDs are canonical 8-4-4-4-12 hex strings"
func TestParseWatchID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseWatchID("")
		require.ErrorIs(t, err, ErrInvalidWatchID)
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseWatchID("not-a-uuid")
		require.ErrorIs(t, err, ErrInvalidWatchID)
	})

	t.Run("rejects non-canonical encodings uuid.Parse would accept", func(t *testing.T) {
		raw := uuid.New()
		for _, s := range []string{
			"urn:uuid:" + raw.String(),
			"{" + raw.String() + "}",
			strings.ReplaceAll(raw.String(), "-", ""),
		} {
			_, err := ParseWatchID(s)
			assert.ErrorIs(t, err, ErrInvalidWatchID, s)
		}
	})

	t.Run("rejects misplaced hyphens", func(t *testing.T) {
		_, err := ParseWatchID("550e8400e-29b-41d4-a716-446655440000")
		require.ErrorIs(t, err, ErrInvalidWatchID)
	})

	t.Run("rejects non-hex characters", func(t *testing.T) {
		_, err := ParseWatchID("550e8400-e29b-41d4-a716-44665544000g")
		require.ErrorIs(t, err, ErrInvalidWatchID)
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseWatchID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, WatchID(valid), id)
	})

	t.Run("accepts upper case and normalizes to lower case", func(t *testing.T) {
		id, err := ParseWatchID("550E8400-E29B-41D4-A716-446655440000")
		require.NoError(t, err)
		assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", id.String())
	})

	t.Run("accepts nil UUID", func(t *testing.T) {
		id, err := ParseWatchID(uuid.Nil.String())
		require.NoError(t, err)
		assert.True(t, id.IsNil())
	})
}

func TestParseAPIVersion(t *testing.T) {
	v, err := ParseAPIVersion("v1")
	require.NoError(t, err)
	assert.Equal(t, APIVersionV1, v)
	assert.Equal(t, "/api/v1", v.PathPrefix())

	_, err = ParseAPIVersion("v9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown API version")
}
