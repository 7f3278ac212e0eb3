package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	id string
	at time.Time
}

func rowID(r row) string    { return r.id }
func rowAt(r row) time.Time { return r.at }

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 123456000, time.UTC)
	encoded := EncodeCursor("3f1c", at)

	decoded, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, "3f1c", decoded.LastID)
	assert.True(t, at.Equal(decoded.Timestamp))
}

func TestDecodeCursor_Invalid(t *testing.T) {
	c, err := DecodeCursor("")
	assert.NoError(t, err)
	assert.Nil(t, c)

	for _, bad := range []string{
		"!!!",
		base64.RawURLEncoding.EncodeToString([]byte("no-separator")),
		base64.RawURLEncoding.EncodeToString([]byte("id|yesterday")),
		base64.RawURLEncoding.EncodeToString([]byte("|2025-01-01T00:00:00Z")),
	} {
		_, err := DecodeCursor(bad)
		assert.ErrorIs(t, err, ErrInvalidCursor, bad)
	}
	assert.Empty(t, EncodeCursor("", time.Now()))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, 5, ClampLimit(5))
	assert.Equal(t, MaxLimit, ClampLimit(10_000))
}

func TestTrim(t *testing.T) {
	now := time.Now().UTC()
	rows := []row{{"a", now}, {"b", now.Add(-time.Minute)}, {"c", now.Add(-2 * time.Minute)}}

	page := Trim(rows, 2, rowID, rowAt)
	assert.True(t, page.HasMore)
	assert.Len(t, page.Items, 2)
	c, err := DecodeCursor(page.Cursor)
	require.NoError(t, err)
	assert.Equal(t, "b", c.LastID)

	page = Trim(rows, 3, rowID, rowAt)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.Cursor)

	empty := Trim[row](nil, 10, rowID, rowAt)
	assert.NotNil(t, empty.Items)
}
