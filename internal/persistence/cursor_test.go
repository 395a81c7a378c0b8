package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/wellness/internal/domain"
)

func TestCursorRoundTrip(t *testing.T) {
	in := &domain.Cursor{CreatedAt: time.Date(2026, 3, 1, 9, 30, 0, 123, time.FixedZone("X", 3600)), ID: "abc"}
	out, err := DecodeCursor(EncodeCursor(in))
	require.NoError(t, err)
	require.True(t, in.CreatedAt.Equal(out.CreatedAt))
	require.Equal(t, "abc", out.ID)

	none, err := DecodeCursor(" ")
	require.NoError(t, err)
	require.Nil(t, none)
	require.Empty(t, EncodeCursor(nil))
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{"!!!", "bm8tc2VwYXJhdG9y", "eA"} {
		_, err := DecodeCursor(token)
		require.ErrorIs(t, err, domain.ErrValidation, token)
	}
}
