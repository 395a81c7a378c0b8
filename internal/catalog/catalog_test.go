package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/wellness/internal/domain"
)

func TestDefaults(t *testing.T) {
	defs, err := Defaults()
	require.NoError(t, err)
	require.Len(t, defs, 5)
	require.Equal(t, "Bathroom", defs[0].Name)
	require.Equal(t, domain.ValueKindClick, defs[1].ValueKind)
	require.Equal(t, domain.ValueKindDuration, defs[2].ValueKind)
	for _, def := range defs {
		require.False(t, def.Custom)
	}
}

func TestParseRejectsUnknownKind(t *testing.T) {
	_, err := Parse([]byte("activities:\n  - {id: x, name: X, emoji: \"x\", value_kind: weight}\n"))
	require.ErrorContains(t, err, "unknown value kind")
}

func TestParseRejectsDuplicates(t *testing.T) {
	raw := []byte(`activities:
  - {id: a, name: Water, emoji: "💧", value_kind: click}
  - {id: b, name: Water, emoji: "💧", value_kind: click}
`)
	_, err := Parse(raw)
	require.ErrorContains(t, err, "duplicate")
}
