package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	v, err := Decode(TypeActivityRecorded, []byte(`{"activity_id":"a","user_id":"u","activity_type":"Water","emoji":"💧","created_at":"2026-03-01T09:00:00Z"}`))
	require.NoError(t, err)
	rec, ok := v.(ActivityRecorded)
	require.True(t, ok)
	require.Equal(t, "Water", rec.ActivityType)
	require.Nil(t, rec.Value)

	_, err = Decode(TypeActivityRecorded, []byte(`{"activity_id":"a"}`))
	require.Error(t, err)

	_, err = Decode(TypeActivityDeleted, []byte(`not json`))
	require.Error(t, err)

	_, err = Decode("activity.renamed", []byte(`{}`))
	require.ErrorIs(t, err, ErrUnknownEvent)
}
