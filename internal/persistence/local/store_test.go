package local

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/wellness/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, found, err := s.Get(ctx, "device:a", "offlineActivities")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.Put(ctx, "device:a", "offlineActivities", []byte(`[1]`)))
	require.NoError(t, s.Put(ctx, "device:a", "offlineActivities", []byte(`[1,2]`)))

	v, found, err := s.Get(ctx, "device:a", "offlineActivities")
	require.NoError(t, err)
	require.True(t, found)
	require.JSONEq(t, `[1,2]`, string(v))

	_, found, err = s.Get(ctx, "device:b", "offlineActivities")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.Delete(ctx, "device:a", "offlineActivities"))
	require.NoError(t, s.Delete(ctx, "device:a", "offlineActivities"))
	_, found, err = s.Get(ctx, "device:a", "offlineActivities")
	require.NoError(t, err)
	require.False(t, found)
}

func TestValuesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), "device:a", "geminiApiKey", []byte(`"k"`)))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	v, found, err := s.Get(context.Background(), "device:a", "geminiApiKey")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, `"k"`, string(v))
}

func TestPragmasApplyToEveryConnection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	conns := make([]*sql.Conn, 3)
	for i := range conns {
		c, err := s.db.Conn(ctx)
		require.NoError(t, err)
		conns[i] = c
	}
	for _, c := range conns {
		var timeout int
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
		require.Equal(t, 5000, timeout)

		var mode string
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
		require.Equal(t, "wal", mode)
	}
	for _, c := range conns {
		require.NoError(t, c.Close())
	}
}

func TestOfflineStoreOnSQLite(t *testing.T) {
	offline := domain.NewOfflineStore(newTestStore(t))
	ctx := context.Background()

	require.NoError(t, offline.AppendActivity(ctx, "d1", domain.ActivityRecord{ID: "1", ActivityType: "Water"}))
	require.NoError(t, offline.AppendActivity(ctx, "d1", domain.ActivityRecord{ID: "2", ActivityType: "Bathroom"}))

	records, err := offline.Activities(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "Water", records[0].ActivityType)

	other, err := offline.Activities(ctx, "d2")
	require.NoError(t, err)
	require.Empty(t, other)

	require.NoError(t, offline.RemoveActivities(ctx, "d1", []string{"1", "2"}))
	records, err = offline.Activities(ctx, "d1")
	require.NoError(t, err)
	require.Empty(t, records)
}
