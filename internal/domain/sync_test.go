package domain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/wellness/internal/domain"
	"example.com/wellness/internal/persistence/memory"
)

func seedOffline(t *testing.T, f *fixture, deviceID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, f.offline.AppendActivity(context.Background(), deviceID, domain.ActivityRecord{
			ID:           "local-" + string(rune('a'+i)),
			ActivityType: "Water",
			Emoji:        "💧",
			CreatedAt:    t0,
		}))
	}
}

func TestSyncActivitiesMovesBatchAndClearsLocal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedOffline(t, f, "d1", 3)
	svc := domain.NewSyncService(f.remote, f.offline)

	n, err := svc.SyncActivities(ctx, domain.Principal{UserID: "u1", DeviceID: "d1"})
	require.NoError(t, err)
	require.Equal(t, 3, n)

	local, err := f.offline.Activities(ctx, "d1")
	require.NoError(t, err)
	require.Empty(t, local)

	remote, err := f.remote.ListActivities(ctx, "u1", domain.ActivityFilter{})
	require.NoError(t, err)
	require.Len(t, remote, 3)
	for _, r := range remote {
		require.Equal(t, "u1", r.UserID)
		require.True(t, t0.Equal(r.CreatedAt))
	}
}

func TestSyncActivitiesFailureLeavesLocalUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedOffline(t, f, "d1", 3)
	svc := domain.NewSyncService(f.remote, f.offline)

	f.remote.Fail(true)
	n, err := svc.SyncActivities(ctx, domain.Principal{UserID: "u1", DeviceID: "d1"})
	require.ErrorIs(t, err, domain.ErrStorage)
	require.Zero(t, n)

	local, err := f.offline.Activities(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, local, 3)

	f.remote.Fail(false)
	remote, err := f.remote.ListActivities(ctx, "u1", domain.ActivityFilter{})
	require.NoError(t, err)
	require.Empty(t, remote)
}

func TestSyncIsRepeatable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedOffline(t, f, "d1", 2)
	svc := domain.NewSyncService(f.remote, f.offline)
	p := domain.Principal{UserID: "u1", DeviceID: "d1"}

	_, err := svc.SyncActivities(ctx, p)
	require.NoError(t, err)
	n, err := svc.SyncActivities(ctx, p)
	require.NoError(t, err)
	require.Zero(t, n)

	// Replaying an already-stored batch does not duplicate rows.
	seedOffline(t, f, "d1", 2)
	_, err = svc.SyncActivities(ctx, p)
	require.NoError(t, err)
	remote, err := f.remote.ListActivities(ctx, "u1", domain.ActivityFilter{})
	require.NoError(t, err)
	require.Len(t, remote, 2)
}

func TestSyncRequiresSignIn(t *testing.T) {
	f := newFixture(t)
	svc := domain.NewSyncService(f.remote, f.offline)
	_, err := svc.Sync(context.Background(), domain.Principal{DeviceID: "d1"})
	require.ErrorIs(t, err, domain.ErrAuthRequired)
}

func TestSyncChats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.offline.AppendChat(ctx, "d1", domain.ChatMessage{ID: "c1", Message: "hi", CreatedAt: t0}))
	require.NoError(t, f.offline.AppendChat(ctx, "d1", domain.ChatMessage{ID: "c2", Message: "hello", IsAI: true, CreatedAt: t0}))
	svc := domain.NewSyncService(f.remote, f.offline)

	report, err := svc.Sync(ctx, domain.Principal{UserID: "u1", DeviceID: "d1"})
	require.NoError(t, err)
	require.Equal(t, 2, report.Chats)
	require.Zero(t, report.Activities)
	require.Equal(t, []string{"Successfully synced your offline chat history"}, report.Notices)

	msgs, err := f.remote.ListChats(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
}

// appendingRemote lets the device write new offline data while a sync batch
// is being stored.
type appendingRemote struct {
	*memory.Store
	offline *domain.OfflineStore
	device  string
}

func (r appendingRemote) InsertActivities(ctx context.Context, userID string, records []domain.ActivityRecord) ([]domain.ActivityRecord, error) {
	if err := r.offline.AppendActivity(ctx, r.device, domain.ActivityRecord{ID: "late", ActivityType: "Water", CreatedAt: t0}); err != nil {
		return nil, err
	}
	return r.Store.InsertActivities(ctx, userID, records)
}

func (r appendingRemote) InsertChats(ctx context.Context, userID string, messages []domain.ChatMessage) ([]domain.ChatMessage, error) {
	if err := r.offline.AppendChat(ctx, r.device, domain.ChatMessage{ID: "late", Message: "still here", CreatedAt: t0}); err != nil {
		return nil, err
	}
	return r.Store.InsertChats(ctx, userID, messages)
}

func TestSyncKeepsRecordsAppendedDuringUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedOffline(t, f, "d1", 3)
	require.NoError(t, f.offline.AppendChat(ctx, "d1", domain.ChatMessage{ID: "c1", Message: "hi", CreatedAt: t0}))
	svc := domain.NewSyncService(appendingRemote{Store: f.remote, offline: f.offline, device: "d1"}, f.offline)

	report, err := svc.Sync(ctx, domain.Principal{UserID: "u1", DeviceID: "d1"})
	require.NoError(t, err)
	require.Equal(t, 3, report.Activities)
	require.Equal(t, 1, report.Chats)

	local, err := f.offline.Activities(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, local, 1)
	require.Equal(t, "late", local[0].ID)

	chats, err := f.offline.Chats(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	require.Equal(t, "late", chats[0].ID)

	remote, err := f.remote.ListActivities(ctx, "u1", domain.ActivityFilter{})
	require.NoError(t, err)
	require.Len(t, remote, 3)
}

type stubAuth struct {
	session domain.Session
	err     error
}

func (s stubAuth) SignIn(ctx context.Context, email, password string) (domain.Session, error) {
	return s.session, s.err
}

func TestLoginSyncsDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedOffline(t, f, "d1", 3)
	login := domain.NewLoginService(stubAuth{session: domain.Session{UserID: "u1", AccessToken: "tok"}}, domain.NewSyncService(f.remote, f.offline))

	session, report, err := login.Login(ctx, "d1", "a@b.c", "pw")
	require.NoError(t, err)
	require.Equal(t, "tok", session.AccessToken)
	require.Equal(t, 3, report.Activities)

	remote, err := f.remote.ListActivities(ctx, "u1", domain.ActivityFilter{})
	require.NoError(t, err)
	require.Len(t, remote, 3)
}

func TestLoginSyncFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	seedOffline(t, f, "d1", 1)
	login := domain.NewLoginService(stubAuth{session: domain.Session{UserID: "u1"}}, domain.NewSyncService(f.remote, f.offline))

	f.remote.Fail(true)
	_, report, err := login.Login(context.Background(), "d1", "a@b.c", "pw")
	require.NoError(t, err)
	require.Len(t, report.Notices, 1)
	require.Contains(t, report.Notices[0], "Failed to sync offline activities")
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newFixture(t)
	login := domain.NewLoginService(stubAuth{err: errors.New("invalid login credentials")}, domain.NewSyncService(f.remote, f.offline))

	_, _, err := login.Login(context.Background(), "d1", "a@b.c", "nope")
	require.ErrorIs(t, err, domain.ErrAuthRequired)

	_, _, err = login.Login(context.Background(), "d1", "", "nope")
	require.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = domain.NewLoginService(nil, nil).Login(context.Background(), "d1", "a@b.c", "pw")
	require.ErrorIs(t, err, domain.ErrAuthRequired)
}
