package domain_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/wellness/internal/domain"
	"example.com/wellness/internal/persistence/memory"
)

func TestTrackAnonymousGoesToDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := domain.Principal{DeviceID: "d1"}

	rec, err := f.activity.Track(ctx, p, domain.TrackInput{ActivityType: "Water"})
	require.NoError(t, err)
	require.Equal(t, "💧", rec.Emoji)
	require.Equal(t, t0, rec.CreatedAt)
	require.Nil(t, rec.Value)

	stored, err := f.offline.Activities(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, rec.ID, stored[0].ID)
}

func TestTrackRequiresDeviceWhenAnonymous(t *testing.T) {
	f := newFixture(t)
	_, err := f.activity.Track(context.Background(), domain.Principal{}, domain.TrackInput{ActivityType: "Water"})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestTrackAuthenticatedGoesToRemote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := domain.Principal{UserID: "u1", DeviceID: "d1"}

	rec, err := f.activity.Track(ctx, p, domain.TrackInput{ActivityType: "Screen Time", Value: strPtr(" 45 ")})
	require.NoError(t, err)
	require.Equal(t, "45", *rec.Value)
	require.Equal(t, "u1", rec.UserID)

	remote, err := f.remote.ListActivities(ctx, "u1", domain.ActivityFilter{})
	require.NoError(t, err)
	require.Len(t, remote, 1)

	local, err := f.offline.Activities(ctx, "d1")
	require.NoError(t, err)
	require.Empty(t, local)
}

func TestTrackRejectsNonNumericDuration(t *testing.T) {
	f := newFixture(t)
	_, err := f.activity.Track(context.Background(), domain.Principal{DeviceID: "d1"},
		domain.TrackInput{ActivityType: "Screen Time", Value: strPtr("lots")})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestTrackUnknownTypeUsesDefaultEmoji(t *testing.T) {
	f := newFixture(t)
	rec, err := f.activity.Track(context.Background(), domain.Principal{DeviceID: "d1"},
		domain.TrackInput{ActivityType: "Stretching", Value: strPtr("ten minutes")})
	require.NoError(t, err)
	require.Equal(t, domain.DefaultEmoji, rec.Emoji)
	require.Equal(t, "ten minutes", *rec.Value)
}

func TestTrackCooldownPerType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := domain.Principal{DeviceID: "d1"}

	_, err := f.activity.Track(ctx, p, domain.TrackInput{ActivityType: "Water"})
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	_, err = f.activity.Track(ctx, p, domain.TrackInput{ActivityType: "Water"})
	require.ErrorIs(t, err, domain.ErrCooldownActive)
	var cd *domain.CooldownError
	require.True(t, errors.As(err, &cd))
	require.Equal(t, 20*time.Minute, cd.Remaining)

	_, err = f.activity.Track(ctx, p, domain.TrackInput{ActivityType: "Bathroom"})
	require.NoError(t, err, "other types are not blocked")

	require.Equal(t, 20*time.Minute, f.activity.Remaining(p, "Water"))
	require.Contains(t, f.activity.Cooldowns(p), "Water")

	f.clock.Advance(21 * time.Minute)
	_, err = f.activity.Track(ctx, p, domain.TrackInput{ActivityType: "Water"})
	require.NoError(t, err)

	records, err := f.activity.List(ctx, p, domain.ActivityFilter{ActivityType: "Water"})
	require.NoError(t, err)
	require.Len(t, records, 2)
}

func TestTrackStorageFailureDoesNotStartCooldown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := domain.Principal{UserID: "u1"}

	f.remote.Fail(true)
	_, err := f.activity.Track(ctx, p, domain.TrackInput{ActivityType: "Water"})
	require.ErrorIs(t, err, domain.ErrStorage)

	f.remote.Fail(false)
	_, err = f.activity.Track(ctx, p, domain.TrackInput{ActivityType: "Water"})
	require.NoError(t, err)
}

type slowRemote struct {
	*memory.Store
	delay time.Duration
}

func (r slowRemote) InsertActivities(ctx context.Context, userID string, records []domain.ActivityRecord) ([]domain.ActivityRecord, error) {
	time.Sleep(r.delay)
	return r.Store.InsertActivities(ctx, userID, records)
}

func TestTrackConcurrentDuplicatesAcceptOnce(t *testing.T) {
	f := newFixture(t)
	svc := domain.NewActivityService(slowRemote{Store: f.remote, delay: 20 * time.Millisecond}, f.offline, f.tracker, testDefaults, domain.WithClock(f.clock.Now))
	p := domain.Principal{UserID: "u1"}

	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
		rejected atomic.Int32
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Track(context.Background(), p, domain.TrackInput{ActivityType: "Water"})
			switch {
			case err == nil:
				accepted.Add(1)
			case errors.Is(err, domain.ErrCooldownActive):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), accepted.Load())
	require.Equal(t, int32(4), rejected.Load())
	stored, err := f.remote.ListActivities(context.Background(), "u1", domain.ActivityFilter{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestListAnonymousPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := domain.Principal{DeviceID: "d1"}
	for _, name := range []string{"Water", "Bathroom", "Screen Time"} {
		_, err := f.activity.Track(ctx, p, domain.TrackInput{ActivityType: name})
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}

	page, err := f.activity.List(ctx, p, domain.ActivityFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, "Screen Time", page[0].ActivityType)

	next := domain.NextCursor(page, 2)
	require.NotNil(t, next)
	page, err = f.activity.List(ctx, p, domain.ActivityFilter{Limit: 2, Before: next})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "Water", page[0].ActivityType)
	require.Nil(t, domain.NextCursor(page, 2))
}

func TestDeleteActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := domain.Principal{UserID: "u1"}
	rec, err := f.activity.Track(ctx, p, domain.TrackInput{ActivityType: "Water"})
	require.NoError(t, err)

	require.NoError(t, f.activity.Delete(ctx, p, rec.ID))
	require.ErrorIs(t, f.activity.Delete(ctx, p, rec.ID), domain.ErrNotFound)
}

func TestCreateDefinitionTracksFirstInstance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := domain.Principal{UserID: "u1", DeviceID: "d1"}

	def, first, err := f.activity.CreateDefinition(ctx, p, domain.DefinitionInput{Name: "Meditation", Emoji: "🧘", ValueKind: domain.ValueKindDuration})
	require.NoError(t, err)
	require.True(t, def.Custom)
	require.NotEmpty(t, def.ID)
	require.NotNil(t, first)
	require.Equal(t, "Meditation", first.ActivityType)
	require.Equal(t, "🧘", first.Emoji)

	defs, err := f.activity.Definitions(ctx, p)
	require.NoError(t, err)
	require.Len(t, defs, len(testDefaults)+1)
	require.Equal(t, "Meditation", defs[len(defs)-1].Name)

	mirrored, err := f.offline.CustomDefinitions(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, mirrored, 1)

	anonDefs, err := f.activity.Definitions(ctx, domain.Principal{DeviceID: "d1"})
	require.NoError(t, err)
	require.Len(t, anonDefs, len(testDefaults)+1)

	_, _, err = f.activity.CreateDefinition(ctx, p, domain.DefinitionInput{Name: "water", Emoji: "💧"})
	require.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, f.activity.DeleteDefinition(ctx, p, def.ID))
	mirrored, err = f.offline.CustomDefinitions(ctx, "d1")
	require.NoError(t, err)
	require.Empty(t, mirrored)
}

func TestCreateDefinitionRequiresSignIn(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.activity.CreateDefinition(context.Background(), domain.Principal{DeviceID: "d1"},
		domain.DefinitionInput{Name: "Yoga", Emoji: "🧘"})
	require.ErrorIs(t, err, domain.ErrAuthRequired)
}
