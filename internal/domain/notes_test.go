package domain_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/wellness/internal/domain"
	"example.com/wellness/internal/persistence/memory"
)

func TestNotesLifecycle(t *testing.T) {
	clock := &fakeClock{now: t0}
	svc := domain.NewNoteService(memory.NewStore(), domain.WithClock(clock.Now))
	ctx := context.Background()
	p := domain.Principal{UserID: "u1"}

	first, err := svc.Create(ctx, p, domain.NoteInput{Title: "Sleep", Content: "8 hours"})
	require.NoError(t, err)
	clock.Advance(time.Minute)
	second, err := svc.Create(ctx, p, domain.NoteInput{Title: "Diet", Content: "less sugar"})
	require.NoError(t, err)

	notes, err := svc.List(ctx, p)
	require.NoError(t, err)
	require.Equal(t, []string{second.ID, first.ID}, []string{notes[0].ID, notes[1].ID})

	clock.Advance(time.Minute)
	updated, err := svc.Update(ctx, p, first.ID, domain.NoteInput{Title: "Sleep", Content: "7 hours"})
	require.NoError(t, err)
	require.Equal(t, t0.Add(2*time.Minute), updated.UpdatedAt)
	require.Equal(t, t0, updated.CreatedAt)

	notes, err = svc.List(ctx, p)
	require.NoError(t, err)
	require.Equal(t, first.ID, notes[0].ID)

	found, err := svc.Search(ctx, p, "SUGAR")
	require.NoError(t, err)
	require.Len(t, found, 1)

	found, err = svc.Search(ctx, p, "nothing matches")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Empty(t, found)

	all, err := svc.Search(ctx, p, "  ")
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.NoError(t, svc.Delete(ctx, p, second.ID))
	require.ErrorIs(t, svc.Delete(ctx, p, second.ID), domain.ErrNotFound)
}

func TestNotesRequireSignIn(t *testing.T) {
	svc := domain.NewNoteService(memory.NewStore())
	_, err := svc.Create(context.Background(), domain.Principal{DeviceID: "d1"}, domain.NoteInput{Title: "x"})
	require.ErrorIs(t, err, domain.ErrAuthRequired)

	_, err = svc.Create(context.Background(), domain.Principal{UserID: "u1"}, domain.NoteInput{Title: " "})
	require.ErrorIs(t, err, domain.ErrValidation)
}
