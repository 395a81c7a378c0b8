package domain_test

import (
	"context"
	"testing"
	"time"

	"example.com/wellness/internal/cooldown"
	"example.com/wellness/internal/domain"
	"example.com/wellness/internal/persistence/memory"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	remote   *memory.Store
	kv       *memory.MemoryKV
	offline  *domain.OfflineStore
	clock    *fakeClock
	tracker  *cooldown.Tracker
	activity *domain.ActivityService
}

var testDefaults = []domain.ActivityDefinition{
	{ID: "bathroom", Name: "Bathroom", Emoji: "💩", ValueKind: domain.ValueKindClick},
	{ID: "water", Name: "Water", Emoji: "💧", ValueKind: domain.ValueKindClick},
	{ID: "screen-time", Name: "Screen Time", Emoji: "📱", ValueKind: domain.ValueKindDuration},
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		remote:  memory.NewStore(),
		kv:      memory.NewKV(),
		clock:   &fakeClock{now: t0},
		tracker: cooldown.NewTracker(cooldown.DefaultWindow),
	}
	f.offline = domain.NewOfflineStore(f.kv)
	f.activity = domain.NewActivityService(f.remote, f.offline, f.tracker, testDefaults, domain.WithClock(f.clock.Now))
	return f
}

type stubAssistant struct {
	reply   string
	err     error
	prompts []string
	keys    []string
}

func (s *stubAssistant) Respond(ctx context.Context, prompt, apiKey string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	s.keys = append(s.keys, apiKey)
	return s.reply, s.err
}

func strPtr(s string) *string { return &s }
