// Package cooldown implements the advisory per-activity-type lock taken
// when a track is accepted.
package cooldown

import (
	"context"
	"sync"
	"time"
)

// DefaultWindow is how long a type stays blocked after it is tracked.
const DefaultWindow = 30 * time.Minute

// Tracker remembers when each (caller, activity type) pair was last tracked.
// It is safe for concurrent use.
type Tracker struct {
	window time.Duration
	mu     sync.Mutex
	until  map[string]map[string]time.Time
}

// NewTracker constructs a Tracker. A non-positive window uses DefaultWindow.
func NewTracker(window time.Duration) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{window: window, until: make(map[string]map[string]time.Time)}
}

// Window returns the configured cooldown length.
func (t *Tracker) Window() time.Duration {
	return t.window
}

// Reserve atomically checks activityType and, when it is free, opens its
// cooldown at now. It returns the remaining wait and false when the type is
// still blocked.
func (t *Tracker) Reserve(key, activityType string, now time.Time) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if remaining, blocked := t.blockedLocked(key, activityType, now); blocked {
		return remaining, false
	}
	types, ok := t.until[key]
	if !ok {
		types = make(map[string]time.Time)
		t.until[key] = types
	}
	types[activityType] = now.Add(t.window)
	return 0, true
}

// Release undoes the reservation made at now. A later reservation for the
// same type is left alone.
func (t *Tracker) Release(key, activityType string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	types := t.until[key]
	if until, ok := types[activityType]; ok && until.Equal(now.Add(t.window)) {
		t.dropLocked(key, activityType)
	}
}

// Check reports the remaining wait and whether activityType is still blocked.
// Expired entries are dropped.
func (t *Tracker) Check(key, activityType string, now time.Time) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.blockedLocked(key, activityType, now)
}

func (t *Tracker) blockedLocked(key, activityType string, now time.Time) (time.Duration, bool) {
	until, ok := t.until[key][activityType]
	if !ok {
		return 0, false
	}
	if !now.Before(until) {
		t.dropLocked(key, activityType)
		return 0, false
	}
	return until.Sub(now), true
}

func (t *Tracker) dropLocked(key, activityType string) {
	types := t.until[key]
	delete(types, activityType)
	if len(types) == 0 {
		delete(t.until, key)
	}
}

// Active returns every still-blocked type for key with its remaining wait.
func (t *Tracker) Active(key string, now time.Time) map[string]time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]time.Duration)
	for activityType, until := range t.until[key] {
		if now.Before(until) {
			out[activityType] = until.Sub(now)
		}
	}
	return out
}

// Countdown emits the remaining wait once immediately and then on every
// tick, closing the channel when the cooldown expires or ctx is done.
// remaining is consulted on each tick.
func Countdown(ctx context.Context, remaining func() (time.Duration, bool), tick time.Duration) <-chan time.Duration {
	if tick <= 0 {
		tick = time.Second
	}
	out := make(chan time.Duration, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			left, blocked := remaining()
			if !blocked {
				return
			}
			select {
			case out <- left:
			case <-ctx.Done():
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out
}
