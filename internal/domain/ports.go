package domain

import (
	"context"
	"time"
)

// ActivityStore persists activity records for authenticated users.
type ActivityStore interface {
	// InsertActivities stores records in one batch. Records whose id already
	// exists are left untouched, which makes replaying a batch harmless.
	InsertActivities(ctx context.Context, userID string, records []ActivityRecord) ([]ActivityRecord, error)
	// ListActivities returns records most-recent-first.
	ListActivities(ctx context.Context, userID string, filter ActivityFilter) ([]ActivityRecord, error)
	DeleteActivity(ctx context.Context, userID, id string) error
}

// ChatStore persists chat messages for authenticated users.
type ChatStore interface {
	InsertChats(ctx context.Context, userID string, messages []ChatMessage) ([]ChatMessage, error)
	// ListChats returns messages in chronological order.
	ListChats(ctx context.Context, userID string) ([]ChatMessage, error)
	DeleteAllChats(ctx context.Context, userID string) error
}

// NoteStore persists notes for authenticated users.
type NoteStore interface {
	InsertNote(ctx context.Context, note Note) (Note, error)
	// ListNotes returns notes ordered by UpdatedAt, newest first.
	ListNotes(ctx context.Context, userID string) ([]Note, error)
	UpdateNote(ctx context.Context, note Note) (Note, error)
	DeleteNote(ctx context.Context, userID, id string) error
	// SearchNotes matches query case-insensitively against title or content.
	SearchNotes(ctx context.Context, userID, query string) ([]Note, error)
}

// DefinitionStore persists user-created activity definitions.
type DefinitionStore interface {
	InsertDefinition(ctx context.Context, userID string, def ActivityDefinition) (ActivityDefinition, error)
	ListDefinitions(ctx context.Context, userID string) ([]ActivityDefinition, error)
	DeleteDefinition(ctx context.Context, userID, id string) error
}

// RemoteStore is the hosted backend: every operation is scoped to one user.
type RemoteStore interface {
	ActivityStore
	ChatStore
	NoteStore
	DefinitionStore
}

// KeyValueStore is the persistent per-device fallback storage. Get reports
// found=false for absent keys; Put replaces the stored value.
type KeyValueStore interface {
	Get(ctx context.Context, scope, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, scope, key string, value []byte) error
	Delete(ctx context.Context, scope, key string) error
}

// Assistant produces a reply for prompt. It always returns displayable text;
// a non-nil error means the text is a fallback and the failure should be surfaced.
type Assistant interface {
	Respond(ctx context.Context, prompt, apiKey string) (string, error)
}

// Limiter is the advisory per-type lock taken before tracking. Reserve checks
// and opens the window in one step; Release undoes a reservation whose store
// failed.
type Limiter interface {
	Check(key, activityType string, now time.Time) (time.Duration, bool)
	Reserve(key, activityType string, now time.Time) (time.Duration, bool)
	Release(key, activityType string, now time.Time)
}

// Session is the outcome of a hosted sign-in.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
}

// Authenticator signs users in against the hosted auth service.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (Session, error)
}

// Clock abstracts time for deterministic tests.
type Clock func() time.Time
