// Package events defines the activity event payloads carried through the outbox.
package events

import (
	"encoding/json"
	"errors"
	"time"
)

// Event types.
const (
	TypeActivityRecorded = "activity.recorded"
	TypeActivityDeleted  = "activity.deleted"
)

// ActivityRecorded is emitted when an activity row is stored, including rows
// arriving through an offline sync.
type ActivityRecorded struct {
	ActivityID   string    `json:"activity_id"`
	UserID       string    `json:"user_id"`
	ActivityType string    `json:"activity_type"`
	Emoji        string    `json:"emoji"`
	Value        *string   `json:"value,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ActivityDeleted is emitted when a user removes an activity.
type ActivityDeleted struct {
	ActivityID string    `json:"activity_id"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ErrUnknownEvent is returned by Decode for unsupported event types.
var ErrUnknownEvent = errors.New("unknown event type")

// Decode parses payload according to eventType and checks required fields.
func Decode(eventType string, payload []byte) (interface{}, error) {
	switch eventType {
	case TypeActivityRecorded:
		var e ActivityRecorded
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		if e.ActivityID == "" || e.UserID == "" || e.ActivityType == "" {
			return nil, errors.New("activity.recorded: missing required field")
		}
		return e, nil
	case TypeActivityDeleted:
		var e ActivityDeleted
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		if e.ActivityID == "" || e.UserID == "" {
			return nil, errors.New("activity.deleted: missing required field")
		}
		return e, nil
	default:
		return nil, ErrUnknownEvent
	}
}
