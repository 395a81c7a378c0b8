package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// ValueKind declares what auxiliary value, if any, an activity records.
type ValueKind string

const (
	ValueKindClick    ValueKind = "click"
	ValueKindNumber   ValueKind = "number"
	ValueKindText     ValueKind = "text"
	ValueKindDuration ValueKind = "duration"
)

// Valid reports whether k is one of the known kinds.
func (k ValueKind) Valid() bool {
	switch k {
	case ValueKindClick, ValueKindNumber, ValueKindText, ValueKindDuration:
		return true
	}
	return false
}

// Numeric reports whether values of this kind are summed rather than counted.
// An empty kind belongs to a free-form label and is treated as numeric-capable.
func (k ValueKind) Numeric() bool {
	return k == "" || k == ValueKindNumber || k == ValueKindDuration
}

// ActivityRecord is a single tracked occurrence. Records are never updated in place.
type ActivityRecord struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id,omitempty"`
	ActivityType string    `json:"activity_type"`
	Emoji        string    `json:"emoji"`
	Value        *string   `json:"value"`
	CreatedAt    time.Time `json:"created_at"`
}

// NumericValue parses the record value as a finite decimal.
func (r ActivityRecord) NumericValue() (float64, bool) {
	if r.Value == nil {
		return 0, false
	}
	return ParseNumber(*r.Value)
}

// ParseNumber parses s as a finite decimal number.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// ActivityDefinition describes a trackable activity button.
type ActivityDefinition struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Emoji       string    `json:"emoji" yaml:"emoji"`
	Description string    `json:"description,omitempty" yaml:"description"`
	ValueKind   ValueKind `json:"value_kind" yaml:"value_kind"`
	Custom      bool      `json:"custom" yaml:"-"`
}

// ChatMessage is one side of the assistant conversation.
type ChatMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Message   string    `json:"message"`
	IsAI      bool      `json:"is_ai"`
	CreatedAt time.Time `json:"created_at"`
}

// Note is a free-form user note. Notes only exist for authenticated users.
type Note struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Principal identifies the caller: an authenticated user, or an anonymous device.
type Principal struct {
	UserID   string
	DeviceID string
}

// Authenticated reports whether the principal carries a user identity.
func (p Principal) Authenticated() bool {
	return p.UserID != ""
}

// Key returns a stable identifier for per-caller state such as cooldowns.
func (p Principal) Key() string {
	if p.Authenticated() {
		return "user:" + p.UserID
	}
	return "device:" + p.DeviceID
}

// Cursor models the history pagination token.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// ActivityFilter narrows activity listings.
type ActivityFilter struct {
	ActivityType string
	Limit        int
	Before       *Cursor
}
