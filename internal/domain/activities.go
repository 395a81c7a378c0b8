// Package domain defines the wellness tracking business logic.
package domain

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"example.com/wellness/internal/observability"
)

// DefaultEmoji is used for activities that carry no emoji of their own.
const DefaultEmoji = "📊"

// ActivityService records and lists activities. Authenticated callers go to
// the remote store; anonymous callers fall back to their device collection.
type ActivityService struct {
	remote   RemoteStore
	offline  *OfflineStore
	limiter  Limiter
	defaults []ActivityDefinition
	serviceOptions
}

// NewActivityService constructs an ActivityService.
func NewActivityService(remote RemoteStore, offline *OfflineStore, limiter Limiter, defaults []ActivityDefinition, opts ...Option) *ActivityService {
	return &ActivityService{
		remote:         remote,
		offline:        offline,
		limiter:        limiter,
		defaults:       defaults,
		serviceOptions: newServiceOptions(opts),
	}
}

// TrackInput captures a single track request.
type TrackInput struct {
	ActivityType string
	Emoji        string
	Value        *string
}

// DefinitionInput captures a custom definition request.
type DefinitionInput struct {
	Name        string
	Emoji       string
	Description string
	ValueKind   ValueKind
}

func requireCaller(p Principal) error {
	if !p.Authenticated() && strings.TrimSpace(p.DeviceID) == "" {
		return validationError("device id is required when not signed in")
	}
	return nil
}

// Track records one occurrence of an activity, subject to the per-type cooldown.
func (s *ActivityService) Track(ctx context.Context, p Principal, in TrackInput) (ActivityRecord, error) {
	if err := requireCaller(p); err != nil {
		return ActivityRecord{}, err
	}
	activityType := strings.TrimSpace(in.ActivityType)
	if activityType == "" {
		return ActivityRecord{}, validationError("activity_type is required")
	}

	def, _ := s.lookup(ctx, p, activityType)
	value, err := normalizeValue(def.ValueKind, in.Value)
	if err != nil {
		return ActivityRecord{}, err
	}

	emoji := strings.TrimSpace(in.Emoji)
	if emoji == "" {
		emoji = def.Emoji
	}
	if emoji == "" {
		emoji = DefaultEmoji
	}

	now := s.now()
	if remaining, ok := s.limiter.Reserve(p.Key(), activityType, now); !ok {
		observability.RecordCooldownRejected(activityType)
		return ActivityRecord{}, &CooldownError{ActivityType: activityType, Remaining: remaining}
	}

	record := ActivityRecord{
		ID:           uuid.NewString(),
		UserID:       p.UserID,
		ActivityType: activityType,
		Emoji:        emoji,
		Value:        value,
		CreatedAt:    now,
	}

	if p.Authenticated() {
		stored, err := s.remote.InsertActivities(ctx, p.UserID, []ActivityRecord{record})
		if err != nil {
			s.limiter.Release(p.Key(), activityType, now)
			return ActivityRecord{}, StorageError("record activity", err)
		}
		if len(stored) > 0 {
			record = stored[0]
		}
		observability.RecordActivityTracked("remote")
	} else {
		if err := s.offline.AppendActivity(ctx, p.DeviceID, record); err != nil {
			s.limiter.Release(p.Key(), activityType, now)
			return ActivityRecord{}, err
		}
		observability.RecordActivityTracked("local")
	}

	return record, nil
}

// normalizeValue resolves the auxiliary value against the declared kind.
func normalizeValue(kind ValueKind, value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	v := strings.TrimSpace(*value)
	if v == "" || kind == ValueKindClick {
		return nil, nil
	}
	if kind == ValueKindNumber || kind == ValueKindDuration {
		n, ok := ParseNumber(v)
		if !ok {
			return nil, validationError("value %q must be a number", v)
		}
		if n < 0 {
			return nil, validationError("value must not be negative")
		}
	}
	return &v, nil
}

// List returns the caller's activities, most recent first.
func (s *ActivityService) List(ctx context.Context, p Principal, filter ActivityFilter) ([]ActivityRecord, error) {
	if err := requireCaller(p); err != nil {
		return nil, err
	}
	if filter.Limit < 0 {
		filter.Limit = 0
	}
	if p.Authenticated() {
		records, err := s.remote.ListActivities(ctx, p.UserID, filter)
		if err != nil {
			return nil, StorageError("list activities", err)
		}
		return records, nil
	}

	records, err := s.offline.Activities(ctx, p.DeviceID)
	if err != nil {
		return nil, err
	}
	return pageRecords(records, filter), nil
}

// pageRecords applies filter to an in-memory collection.
func pageRecords(records []ActivityRecord, filter ActivityFilter) []ActivityRecord {
	out := make([]ActivityRecord, 0, len(records))
	for _, r := range records {
		if filter.ActivityType != "" && r.ActivityType != filter.ActivityType {
			continue
		}
		if c := filter.Before; c != nil {
			if r.CreatedAt.After(c.CreatedAt) || (r.CreatedAt.Equal(c.CreatedAt) && r.ID >= c.ID) {
				continue
			}
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

// NextCursor returns the cursor following a full page, or nil.
func NextCursor(records []ActivityRecord, limit int) *Cursor {
	if limit <= 0 || len(records) < limit {
		return nil
	}
	last := records[len(records)-1]
	return &Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
}

// Delete removes one of the caller's activities.
func (s *ActivityService) Delete(ctx context.Context, p Principal, id string) error {
	if err := requireCaller(p); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return validationError("activity id is required")
	}
	if p.Authenticated() {
		return StorageError("delete activity", s.remote.DeleteActivity(ctx, p.UserID, id))
	}
	return s.offline.RemoveActivity(ctx, p.DeviceID, id)
}

// Cooldowns returns the remaining wait per activity type for the caller.
func (s *ActivityService) Cooldowns(p Principal) map[string]time.Duration {
	type activeLister interface {
		Active(key string, now time.Time) map[string]time.Duration
	}
	if l, ok := s.limiter.(activeLister); ok {
		return l.Active(p.Key(), s.now())
	}
	return map[string]time.Duration{}
}

// Remaining reports how long activityType stays blocked for the caller.
func (s *ActivityService) Remaining(p Principal, activityType string) time.Duration {
	remaining, blocked := s.limiter.Check(p.Key(), activityType, s.now())
	if !blocked {
		return 0
	}
	return remaining
}

// Definitions returns the default catalog followed by the caller's custom definitions.
func (s *ActivityService) Definitions(ctx context.Context, p Principal) ([]ActivityDefinition, error) {
	out := make([]ActivityDefinition, 0, len(s.defaults))
	out = append(out, s.defaults...)

	var custom []ActivityDefinition
	var err error
	switch {
	case p.Authenticated():
		custom, err = s.remote.ListDefinitions(ctx, p.UserID)
		if err != nil {
			return nil, StorageError("list definitions", err)
		}
		if p.DeviceID != "" {
			if mirrorErr := s.offline.SetCustomDefinitions(ctx, p.DeviceID, custom); mirrorErr != nil {
				s.logger.Warn("mirror custom definitions failed", zap.String("device_id", p.DeviceID), zap.Error(mirrorErr))
			}
		}
	case p.DeviceID != "":
		custom, err = s.offline.CustomDefinitions(ctx, p.DeviceID)
		if err != nil {
			return nil, err
		}
	}
	for _, def := range custom {
		def.Custom = true
		out = append(out, def)
	}
	return out, nil
}

func (s *ActivityService) lookup(ctx context.Context, p Principal, name string) (ActivityDefinition, bool) {
	for _, def := range s.defaults {
		if strings.EqualFold(def.Name, name) {
			return def, true
		}
	}
	defs, err := s.Definitions(ctx, p)
	if err != nil {
		s.logger.Debug("definition lookup failed", zap.String("activity_type", name), zap.Error(err))
		return ActivityDefinition{}, false
	}
	for _, def := range defs {
		if strings.EqualFold(def.Name, name) {
			return def, true
		}
	}
	return ActivityDefinition{}, false
}

// CreateDefinition stores a custom definition and records its first occurrence.
// The returned record is nil when that first track could not be stored.
func (s *ActivityService) CreateDefinition(ctx context.Context, p Principal, in DefinitionInput) (ActivityDefinition, *ActivityRecord, error) {
	if !p.Authenticated() {
		return ActivityDefinition{}, nil, ErrAuthRequired
	}
	def := ActivityDefinition{
		Name:        strings.TrimSpace(in.Name),
		Emoji:       strings.TrimSpace(in.Emoji),
		Description: strings.TrimSpace(in.Description),
		ValueKind:   in.ValueKind,
	}
	if def.Name == "" {
		return ActivityDefinition{}, nil, validationError("name is required")
	}
	if def.Emoji == "" {
		return ActivityDefinition{}, nil, validationError("emoji is required")
	}
	if def.ValueKind == "" {
		def.ValueKind = ValueKindClick
	}
	if !def.ValueKind.Valid() {
		return ActivityDefinition{}, nil, validationError("unknown value kind %q", def.ValueKind)
	}

	existing, err := s.Definitions(ctx, p)
	if err != nil {
		return ActivityDefinition{}, nil, err
	}
	for _, d := range existing {
		if strings.EqualFold(d.Name, def.Name) {
			return ActivityDefinition{}, nil, validationError("activity %q already exists", def.Name)
		}
	}

	def.ID = uuid.NewString()
	stored, err := s.remote.InsertDefinition(ctx, p.UserID, def)
	if err != nil {
		return ActivityDefinition{}, nil, StorageError("create definition", err)
	}
	stored.Custom = true

	if p.DeviceID != "" {
		mirror := make([]ActivityDefinition, 0, len(existing)+1)
		for _, d := range existing {
			if d.Custom {
				mirror = append(mirror, d)
			}
		}
		if err := s.offline.SetCustomDefinitions(ctx, p.DeviceID, append(mirror, stored)); err != nil {
			s.logger.Warn("mirror custom definition failed", zap.String("device_id", p.DeviceID), zap.Error(err))
		}
	}

	first, err := s.Track(ctx, p, TrackInput{ActivityType: stored.Name, Emoji: stored.Emoji})
	if err != nil {
		var cooldown *CooldownError
		if !errors.As(err, &cooldown) {
			s.logger.Warn("first track of new definition failed", zap.String("name", stored.Name), zap.Error(err))
		}
		return stored, nil, nil
	}
	return stored, &first, nil
}

// DeleteDefinition removes a custom definition.
func (s *ActivityService) DeleteDefinition(ctx context.Context, p Principal, id string) error {
	if !p.Authenticated() {
		return ErrAuthRequired
	}
	if strings.TrimSpace(id) == "" {
		return validationError("definition id is required")
	}
	if err := s.remote.DeleteDefinition(ctx, p.UserID, id); err != nil {
		return StorageError("delete definition", err)
	}
	if p.DeviceID != "" {
		if _, err := s.Definitions(ctx, p); err != nil {
			s.logger.Warn("refresh mirrored definitions failed", zap.Error(err))
		}
	}
	return nil
}
