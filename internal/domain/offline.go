package domain

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
)

// Keys held in the local fallback store for each device.
const (
	KeyOfflineActivities = "offlineActivities"
	KeyOfflineChats      = "offlineChats"
	KeyCustomActivities  = "customActivities"
	KeyGeminiAPIKey      = "geminiApiKey"
)

// OfflineStore gives typed access to a device's fallback collections.
// Collections are read whole and written whole.
type OfflineStore struct {
	kv KeyValueStore
	mu sync.Mutex
}

// NewOfflineStore wraps kv.
func NewOfflineStore(kv KeyValueStore) *OfflineStore {
	return &OfflineStore{kv: kv}
}

func deviceScope(deviceID string) string {
	return "device:" + deviceID
}

func (s *OfflineStore) read(ctx context.Context, deviceID, key string, dst interface{}) error {
	raw, found, err := s.kv.Get(ctx, deviceScope(deviceID), key)
	if err != nil {
		return StorageError("read "+key, err)
	}
	if !found || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return StorageError("decode "+key, err)
	}
	return nil
}

func (s *OfflineStore) write(ctx context.Context, deviceID, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return StorageError("encode "+key, err)
	}
	return StorageError("write "+key, s.kv.Put(ctx, deviceScope(deviceID), key, raw))
}

// Activities returns the device's offline activities in insertion order.
func (s *OfflineStore) Activities(ctx context.Context, deviceID string) ([]ActivityRecord, error) {
	out := []ActivityRecord{}
	if err := s.read(ctx, deviceID, KeyOfflineActivities, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AppendActivity adds record to the device collection.
func (s *OfflineStore) AppendActivity(ctx context.Context, deviceID string, record ActivityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.Activities(ctx, deviceID)
	if err != nil {
		return err
	}
	return s.write(ctx, deviceID, KeyOfflineActivities, append(records, record))
}

// RemoveActivity drops the record with id. Unknown ids are not an error.
func (s *OfflineStore) RemoveActivity(ctx context.Context, deviceID, id string) error {
	return s.RemoveActivities(ctx, deviceID, []string{id})
}

// RemoveActivities drops the records whose ids are listed and keeps the rest,
// including records appended after ids were collected.
func (s *OfflineStore) RemoveActivities(ctx context.Context, deviceID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.Activities(ctx, deviceID)
	if err != nil {
		return err
	}
	drop := idSet(ids)
	kept := records[:0]
	for _, r := range records {
		if _, ok := drop[r.ID]; !ok {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		return StorageError("clear "+KeyOfflineActivities, s.kv.Delete(ctx, deviceScope(deviceID), KeyOfflineActivities))
	}
	return s.write(ctx, deviceID, KeyOfflineActivities, kept)
}

// Chats returns the device's offline chat messages in insertion order.
func (s *OfflineStore) Chats(ctx context.Context, deviceID string) ([]ChatMessage, error) {
	out := []ChatMessage{}
	if err := s.read(ctx, deviceID, KeyOfflineChats, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AppendChat adds msg to the device collection.
func (s *OfflineStore) AppendChat(ctx context.Context, deviceID string, msg ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs, err := s.Chats(ctx, deviceID)
	if err != nil {
		return err
	}
	return s.write(ctx, deviceID, KeyOfflineChats, append(msgs, msg))
}

// RemoveChats drops the messages whose ids are listed and keeps the rest.
func (s *OfflineStore) RemoveChats(ctx context.Context, deviceID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs, err := s.Chats(ctx, deviceID)
	if err != nil {
		return err
	}
	drop := idSet(ids)
	kept := msgs[:0]
	for _, m := range msgs {
		if _, ok := drop[m.ID]; !ok {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 {
		return s.clearChatsLocked(ctx, deviceID)
	}
	return s.write(ctx, deviceID, KeyOfflineChats, kept)
}

// ClearChats removes the device collection.
func (s *OfflineStore) ClearChats(ctx context.Context, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearChatsLocked(ctx, deviceID)
}

func (s *OfflineStore) clearChatsLocked(ctx context.Context, deviceID string) error {
	return StorageError("clear "+KeyOfflineChats, s.kv.Delete(ctx, deviceScope(deviceID), KeyOfflineChats))
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// CustomDefinitions returns the definitions mirrored onto this device.
func (s *OfflineStore) CustomDefinitions(ctx context.Context, deviceID string) ([]ActivityDefinition, error) {
	out := []ActivityDefinition{}
	if err := s.read(ctx, deviceID, KeyCustomActivities, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetCustomDefinitions replaces the mirrored definitions.
func (s *OfflineStore) SetCustomDefinitions(ctx context.Context, deviceID string, defs []ActivityDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ctx, deviceID, KeyCustomActivities, defs)
}

// APIKey returns the device's assistant key override, or "".
func (s *OfflineStore) APIKey(ctx context.Context, deviceID string) (string, error) {
	var key string
	if err := s.read(ctx, deviceID, KeyGeminiAPIKey, &key); err != nil {
		return "", err
	}
	return key, nil
}

// SetAPIKey stores an assistant key override for the device.
func (s *OfflineStore) SetAPIKey(ctx context.Context, deviceID, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return validationError("api key must not be empty")
	}
	return s.write(ctx, deviceID, KeyGeminiAPIKey, key)
}

// ClearAPIKey removes the override.
func (s *OfflineStore) ClearAPIKey(ctx context.Context, deviceID string) error {
	return StorageError("clear "+KeyGeminiAPIKey, s.kv.Delete(ctx, deviceScope(deviceID), KeyGeminiAPIKey))
}
