// Package memory keeps remote-store data in process memory for local
// development and tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"example.com/wellness/internal/domain"
)

// ErrUnavailable is returned by every call after Fail is set.
var ErrUnavailable = errors.New("memory store unavailable")

// Store implements domain.RemoteStore.
type Store struct {
	mu          sync.RWMutex
	activities  map[string][]domain.ActivityRecord
	chats       map[string][]domain.ChatMessage
	notes       map[string]map[string]domain.Note
	definitions map[string][]domain.ActivityDefinition
	fail        bool
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		activities:  make(map[string][]domain.ActivityRecord),
		chats:       make(map[string][]domain.ChatMessage),
		notes:       make(map[string]map[string]domain.Note),
		definitions: make(map[string][]domain.ActivityDefinition),
	}
}

// Fail makes subsequent calls return ErrUnavailable until reset.
func (s *Store) Fail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

// InsertActivities implements domain.ActivityStore.
func (s *Store) InsertActivities(ctx context.Context, userID string, records []domain.ActivityRecord) ([]domain.ActivityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, ErrUnavailable
	}
	// Ids are unique across users, as with a primary key.
	existing := make(map[string]struct{})
	for _, records := range s.activities {
		for _, r := range records {
			existing[r.ID] = struct{}{}
		}
	}
	inserted := make([]domain.ActivityRecord, 0, len(records))
	for _, r := range records {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if _, dup := existing[r.ID]; dup {
			continue
		}
		r.UserID = userID
		s.activities[userID] = append(s.activities[userID], r)
		existing[r.ID] = struct{}{}
		inserted = append(inserted, r)
	}
	return inserted, nil
}

// ListActivities implements domain.ActivityStore.
func (s *Store) ListActivities(ctx context.Context, userID string, filter domain.ActivityFilter) ([]domain.ActivityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail {
		return nil, ErrUnavailable
	}
	out := make([]domain.ActivityRecord, 0, len(s.activities[userID]))
	for _, r := range s.activities[userID] {
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
	return out, nil
}

// DeleteActivity implements domain.ActivityStore.
func (s *Store) DeleteActivity(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return ErrUnavailable
	}
	records := s.activities[userID]
	for i, r := range records {
		if r.ID == id {
			s.activities[userID] = append(records[:i:i], records[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

// InsertChats implements domain.ChatStore.
func (s *Store) InsertChats(ctx context.Context, userID string, messages []domain.ChatMessage) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, ErrUnavailable
	}
	existing := make(map[string]struct{})
	for _, msgs := range s.chats {
		for _, m := range msgs {
			existing[m.ID] = struct{}{}
		}
	}
	inserted := make([]domain.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if _, dup := existing[m.ID]; dup {
			continue
		}
		m.UserID = userID
		s.chats[userID] = append(s.chats[userID], m)
		existing[m.ID] = struct{}{}
		inserted = append(inserted, m)
	}
	return inserted, nil
}

// ListChats implements domain.ChatStore.
func (s *Store) ListChats(ctx context.Context, userID string) ([]domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail {
		return nil, ErrUnavailable
	}
	out := append([]domain.ChatMessage(nil), s.chats[userID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// DeleteAllChats implements domain.ChatStore.
func (s *Store) DeleteAllChats(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return ErrUnavailable
	}
	delete(s.chats, userID)
	return nil
}

// InsertNote implements domain.NoteStore.
func (s *Store) InsertNote(ctx context.Context, note domain.Note) (domain.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return domain.Note{}, ErrUnavailable
	}
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if s.notes[note.UserID] == nil {
		s.notes[note.UserID] = make(map[string]domain.Note)
	}
	s.notes[note.UserID][note.ID] = note
	return note, nil
}

func sortNotes(notes []domain.Note) []domain.Note {
	sort.Slice(notes, func(i, j int) bool {
		if notes[i].UpdatedAt.Equal(notes[j].UpdatedAt) {
			return notes[i].ID > notes[j].ID
		}
		return notes[i].UpdatedAt.After(notes[j].UpdatedAt)
	})
	return notes
}

// ListNotes implements domain.NoteStore.
func (s *Store) ListNotes(ctx context.Context, userID string) ([]domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail {
		return nil, ErrUnavailable
	}
	out := make([]domain.Note, 0, len(s.notes[userID]))
	for _, n := range s.notes[userID] {
		out = append(out, n)
	}
	return sortNotes(out), nil
}

// UpdateNote implements domain.NoteStore.
func (s *Store) UpdateNote(ctx context.Context, note domain.Note) (domain.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return domain.Note{}, ErrUnavailable
	}
	current, ok := s.notes[note.UserID][note.ID]
	if !ok {
		return domain.Note{}, domain.ErrNotFound
	}
	current.Title = note.Title
	current.Content = note.Content
	current.UpdatedAt = note.UpdatedAt
	s.notes[note.UserID][note.ID] = current
	return current, nil
}

// DeleteNote implements domain.NoteStore.
func (s *Store) DeleteNote(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return ErrUnavailable
	}
	if _, ok := s.notes[userID][id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.notes[userID], id)
	return nil
}

// SearchNotes implements domain.NoteStore.
func (s *Store) SearchNotes(ctx context.Context, userID, query string) ([]domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail {
		return nil, ErrUnavailable
	}
	q := strings.ToLower(query)
	out := make([]domain.Note, 0)
	for _, n := range s.notes[userID] {
		if strings.Contains(strings.ToLower(n.Title), q) || strings.Contains(strings.ToLower(n.Content), q) {
			out = append(out, n)
		}
	}
	return sortNotes(out), nil
}

// InsertDefinition implements domain.DefinitionStore.
func (s *Store) InsertDefinition(ctx context.Context, userID string, def domain.ActivityDefinition) (domain.ActivityDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return domain.ActivityDefinition{}, ErrUnavailable
	}
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	s.definitions[userID] = append(s.definitions[userID], def)
	return def, nil
}

// ListDefinitions implements domain.DefinitionStore.
func (s *Store) ListDefinitions(ctx context.Context, userID string) ([]domain.ActivityDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail {
		return nil, ErrUnavailable
	}
	return append([]domain.ActivityDefinition(nil), s.definitions[userID]...), nil
}

// DeleteDefinition implements domain.DefinitionStore.
func (s *Store) DeleteDefinition(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return ErrUnavailable
	}
	defs := s.definitions[userID]
	for i, d := range defs {
		if d.ID == id {
			s.definitions[userID] = append(defs[:i:i], defs[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

// MemoryKV is an in-process domain.KeyValueStore.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewKV constructs an empty MemoryKV.
func NewKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func kvKey(scope, key string) string { return scope + "\x00" + key }

// Get implements domain.KeyValueStore.
func (m *MemoryKV) Get(ctx context.Context, scope, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[kvKey(scope, key)]
	return append([]byte(nil), v...), ok, nil
}

// Put implements domain.KeyValueStore.
func (m *MemoryKV) Put(ctx context.Context, scope, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[kvKey(scope, key)] = append([]byte(nil), value...)
	return nil
}

// Delete implements domain.KeyValueStore.
func (m *MemoryKV) Delete(ctx context.Context, scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, kvKey(scope, key))
	return nil
}
