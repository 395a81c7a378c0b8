package domain

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// NoteService manages notes. Every operation requires a signed-in user.
type NoteService struct {
	store NoteStore
	serviceOptions
}

// NewNoteService constructs a NoteService.
func NewNoteService(store NoteStore, opts ...Option) *NoteService {
	return &NoteService{store: store, serviceOptions: newServiceOptions(opts)}
}

// NoteInput carries the editable note fields.
type NoteInput struct {
	Title   string
	Content string
}

func (in NoteInput) normalize() (NoteInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return in, validationError("title is required")
	}
	return in, nil
}

// Create stores a new note.
func (s *NoteService) Create(ctx context.Context, p Principal, in NoteInput) (Note, error) {
	if !p.Authenticated() {
		return Note{}, ErrAuthRequired
	}
	in, err := in.normalize()
	if err != nil {
		return Note{}, err
	}
	now := s.now()
	note, err := s.store.InsertNote(ctx, Note{
		ID:        uuid.NewString(),
		UserID:    p.UserID,
		Title:     in.Title,
		Content:   in.Content,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Note{}, StorageError("create note", err)
	}
	return note, nil
}

// List returns the caller's notes, most recently updated first.
func (s *NoteService) List(ctx context.Context, p Principal) ([]Note, error) {
	if !p.Authenticated() {
		return nil, ErrAuthRequired
	}
	notes, err := s.store.ListNotes(ctx, p.UserID)
	if err != nil {
		return nil, StorageError("list notes", err)
	}
	return notes, nil
}

// Update replaces title and content and refreshes UpdatedAt. Last write wins.
func (s *NoteService) Update(ctx context.Context, p Principal, id string, in NoteInput) (Note, error) {
	if !p.Authenticated() {
		return Note{}, ErrAuthRequired
	}
	if strings.TrimSpace(id) == "" {
		return Note{}, validationError("note id is required")
	}
	in, err := in.normalize()
	if err != nil {
		return Note{}, err
	}
	note, err := s.store.UpdateNote(ctx, Note{
		ID:        id,
		UserID:    p.UserID,
		Title:     in.Title,
		Content:   in.Content,
		UpdatedAt: s.now(),
	})
	if err != nil {
		return Note{}, StorageError("update note", err)
	}
	return note, nil
}

// Delete removes a note.
func (s *NoteService) Delete(ctx context.Context, p Principal, id string) error {
	if !p.Authenticated() {
		return ErrAuthRequired
	}
	if strings.TrimSpace(id) == "" {
		return validationError("note id is required")
	}
	return StorageError("delete note", s.store.DeleteNote(ctx, p.UserID, id))
}

// Search matches query against title and content, ignoring case. An empty
// query lists every note.
func (s *NoteService) Search(ctx context.Context, p Principal, query string) ([]Note, error) {
	if !p.Authenticated() {
		return nil, ErrAuthRequired
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return s.List(ctx, p)
	}
	notes, err := s.store.SearchNotes(ctx, p.UserID, query)
	if err != nil {
		return nil, StorageError("search notes", err)
	}
	if notes == nil {
		notes = []Note{}
	}
	return notes, nil
}
