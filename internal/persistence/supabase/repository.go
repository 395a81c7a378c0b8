// Package supabase implements the remote store and sign-in against a hosted
// Supabase project through its REST and auth endpoints.
package supabase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"

	"example.com/wellness/internal/domain"
	"example.com/wellness/internal/observability"
)

// Table names in the hosted schema.
const (
	tableActivities  = "activities"
	tableChats       = "chats"
	tableNotes       = "notes"
	tableDefinitions = "activity_definitions"
)

// nilUUID never matches a real row; deleting "everything except it" is how
// the REST API accepts an unbounded delete.
const nilUUID = "00000000-0000-0000-0000-000000000000"

// Repository implements domain.RemoteStore with the service-role key. Every
// query carries an explicit user_id filter.
type Repository struct {
	client *supa.Client
}

var _ domain.RemoteStore = (*Repository)(nil)

// NewClient connects to the project at url with key.
func NewClient(url, key string) (*supa.Client, error) {
	client, err := supa.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("supabase: create client: %w", err)
	}
	return client, nil
}

// NewRepository wraps client.
func NewRepository(client *supa.Client) *Repository {
	return &Repository{client: client}
}

type activityRow struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ActivityType string    `json:"activity_type"`
	Emoji        string    `json:"emoji"`
	Value        *string   `json:"value"`
	CreatedAt    time.Time `json:"created_at"`
}

func (r activityRow) record() domain.ActivityRecord {
	return domain.ActivityRecord{
		ID:           r.ID,
		UserID:       r.UserID,
		ActivityType: r.ActivityType,
		Emoji:        r.Emoji,
		Value:        r.Value,
		CreatedAt:    r.CreatedAt,
	}
}

type chatRow struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	IsAI      bool      `json:"is_ai"`
	CreatedAt time.Time `json:"created_at"`
}

type noteRow struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r noteRow) note() domain.Note {
	return domain.Note(r)
}

type definitionRow struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	Name        string           `json:"name"`
	Emoji       string           `json:"emoji"`
	Description string           `json:"description"`
	ValueKind   domain.ValueKind `json:"value_kind"`
}

func (r definitionRow) definition() domain.ActivityDefinition {
	return domain.ActivityDefinition{
		ID:          r.ID,
		Name:        r.Name,
		Emoji:       r.Emoji,
		Description: r.Description,
		ValueKind:   r.ValueKind,
	}
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

type idRow struct {
	ID string `json:"id"`
}

// existingIDs returns which of ids are already stored in table, for any user.
// Inserts skip those rows so a replayed batch never rewrites existing data.
func (r *Repository) existingIDs(table string, ids []string) (map[string]struct{}, error) {
	var rows []idRow
	if _, err := r.client.From(table).
		Select("id", "", false).
		In("id", ids).
		ExecuteTo(&rows); err != nil {
		return nil, err
	}
	found := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		found[row.ID] = struct{}{}
	}
	return found, nil
}

// InsertActivities stores records whose ids are new and returns them. Rows
// with an existing id are skipped.
func (r *Repository) InsertActivities(ctx context.Context, userID string, records []domain.ActivityRecord) ([]domain.ActivityRecord, error) {
	if len(records) == 0 {
		return []domain.ActivityRecord{}, nil
	}
	rows := make([]activityRow, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}
		rows[i] = activityRow{ID: rec.ID, UserID: userID, ActivityType: rec.ActivityType, Emoji: rec.Emoji, Value: rec.Value, CreatedAt: rec.CreatedAt}
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	existing, err := r.existingIDs(tableActivities, ids)
	if err != nil {
		return nil, fmt.Errorf("insert activities: %w", err)
	}
	fresh := rows[:0]
	for _, row := range rows {
		if _, ok := existing[row.ID]; !ok {
			fresh = append(fresh, row)
		}
	}
	if len(fresh) == 0 {
		return []domain.ActivityRecord{}, nil
	}

	var stored []activityRow
	if _, err := r.client.From(tableActivities).
		Insert(fresh, false, "", "representation", "").
		ExecuteTo(&stored); err != nil {
		return nil, fmt.Errorf("insert activities: %w", err)
	}
	out := make([]domain.ActivityRecord, len(stored))
	for i, row := range stored {
		out[i] = row.record()
	}
	if n := len(out); n > 0 {
		observability.RecordActivityPersisted(out[n-1].CreatedAt)
	}
	return out, nil
}

// ListActivities returns the user's activities most recent first.
func (r *Repository) ListActivities(ctx context.Context, userID string, filter domain.ActivityFilter) ([]domain.ActivityRecord, error) {
	q := r.client.From(tableActivities).Select("*", "", false).Eq("user_id", userID)
	if filter.ActivityType != "" {
		q = q.Eq("activity_type", filter.ActivityType)
	}
	if c := filter.Before; c != nil {
		ts := timestamp(c.CreatedAt)
		q = q.Or(fmt.Sprintf("created_at.lt.%s,and(created_at.eq.%s,id.lt.%s)", ts, ts, c.ID), "")
	}
	q = q.Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Order("id", &postgrest.OrderOpts{Ascending: false})
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit, "")
	}

	var rows []activityRow
	if _, err := q.ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	out := make([]domain.ActivityRecord, len(rows))
	for i, row := range rows {
		out[i] = row.record()
	}
	return out, nil
}

// DeleteActivity removes one activity.
func (r *Repository) DeleteActivity(ctx context.Context, userID, id string) error {
	var deleted []activityRow
	if _, err := r.client.From(tableActivities).
		Delete("representation", "").
		Eq("user_id", userID).
		Eq("id", id).
		ExecuteTo(&deleted); err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	if len(deleted) == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// InsertChats stores messages whose ids are new. Rows with an existing id are
// skipped.
func (r *Repository) InsertChats(ctx context.Context, userID string, messages []domain.ChatMessage) ([]domain.ChatMessage, error) {
	if len(messages) == 0 {
		return []domain.ChatMessage{}, nil
	}
	rows := make([]chatRow, len(messages))
	for i, msg := range messages {
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now().UTC()
		}
		rows[i] = chatRow{ID: msg.ID, UserID: userID, Message: msg.Message, IsAI: msg.IsAI, CreatedAt: msg.CreatedAt}
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	existing, err := r.existingIDs(tableChats, ids)
	if err != nil {
		return nil, fmt.Errorf("insert chats: %w", err)
	}
	fresh := rows[:0]
	for _, row := range rows {
		if _, ok := existing[row.ID]; !ok {
			fresh = append(fresh, row)
		}
	}
	if len(fresh) == 0 {
		return []domain.ChatMessage{}, nil
	}

	var stored []chatRow
	if _, err := r.client.From(tableChats).
		Insert(fresh, false, "", "representation", "").
		ExecuteTo(&stored); err != nil {
		return nil, fmt.Errorf("insert chats: %w", err)
	}
	out := make([]domain.ChatMessage, len(stored))
	for i, row := range stored {
		out[i] = domain.ChatMessage(row)
	}
	return out, nil
}

// ListChats returns the conversation oldest first.
func (r *Repository) ListChats(ctx context.Context, userID string) ([]domain.ChatMessage, error) {
	var rows []chatRow
	if _, err := r.client.From(tableChats).
		Select("*", "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	out := make([]domain.ChatMessage, len(rows))
	for i, row := range rows {
		out[i] = domain.ChatMessage(row)
	}
	return out, nil
}

// DeleteAllChats removes the user's whole conversation.
func (r *Repository) DeleteAllChats(ctx context.Context, userID string) error {
	if _, _, err := r.client.From(tableChats).
		Delete("minimal", "").
		Eq("user_id", userID).
		Neq("id", nilUUID).
		Execute(); err != nil {
		return fmt.Errorf("delete chats: %w", err)
	}
	return nil
}

// InsertNote stores a new note.
func (r *Repository) InsertNote(ctx context.Context, note domain.Note) (domain.Note, error) {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	var stored []noteRow
	if _, err := r.client.From(tableNotes).
		Insert(noteRow(note), false, "", "representation", "").
		ExecuteTo(&stored); err != nil {
		return domain.Note{}, fmt.Errorf("insert note: %w", err)
	}
	if len(stored) == 0 {
		return note, nil
	}
	return stored[0].note(), nil
}

func (r *Repository) selectNotes(q *postgrest.FilterBuilder) ([]domain.Note, error) {
	var rows []noteRow
	if _, err := q.Order("updated_at", &postgrest.OrderOpts{Ascending: false}).ExecuteTo(&rows); err != nil {
		return nil, err
	}
	out := make([]domain.Note, len(rows))
	for i, row := range rows {
		out[i] = row.note()
	}
	return out, nil
}

// ListNotes returns notes most recently updated first.
func (r *Repository) ListNotes(ctx context.Context, userID string) ([]domain.Note, error) {
	notes, err := r.selectNotes(r.client.From(tableNotes).Select("*", "", false).Eq("user_id", userID))
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

// UpdateNote replaces title and content.
func (r *Repository) UpdateNote(ctx context.Context, note domain.Note) (domain.Note, error) {
	patch := map[string]interface{}{
		"title":      note.Title,
		"content":    note.Content,
		"updated_at": timestamp(note.UpdatedAt),
	}
	var stored []noteRow
	if _, err := r.client.From(tableNotes).
		Update(patch, "representation", "").
		Eq("user_id", note.UserID).
		Eq("id", note.ID).
		ExecuteTo(&stored); err != nil {
		return domain.Note{}, fmt.Errorf("update note: %w", err)
	}
	if len(stored) == 0 {
		return domain.Note{}, domain.ErrNotFound
	}
	return stored[0].note(), nil
}

// DeleteNote removes a note.
func (r *Repository) DeleteNote(ctx context.Context, userID, id string) error {
	var deleted []noteRow
	if _, err := r.client.From(tableNotes).
		Delete("representation", "").
		Eq("user_id", userID).
		Eq("id", id).
		ExecuteTo(&deleted); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if len(deleted) == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var searchEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `,`, `\,`, `(`, `\(`, `)`, `\)`)

// SearchNotes matches query case-insensitively against title or content.
func (r *Repository) SearchNotes(ctx context.Context, userID, query string) ([]domain.Note, error) {
	term := searchEscaper.Replace(query)
	filter := fmt.Sprintf("title.ilike.%%%s%%,content.ilike.%%%s%%", term, term)
	notes, err := r.selectNotes(r.client.From(tableNotes).Select("*", "", false).Eq("user_id", userID).Or(filter, ""))
	if err != nil {
		return nil, fmt.Errorf("search notes: %w", err)
	}
	return notes, nil
}

// InsertDefinition stores a custom activity definition.
func (r *Repository) InsertDefinition(ctx context.Context, userID string, def domain.ActivityDefinition) (domain.ActivityDefinition, error) {
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	row := definitionRow{ID: def.ID, UserID: userID, Name: def.Name, Emoji: def.Emoji, Description: def.Description, ValueKind: def.ValueKind}
	var stored []definitionRow
	if _, err := r.client.From(tableDefinitions).
		Insert(row, false, "", "representation", "").
		ExecuteTo(&stored); err != nil {
		return domain.ActivityDefinition{}, fmt.Errorf("insert definition: %w", err)
	}
	if len(stored) == 0 {
		return row.definition(), nil
	}
	return stored[0].definition(), nil
}

// ListDefinitions returns the user's custom definitions.
func (r *Repository) ListDefinitions(ctx context.Context, userID string) ([]domain.ActivityDefinition, error) {
	var rows []definitionRow
	if _, err := r.client.From(tableDefinitions).
		Select("*", "", false).
		Eq("user_id", userID).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	out := make([]domain.ActivityDefinition, len(rows))
	for i, row := range rows {
		out[i] = row.definition()
	}
	return out, nil
}

// DeleteDefinition removes a custom definition.
func (r *Repository) DeleteDefinition(ctx context.Context, userID, id string) error {
	var deleted []definitionRow
	if _, err := r.client.From(tableDefinitions).
		Delete("representation", "").
		Eq("user_id", userID).
		Eq("id", id).
		ExecuteTo(&deleted); err != nil {
		return fmt.Errorf("delete definition: %w", err)
	}
	if len(deleted) == 0 {
		return domain.ErrNotFound
	}
	return nil
}
