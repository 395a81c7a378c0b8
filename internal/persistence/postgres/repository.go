// Package postgres implements the remote store directly on Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/wellness/internal/domain"
	"example.com/wellness/internal/events"
	"example.com/wellness/internal/observability"
)

// Repository provides Postgres-backed persistence for every user-scoped
// collection. Activity writes also record outbox events in the same transaction.
type Repository struct {
	pool  *pgxpool.Pool
	topic string
}

var _ domain.RemoteStore = (*Repository)(nil)

// NewRepository constructs a Repository. An empty topic disables outbox rows.
func NewRepository(pool *pgxpool.Pool, topic string) *Repository {
	return &Repository{pool: pool, topic: topic}
}

// withUser runs fn in a transaction scoped to userID for row-level security.
func (r *Repository) withUser(ctx context.Context, userID string, fn func(pgx.Tx) error) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT set_config('app.user_id', $1, true)", userID); err != nil {
		return err
	}
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// validID reports whether id can address a UUID primary key. Anything else
// cannot exist, so callers report not-found without a round trip.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

const activityColumns = `id::text, user_id, activity_type, emoji, value, created_at`

func scanActivity(row pgx.Row) (domain.ActivityRecord, error) {
	var rec domain.ActivityRecord
	err := row.Scan(&rec.ID, &rec.UserID, &rec.ActivityType, &rec.Emoji, &rec.Value, &rec.CreatedAt)
	return rec, err
}

// InsertActivities stores records, skipping ids that already exist.
func (r *Repository) InsertActivities(ctx context.Context, userID string, records []domain.ActivityRecord) ([]domain.ActivityRecord, error) {
	inserted := make([]domain.ActivityRecord, 0, len(records))
	err := r.withUser(ctx, userID, func(tx pgx.Tx) error {
		for _, rec := range records {
			if rec.ID == "" {
				rec.ID = uuid.NewString()
			}
			if rec.CreatedAt.IsZero() {
				rec.CreatedAt = time.Now().UTC()
			}
			stored, err := scanActivity(tx.QueryRow(ctx,
				`INSERT INTO activities (id, user_id, activity_type, emoji, value, created_at)
                 VALUES ($1,$2,$3,$4,$5,$6)
                 ON CONFLICT (id) DO NOTHING
                 RETURNING `+activityColumns,
				rec.ID, userID, rec.ActivityType, rec.Emoji, rec.Value, rec.CreatedAt))
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			if err != nil {
				return err
			}
			if err := r.insertOutbox(ctx, tx, userID, stored.ID, events.TypeActivityRecorded, events.ActivityRecorded{
				ActivityID:   stored.ID,
				UserID:       userID,
				ActivityType: stored.ActivityType,
				Emoji:        stored.Emoji,
				Value:        stored.Value,
				CreatedAt:    stored.CreatedAt,
			}); err != nil {
				return err
			}
			inserted = append(inserted, stored)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if n := len(inserted); n > 0 {
		observability.RecordActivityPersisted(inserted[n-1].CreatedAt)
	}
	return inserted, nil
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, userID, activityID, eventType string, payload interface{}) error {
	if r.topic == "" {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	dedupeKey := fmt.Sprintf("%s:%s", activityID, eventType)

	const stmt = `INSERT INTO outbox (user_id, aggregate_type, aggregate_id, event_type, topic, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (dedupe_key) DO NOTHING`

	_, err = tx.Exec(ctx, stmt, userID, "activity", activityID, eventType, r.topic, userID, body, dedupeKey)
	return err
}

// ListActivities returns the user's activities most recent first.
func (r *Repository) ListActivities(ctx context.Context, userID string, filter domain.ActivityFilter) ([]domain.ActivityRecord, error) {
	args := []interface{}{userID}
	query := `SELECT ` + activityColumns + ` FROM activities WHERE user_id = $1`
	if filter.ActivityType != "" {
		args = append(args, filter.ActivityType)
		query += fmt.Sprintf(` AND activity_type = $%d`, len(args))
	}
	if c := filter.Before; c != nil {
		args = append(args, c.CreatedAt, c.ID)
		query += fmt.Sprintf(` AND (created_at, id::text) < ($%d, $%d)`, len(args)-1, len(args))
	}
	query += ` ORDER BY created_at DESC, id::text DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	var out []domain.ActivityRecord
	err := r.withUser(ctx, userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out = make([]domain.ActivityRecord, 0, filter.Limit)
		for rows.Next() {
			rec, err := scanActivity(rows)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteActivity removes one activity and records the deletion event.
func (r *Repository) DeleteActivity(ctx context.Context, userID, id string) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	return r.withUser(ctx, userID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM activities WHERE user_id = $1 AND id = $2`, userID, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return r.insertOutbox(ctx, tx, userID, id, events.TypeActivityDeleted, events.ActivityDeleted{
			ActivityID: id,
			UserID:     userID,
			OccurredAt: time.Now().UTC(),
		})
	})
}

// InsertChats stores messages, skipping ids that already exist.
func (r *Repository) InsertChats(ctx context.Context, userID string, messages []domain.ChatMessage) ([]domain.ChatMessage, error) {
	inserted := make([]domain.ChatMessage, 0, len(messages))
	err := r.withUser(ctx, userID, func(tx pgx.Tx) error {
		for _, msg := range messages {
			if msg.ID == "" {
				msg.ID = uuid.NewString()
			}
			if msg.CreatedAt.IsZero() {
				msg.CreatedAt = time.Now().UTC()
			}
			var stored domain.ChatMessage
			err := tx.QueryRow(ctx,
				`INSERT INTO chats (id, user_id, message, is_ai, created_at)
                 VALUES ($1,$2,$3,$4,$5)
                 ON CONFLICT (id) DO NOTHING
                 RETURNING id::text, user_id, message, is_ai, created_at`,
				msg.ID, userID, msg.Message, msg.IsAI, msg.CreatedAt,
			).Scan(&stored.ID, &stored.UserID, &stored.Message, &stored.IsAI, &stored.CreatedAt)
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			if err != nil {
				return err
			}
			inserted = append(inserted, stored)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// ListChats returns the conversation oldest first.
func (r *Repository) ListChats(ctx context.Context, userID string) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	err := r.withUser(ctx, userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT id::text, user_id, message, is_ai, created_at FROM chats
             WHERE user_id = $1 ORDER BY created_at ASC, id ASC`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		out = make([]domain.ChatMessage, 0)
		for rows.Next() {
			var msg domain.ChatMessage
			if err := rows.Scan(&msg.ID, &msg.UserID, &msg.Message, &msg.IsAI, &msg.CreatedAt); err != nil {
				return err
			}
			out = append(out, msg)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteAllChats removes the user's whole conversation.
func (r *Repository) DeleteAllChats(ctx context.Context, userID string) error {
	return r.withUser(ctx, userID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`DELETE FROM chats WHERE user_id = $1 AND id <> '00000000-0000-0000-0000-000000000000'`, userID)
		return err
	})
}

const noteColumns = `id::text, user_id, title, content, created_at, updated_at`

func scanNote(row pgx.Row) (domain.Note, error) {
	var n domain.Note
	err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

func (r *Repository) queryNotes(ctx context.Context, userID, query string, args ...interface{}) ([]domain.Note, error) {
	var out []domain.Note
	err := r.withUser(ctx, userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out = make([]domain.Note, 0)
		for rows.Next() {
			n, err := scanNote(rows)
			if err != nil {
				return err
			}
			out = append(out, n)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// InsertNote stores a new note.
func (r *Repository) InsertNote(ctx context.Context, note domain.Note) (domain.Note, error) {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	var stored domain.Note
	err := r.withUser(ctx, note.UserID, func(tx pgx.Tx) error {
		var err error
		stored, err = scanNote(tx.QueryRow(ctx,
			`INSERT INTO notes (id, user_id, title, content, created_at, updated_at)
             VALUES ($1,$2,$3,$4,$5,$6) RETURNING `+noteColumns,
			note.ID, note.UserID, note.Title, note.Content, note.CreatedAt, note.UpdatedAt))
		return err
	})
	return stored, err
}

// ListNotes returns notes most recently updated first.
func (r *Repository) ListNotes(ctx context.Context, userID string) ([]domain.Note, error) {
	return r.queryNotes(ctx, userID,
		`SELECT `+noteColumns+` FROM notes WHERE user_id = $1 ORDER BY updated_at DESC, id DESC`, userID)
}

// UpdateNote replaces title and content.
func (r *Repository) UpdateNote(ctx context.Context, note domain.Note) (domain.Note, error) {
	if !validID(note.ID) {
		return domain.Note{}, domain.ErrNotFound
	}
	var stored domain.Note
	err := r.withUser(ctx, note.UserID, func(tx pgx.Tx) error {
		var err error
		stored, err = scanNote(tx.QueryRow(ctx,
			`UPDATE notes SET title = $3, content = $4, updated_at = $5
             WHERE user_id = $1 AND id = $2 RETURNING `+noteColumns,
			note.UserID, note.ID, note.Title, note.Content, note.UpdatedAt))
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	})
	return stored, err
}

// DeleteNote removes a note.
func (r *Repository) DeleteNote(ctx context.Context, userID, id string) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	return r.withUser(ctx, userID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM notes WHERE user_id = $1 AND id = $2`, userID, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

// SearchNotes matches query as a literal substring of title or content.
func (r *Repository) SearchNotes(ctx context.Context, userID, query string) ([]domain.Note, error) {
	pattern := "%" + EscapeLike(query) + "%"
	return r.queryNotes(ctx, userID,
		`SELECT `+noteColumns+` FROM notes
         WHERE user_id = $1 AND (title ILIKE $2 ESCAPE '\' OR content ILIKE $2 ESCAPE '\')
         ORDER BY updated_at DESC, id DESC`, userID, pattern)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE metacharacters so s matches literally.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// InsertDefinition stores a custom activity definition.
func (r *Repository) InsertDefinition(ctx context.Context, userID string, def domain.ActivityDefinition) (domain.ActivityDefinition, error) {
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	var stored domain.ActivityDefinition
	err := r.withUser(ctx, userID, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`INSERT INTO activity_definitions (id, user_id, name, emoji, description, value_kind)
             VALUES ($1,$2,$3,$4,$5,$6)
             RETURNING id::text, name, emoji, description, value_kind`,
			def.ID, userID, def.Name, def.Emoji, def.Description, string(def.ValueKind),
		).Scan(&stored.ID, &stored.Name, &stored.Emoji, &stored.Description, &stored.ValueKind)
	})
	return stored, err
}

// ListDefinitions returns the user's custom definitions oldest first.
func (r *Repository) ListDefinitions(ctx context.Context, userID string) ([]domain.ActivityDefinition, error) {
	var out []domain.ActivityDefinition
	err := r.withUser(ctx, userID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT id::text, name, emoji, description, value_kind FROM activity_definitions
             WHERE user_id = $1 ORDER BY created_at, id`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		out = make([]domain.ActivityDefinition, 0)
		for rows.Next() {
			var def domain.ActivityDefinition
			if err := rows.Scan(&def.ID, &def.Name, &def.Emoji, &def.Description, &def.ValueKind); err != nil {
				return err
			}
			out = append(out, def)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteDefinition removes a custom definition.
func (r *Repository) DeleteDefinition(ctx context.Context, userID, id string) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	return r.withUser(ctx, userID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM activity_definitions WHERE user_id = $1 AND id = $2`, userID, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}
