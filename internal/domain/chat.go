package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// WelcomeMessage greets callers with an empty history. It is never stored.
	WelcomeMessage = "Hello! I'm your wellness assistant. I can provide insights about your health habits and answer your questions."

	contextRecordLimit = 20
	assistantPlain     = "Please provide a helpful response as a wellness assistant."
	assistantContext   = "Please provide a helpful response as a wellness assistant based on this data."
)

// ActivitySource lists a caller's activities for prompt context.
type ActivitySource interface {
	List(ctx context.Context, p Principal, filter ActivityFilter) ([]ActivityRecord, error)
}

// ChatService runs the assistant conversation.
type ChatService struct {
	remote     ChatStore
	offline    *OfflineStore
	activities ActivitySource
	assistant  Assistant
	serviceOptions
}

// NewChatService constructs a ChatService.
func NewChatService(remote ChatStore, offline *OfflineStore, activities ActivitySource, assistant Assistant, opts ...Option) *ChatService {
	return &ChatService{
		remote:         remote,
		offline:        offline,
		activities:     activities,
		assistant:      assistant,
		serviceOptions: newServiceOptions(opts),
	}
}

// SendInput is one user turn. IncludeContext applies to this turn only.
type SendInput struct {
	Message        string
	IncludeContext bool
}

// Exchange is the stored user message and the assistant reply. Notices carry
// non-fatal failures that the caller should show to the user.
type Exchange struct {
	Question       ChatMessage `json:"question"`
	Reply          ChatMessage `json:"reply"`
	ContextApplied bool        `json:"context_applied"`
	Notices        []string    `json:"notices,omitempty"`
}

func (s *ChatService) store(ctx context.Context, p Principal, msg ChatMessage) (ChatMessage, error) {
	if p.Authenticated() {
		msg.UserID = p.UserID
		stored, err := s.remote.InsertChats(ctx, p.UserID, []ChatMessage{msg})
		if err != nil {
			return ChatMessage{}, StorageError("save chat message", err)
		}
		if len(stored) > 0 {
			return stored[0], nil
		}
		return msg, nil
	}
	if err := s.offline.AppendChat(ctx, p.DeviceID, msg); err != nil {
		return ChatMessage{}, err
	}
	return msg, nil
}

func (s *ChatService) newMessage(text string, isAI bool) ChatMessage {
	return ChatMessage{ID: uuid.NewString(), Message: text, IsAI: isAI, CreatedAt: s.now()}
}

// Send stores the user's message, asks the assistant, and stores the reply.
// Assistant failures still produce a stored fallback reply plus a notice.
func (s *ChatService) Send(ctx context.Context, p Principal, in SendInput) (Exchange, error) {
	if err := requireCaller(p); err != nil {
		return Exchange{}, err
	}
	text := strings.TrimSpace(in.Message)
	if text == "" {
		return Exchange{}, validationError("message must not be empty")
	}

	var ex Exchange
	question, err := s.store(ctx, p, s.newMessage(text, false))
	if err != nil {
		return Exchange{}, err
	}
	ex.Question = question

	var records []ActivityRecord
	if in.IncludeContext {
		records, err = s.activities.List(ctx, p, ActivityFilter{})
		if err != nil {
			s.logger.Warn("load activity context failed", zap.Error(err))
			ex.Notices = append(ex.Notices, "Your activity data could not be loaded; answering without it.")
		}
	}
	prompt, applied := BuildPrompt(text, records, in.IncludeContext, s.now().Location())
	ex.ContextApplied = applied

	var apiKey string
	if p.DeviceID != "" {
		if apiKey, err = s.offline.APIKey(ctx, p.DeviceID); err != nil {
			s.logger.Warn("read api key override failed", zap.Error(err))
		}
	}

	reply, aiErr := s.assistant.Respond(ctx, prompt, apiKey)
	if aiErr != nil {
		s.logger.Warn("assistant failed", zap.String("principal", p.Key()), zap.Error(aiErr))
		ex.Notices = append(ex.Notices, fmt.Sprintf("AI Error: %v", aiErr))
	}

	answer, err := s.store(ctx, p, s.newMessage(reply, true))
	if err != nil {
		return Exchange{}, err
	}
	ex.Reply = answer
	return ex, nil
}

// BuildPrompt renders the assistant prompt. When includeContext is set and
// records is non-empty, the most recent records and per-type statistics are
// embedded; applied reports whether that happened.
func BuildPrompt(question string, records []ActivityRecord, includeContext bool, loc *time.Location) (prompt string, applied bool) {
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder
	b.WriteString("User's question: ")
	b.WriteString(question)

	if !includeContext || len(records) == 0 {
		b.WriteString("\n\n")
		b.WriteString(assistantPlain)
		return b.String(), false
	}

	recent := records
	if len(recent) > contextRecordLimit {
		recent = recent[:contextRecordLimit]
	}
	items := make([]string, 0, len(recent))
	for _, r := range recent {
		item := r.Emoji + " " + r.ActivityType
		if r.Value != nil && *r.Value != "" {
			item += " (" + *r.Value + ")"
		}
		item += " at " + r.CreatedAt.In(loc).Format("2006-01-02 15:04")
		items = append(items, item)
	}

	type typeTotals struct {
		count  int
		sum    float64
		values int
	}
	order := make([]string, 0)
	totals := make(map[string]*typeTotals)
	for _, r := range records {
		t, ok := totals[r.ActivityType]
		if !ok {
			t = &typeTotals{}
			totals[r.ActivityType] = t
			order = append(order, r.ActivityType)
		}
		t.count++
		if v, ok := r.NumericValue(); ok {
			t.sum += v
			t.values++
		}
	}
	stats := make([]string, 0, len(order))
	for _, name := range order {
		t := totals[name]
		line := fmt.Sprintf("%s: %d times", name, t.count)
		if t.values > 0 {
			line += fmt.Sprintf(", avg %.1f", t.sum/float64(t.values))
		}
		stats = append(stats, line)
	}

	b.WriteString("\n\nContext: Recent activities: ")
	b.WriteString(strings.Join(items, ", "))
	b.WriteString("\n\nActivity Statistics: ")
	b.WriteString(strings.Join(stats, "; "))
	b.WriteString("\n\n")
	b.WriteString(assistantContext)
	return b.String(), true
}

// History returns the conversation in chronological order, or a single
// unsaved welcome message when there is none.
func (s *ChatService) History(ctx context.Context, p Principal) ([]ChatMessage, error) {
	if err := requireCaller(p); err != nil {
		return nil, err
	}
	var msgs []ChatMessage
	var err error
	if p.Authenticated() {
		msgs, err = s.remote.ListChats(ctx, p.UserID)
		if err != nil {
			return nil, StorageError("list chat messages", err)
		}
	} else {
		msgs, err = s.offline.Chats(ctx, p.DeviceID)
		if err != nil {
			return nil, err
		}
	}
	if len(msgs) == 0 {
		return []ChatMessage{{ID: "welcome", Message: WelcomeMessage, IsAI: true, CreatedAt: s.now()}}, nil
	}
	return msgs, nil
}

// Clear deletes the caller's whole conversation.
func (s *ChatService) Clear(ctx context.Context, p Principal) error {
	if err := requireCaller(p); err != nil {
		return err
	}
	if p.Authenticated() {
		return StorageError("delete chat history", s.remote.DeleteAllChats(ctx, p.UserID))
	}
	return s.offline.ClearChats(ctx, p.DeviceID)
}

// Transcript renders the stored conversation as shareable plain text.
func (s *ChatService) Transcript(ctx context.Context, p Principal, loc *time.Location) (string, error) {
	msgs, err := s.History(ctx, p)
	if err != nil {
		return "", err
	}
	if len(msgs) == 1 && msgs[0].ID == "welcome" {
		return "", validationError("no chat messages to share")
	}
	if loc == nil {
		loc = time.UTC
	}
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		who := "Me"
		if m.IsAI {
			who = "Assistant"
		}
		parts = append(parts, fmt.Sprintf("%s (%s):\n%s", who, m.CreatedAt.In(loc).Format("2006-01-02 15:04"), m.Message))
	}
	return "My Health Assistant Chat\n\n" + strings.Join(parts, "\n\n"), nil
}
