// Package api exposes HTTP handlers for the wellness service.
package api

import (
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"example.com/wellness/internal/auth"
	"example.com/wellness/internal/domain"
	"example.com/wellness/internal/persistence"
	"example.com/wellness/internal/stats"
)

// DeviceHeader carries the anonymous device identity.
const DeviceHeader = "X-Device-ID"

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Services bundles the domain services the handlers delegate to.
type Services struct {
	Activities *domain.ActivityService
	Sync       *domain.SyncService
	Login      *domain.LoginService
	Chats      *domain.ChatService
	Notes      *domain.NoteService
	Offline    *domain.OfflineStore
}

// Option configures optional Handler behaviour.
type Option func(*Handler)

// WithLogger sets the logger used for unexpected failures.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithLocation sets the time zone used when a request does not name one.
func WithLocation(loc *time.Location) Option {
	return func(h *Handler) {
		if loc != nil {
			h.location = loc
		}
	}
}

// WithClock overrides the time source used for statistics windows.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithCountdownTick sets the interval between cooldown stream events.
func WithCountdownTick(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.tick = d
		}
	}
}

// Handler coordinates HTTP requests with the domain services.
type Handler struct {
	svc      Services
	logger   *zap.Logger
	location *time.Location
	now      func() time.Time
	tick     time.Duration
}

// NewHandler builds a Handler.
func NewHandler(svc Services, opts ...Option) *Handler {
	h := &Handler{
		svc:      svc,
		logger:   zap.NewNop(),
		location: time.UTC,
		now:      time.Now,
		tick:     time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// principal resolves the caller from verified claims and the device header.
func principal(r *http.Request) domain.Principal {
	p := domain.Principal{DeviceID: strings.TrimSpace(r.Header.Get(DeviceHeader))}
	if claims, ok := auth.FromContext(r.Context()); ok {
		p.UserID = claims.Subject
	}
	return p
}

// pathParam returns the decoded chi URL parameter.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ActivityListResponse packages one history page.
type ActivityListResponse struct {
	Items      []domain.ActivityRecord `json:"items"`
	NextCursor string                  `json:"next_cursor,omitempty"`
}

func (h *Handler) trackActivity(w http.ResponseWriter, r *http.Request) {
	var req TrackRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	record, err := h.svc.Activities.Track(r.Context(), principal(r), domain.TrackInput{
		ActivityType: req.ActivityType,
		Emoji:        req.Emoji,
		Value:        req.Value,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	limit := defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxPageSize)
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	records, err := h.svc.Activities.List(r.Context(), principal(r), domain.ActivityFilter{
		ActivityType: strings.TrimSpace(r.URL.Query().Get("type")),
		Limit:        limit,
		Before:       cursor,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if records == nil {
		records = []domain.ActivityRecord{}
	}

	writeJSON(w, http.StatusOK, ActivityListResponse{
		Items:      records,
		NextCursor: persistence.EncodeCursor(domain.NextCursor(records, limit)),
	})
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Activities.Delete(r.Context(), principal(r), pathParam(r, "id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := h.svc.Activities.Definitions(r.Context(), principal(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": defs})
}

// DefinitionResponse reports a new definition and its first tracked record.
type DefinitionResponse struct {
	Definition domain.ActivityDefinition `json:"definition"`
	Record     *domain.ActivityRecord    `json:"record,omitempty"`
	Notice     string                    `json:"notice,omitempty"`
}

func (h *Handler) createDefinition(w http.ResponseWriter, r *http.Request) {
	var req DefinitionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	def, record, err := h.svc.Activities.CreateDefinition(r.Context(), principal(r), domain.DefinitionInput{
		Name:        req.Name,
		Emoji:       req.Emoji,
		Description: req.Description,
		ValueKind:   domain.ValueKind(req.ValueKind),
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := DefinitionResponse{Definition: def, Record: record}
	if record == nil {
		resp.Notice = "Activity created, but its first entry could not be tracked"
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) deleteDefinition(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Activities.DeleteDefinition(r.Context(), principal(r), pathParam(r, "id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CooldownView is one active cooldown.
type CooldownView struct {
	ActivityType     string `json:"activity_type"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

func (h *Handler) listCooldowns(w http.ResponseWriter, r *http.Request) {
	active := h.svc.Activities.Cooldowns(principal(r))
	items := make([]CooldownView, 0, len(active))
	for activityType, remaining := range active {
		items = append(items, CooldownView{ActivityType: activityType, RemainingSeconds: seconds(remaining)})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ActivityType < items[j].ActivityType })
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// StatsResponse renders an aggregation report. ByDayOfWeek runs Sunday
// through Saturday.
type StatsResponse struct {
	Period      stats.Period      `json:"period"`
	TimeZone    string            `json:"time_zone"`
	WindowStart time.Time         `json:"window_start"`
	Total       int               `json:"total"`
	ByType      []stats.TypeCount `json:"by_type"`
	ByDayOfWeek [7]int            `json:"by_day_of_week"`
	ByHourOfDay [24]int           `json:"by_hour_of_day"`
	TypeStats   map[string]string `json:"type_stats"`
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	period, err := stats.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	loc := h.location
	if tz := strings.TrimSpace(r.URL.Query().Get("tz")); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "unknown time zone "+strconv.Quote(tz))
			return
		}
	}

	p := principal(r)
	records, err := h.svc.Activities.List(r.Context(), p, domain.ActivityFilter{})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	defs, err := h.svc.Activities.Definitions(r.Context(), p)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	report := stats.Aggregate(records, period, h.now().In(loc), defs...)
	names := make([]string, 0, len(defs))
	for _, def := range defs {
		names = append(names, def.Name)
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		Period:      report.Period,
		TimeZone:    loc.String(),
		WindowStart: report.WindowStart,
		Total:       report.Total,
		ByType:      report.ByType,
		ByDayOfWeek: report.ByDayOfWeek,
		ByHourOfDay: report.ByHourOfDay,
		TypeStats:   report.TypeStats(names...),
	})
}
