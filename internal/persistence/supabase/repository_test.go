package supabase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/wellness/internal/domain"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Prefer string
	Body   string
}

type fakeProject struct {
	mu       sync.Mutex
	requests []recordedRequest
	respond  func(r *http.Request, body []byte) (int, string)
}

func (f *fakeProject) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newFakeProject(t *testing.T, respond func(r *http.Request, body []byte) (int, string)) (*fakeProject, *httptest.Server) {
	t.Helper()
	f := &fakeProject{respond: respond}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Prefer: r.Header.Get("Prefer"), Body: string(body)})
		f.mu.Unlock()
		status, payload := f.respond(r, body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, payload)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func newTestRepository(t *testing.T, srv *httptest.Server) *Repository {
	t.Helper()
	client, err := NewClient(srv.URL, "service-role-key")
	require.NoError(t, err)
	return NewRepository(client)
}

func TestInsertActivitiesTagsUser(t *testing.T) {
	project, srv := newFakeProject(t, func(r *http.Request, body []byte) (int, string) {
		if r.Method == http.MethodGet {
			return http.StatusOK, `[]`
		}
		return http.StatusCreated, string(body)
	})
	repo := newTestRepository(t, srv)
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	stored, err := repo.InsertActivities(context.Background(), "user-1", []domain.ActivityRecord{
		{ID: "a", ActivityType: "Water", Emoji: "💧", CreatedAt: t0},
		{ID: "b", ActivityType: "Bathroom", Emoji: "💩", CreatedAt: t0},
	})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.Equal(t, "user-1", stored[1].UserID)

	req := project.last()
	require.Equal(t, http.MethodPost, req.Method)
	require.Equal(t, "/rest/v1/activities", req.Path)

	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(req.Body), &rows))
	require.Len(t, rows, 2)
	require.Equal(t, "user-1", rows[0]["user_id"])
	require.Equal(t, "2026-03-01T09:00:00Z", rows[0]["created_at"])
}

func TestInsertSkipsExistingIDs(t *testing.T) {
	project, srv := newFakeProject(t, func(r *http.Request, body []byte) (int, string) {
		if r.Method == http.MethodGet {
			return http.StatusOK, `[{"id":"a"}]`
		}
		return http.StatusCreated, string(body)
	})
	repo := newTestRepository(t, srv)
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	stored, err := repo.InsertActivities(context.Background(), "user-2", []domain.ActivityRecord{
		{ID: "a", ActivityType: "Water", CreatedAt: t0},
		{ID: "b", ActivityType: "Sleep", CreatedAt: t0},
	})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, "b", stored[0].ID)

	project.mu.Lock()
	requests := append([]recordedRequest(nil), project.requests...)
	project.mu.Unlock()
	require.Len(t, requests, 2)
	require.Equal(t, http.MethodGet, requests[0].Method)
	require.Contains(t, requests[0].Query, "id=in.%28a%2Cb%29")

	insert := requests[1]
	require.Equal(t, http.MethodPost, insert.Method)
	require.NotContains(t, insert.Prefer, "merge-duplicates")
	require.NotContains(t, insert.Query, "on_conflict")
	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(insert.Body), &rows))
	require.Len(t, rows, 1)
	require.Equal(t, "b", rows[0]["id"])
}

func TestInsertChatsAllExistingSendsNoInsert(t *testing.T) {
	project, srv := newFakeProject(t, func(r *http.Request, body []byte) (int, string) {
		if r.Method == http.MethodGet {
			return http.StatusOK, `[{"id":"c1"}]`
		}
		return http.StatusCreated, string(body)
	})
	repo := newTestRepository(t, srv)

	stored, err := repo.InsertChats(context.Background(), "user-1", []domain.ChatMessage{
		{ID: "c1", Message: "hi", CreatedAt: time.Now()},
	})
	require.NoError(t, err)
	require.Empty(t, stored)
	require.Equal(t, http.MethodGet, project.last().Method)
	require.Equal(t, "/rest/v1/chats", project.last().Path)
}

func TestListActivitiesFiltersByUser(t *testing.T) {
	project, srv := newFakeProject(t, func(r *http.Request, body []byte) (int, string) {
		return http.StatusOK, `[{"id":"a","user_id":"user-1","activity_type":"Water","emoji":"💧","value":null,"created_at":"2026-03-01T09:00:00Z"}]`
	})
	repo := newTestRepository(t, srv)

	records, err := repo.ListActivities(context.Background(), "user-1", domain.ActivityFilter{ActivityType: "Water", Limit: 5})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Nil(t, records[0].Value)

	req := project.last()
	require.Equal(t, http.MethodGet, req.Method)
	require.Contains(t, req.Query, "user_id=eq.user-1")
	require.Contains(t, req.Query, "activity_type=eq.Water")
	require.Contains(t, req.Query, "limit=5")
}

func TestDeleteAllChatsUsesNilSentinel(t *testing.T) {
	project, srv := newFakeProject(t, func(r *http.Request, body []byte) (int, string) {
		return http.StatusNoContent, ""
	})
	repo := newTestRepository(t, srv)

	require.NoError(t, repo.DeleteAllChats(context.Background(), "user-1"))
	req := project.last()
	require.Equal(t, http.MethodDelete, req.Method)
	require.Equal(t, "/rest/v1/chats", req.Path)
	require.Contains(t, req.Query, "id=neq."+nilUUID)
	require.Contains(t, req.Query, "user_id=eq.user-1")
}

func TestDeleteNoteNotFound(t *testing.T) {
	_, srv := newFakeProject(t, func(r *http.Request, body []byte) (int, string) {
		return http.StatusOK, `[]`
	})
	repo := newTestRepository(t, srv)
	require.ErrorIs(t, repo.DeleteNote(context.Background(), "user-1", "missing"), domain.ErrNotFound)
}

func TestSearchNotesBuildsOrFilter(t *testing.T) {
	project, srv := newFakeProject(t, func(r *http.Request, body []byte) (int, string) {
		return http.StatusOK, `[{"id":"n1","user_id":"user-1","title":"Sleep","content":"","created_at":"2026-03-01T09:00:00Z","updated_at":"2026-03-01T09:00:00Z"}]`
	})
	repo := newTestRepository(t, srv)

	notes, err := repo.SearchNotes(context.Background(), "user-1", "sleep")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.True(t, strings.Contains(project.last().Query, "or="), project.last().Query)
}

func TestRepositorySurfacesHTTPErrors(t *testing.T) {
	_, srv := newFakeProject(t, func(r *http.Request, body []byte) (int, string) {
		return http.StatusInternalServerError, `{"code":"XX000","message":"boom"}`
	})
	repo := newTestRepository(t, srv)

	_, err := repo.ListChats(context.Background(), "user-1")
	require.Error(t, err)
}

func TestAuthenticatorSignIn(t *testing.T) {
	project, srv := newFakeProject(t, func(r *http.Request, body []byte) (int, string) {
		return http.StatusOK, `{"access_token":"tok","token_type":"bearer","expires_in":3600,"expires_at":1772355600,"refresh_token":"ref","user":{"id":"6f1c1b5e-8a4e-4c59-9b3c-1d2e3f4a5b6c","email":"a@b.c"}}`
	})
	client, err := NewClient(srv.URL, "anon-key")
	require.NoError(t, err)

	session, err := NewAuthenticator(client).SignIn(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	require.Equal(t, "tok", session.AccessToken)
	require.Equal(t, "6f1c1b5e-8a4e-4c59-9b3c-1d2e3f4a5b6c", session.UserID)
	require.Equal(t, int64(1772355600), session.ExpiresAt.Unix())

	req := project.last()
	require.Equal(t, http.MethodPost, req.Method)
	require.True(t, strings.HasSuffix(req.Path, "/token"), req.Path)
	require.Contains(t, req.Body, "a@b.c")
}
