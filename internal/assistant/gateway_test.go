package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"

	"example.com/wellness/internal/domain"
)

type stubGenerator struct {
	mu    sync.Mutex
	reply string
	err   error
	delay time.Duration
	keys  []string
}

func (s *stubGenerator) Generate(ctx context.Context, apiKey, prompt string) (string, error) {
	s.mu.Lock()
	s.keys = append(s.keys, apiKey)
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.reply, s.err
}

func TestRespondUsesConfiguredKey(t *testing.T) {
	gen := &stubGenerator{reply: "Stay hydrated."}
	g := NewGateway(gen, Config{APIKey: "config-key"}, nil)

	reply, err := g.Respond(context.Background(), "prompt", "")
	require.NoError(t, err)
	require.Equal(t, "Stay hydrated.", reply)

	_, err = g.Respond(context.Background(), "prompt", "device-key")
	require.NoError(t, err)
	require.Equal(t, []string{"config-key", "device-key"}, gen.keys)
}

func TestRespondWithoutKeyFallsBack(t *testing.T) {
	gen := &stubGenerator{reply: "unused"}
	g := NewGateway(gen, Config{}, nil)

	reply, err := g.Respond(context.Background(), "prompt", "  ")
	require.Equal(t, FallbackReply, reply)
	require.ErrorIs(t, err, domain.ErrAIGateway)
	require.ErrorIs(t, err, ErrNoAPIKey)
	require.Empty(t, gen.keys)
}

func TestRespondFailureFallsBack(t *testing.T) {
	gen := &stubGenerator{err: errors.New("quota exceeded")}
	g := NewGateway(gen, Config{APIKey: "k"}, nil)

	reply, err := g.Respond(context.Background(), "prompt", "")
	require.Equal(t, FallbackReply, reply)
	require.ErrorIs(t, err, domain.ErrAIGateway)
	require.Contains(t, err.Error(), "quota exceeded")
}

func TestRespondEmptyTextFallsBack(t *testing.T) {
	g := NewGateway(&stubGenerator{reply: "  "}, Config{APIKey: "k"}, nil)
	reply, err := g.Respond(context.Background(), "prompt", "")
	require.Equal(t, FallbackReply, reply)
	require.ErrorIs(t, err, domain.ErrAIGateway)
}

func TestRespondTimeout(t *testing.T) {
	gen := &stubGenerator{reply: "late", delay: time.Second}
	g := NewGateway(gen, Config{APIKey: "k", Timeout: 20 * time.Millisecond}, nil)

	reply, err := g.Respond(context.Background(), "prompt", "")
	require.Equal(t, FallbackReply, reply)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	gen := &stubGenerator{err: errors.New("boom")}
	g := NewGateway(gen, Config{APIKey: "k", MinRequests: 2, FailureThreshold: 0.5, OpenTimeout: time.Hour}, nil)

	for i := 0; i < 2; i++ {
		_, err := g.Respond(context.Background(), "p", "")
		require.Error(t, err)
	}
	require.Equal(t, "open", g.State())

	reply, err := g.Respond(context.Background(), "p", "")
	require.Equal(t, FallbackReply, reply)
	require.ErrorIs(t, err, domain.ErrAIGateway)
	require.Len(t, gen.keys, 2)
}

// keyedGenerator fails for one key and succeeds for every other.
type keyedGenerator struct {
	bad string
}

func (k keyedGenerator) Generate(ctx context.Context, apiKey, prompt string) (string, error) {
	if apiKey == k.bad {
		return "", errors.New("API key not valid")
	}
	return "ok", nil
}

func TestOverrideKeyFailuresDoNotTripSharedBreaker(t *testing.T) {
	g := NewGateway(keyedGenerator{bad: "bad"}, Config{APIKey: "good", MinRequests: 2, FailureThreshold: 0.5, OpenTimeout: time.Hour}, nil)

	for i := 0; i < 5; i++ {
		reply, err := g.Respond(context.Background(), "p", "bad")
		require.Equal(t, FallbackReply, reply)
		require.ErrorIs(t, err, domain.ErrAIGateway)
		require.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}
	require.Equal(t, "closed", g.State())

	reply, err := g.Respond(context.Background(), "p", "")
	require.NoError(t, err)
	require.Equal(t, "ok", reply)
}

func TestGenAIGeneratorBoundsClientCache(t *testing.T) {
	gen := NewGenAIGenerator("", "http://127.0.0.1:1/", nil)
	for i := 0; i < maxCachedClients+10; i++ {
		_, err := gen.client(context.Background(), fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
	}
	require.Len(t, gen.clients, maxCachedClients)
}

func TestGenAIGeneratorAgainstFakeEndpoint(t *testing.T) {
	var gotPath, gotKey string
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Drink "},{"text":"water."}]}}]}`)
	}))
	defer srv.Close()

	gen := NewGenAIGenerator("", srv.URL+"/", srv.Client())
	text, err := gen.Generate(context.Background(), "test-key", "User's question: hi")
	require.NoError(t, err)
	require.Equal(t, "Drink water.", text)
	require.True(t, strings.HasSuffix(gotPath, "models/"+DefaultModel+":generateContent"), gotPath)
	require.Equal(t, "test-key", gotKey)
	require.Contains(t, gotBody, "User's question: hi")
}
