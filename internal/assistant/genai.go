package assistant

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// maxCachedClients caps the per-key client cache. Keys seen after the cap is
// reached get a fresh client per call.
const maxCachedClients = 64

// GenAIGenerator calls the Gemini API. Up to maxCachedClients clients are
// kept, one per key.
type GenAIGenerator struct {
	model      string
	baseURL    string
	httpClient *http.Client

	mu      sync.Mutex
	clients map[string]*genai.Client
}

// NewGenAIGenerator builds a generator. baseURL and httpClient may be empty.
func NewGenAIGenerator(model, baseURL string, httpClient *http.Client) *GenAIGenerator {
	if model == "" {
		model = DefaultModel
	}
	return &GenAIGenerator{
		model:      model,
		baseURL:    baseURL,
		httpClient: httpClient,
		clients:    make(map[string]*genai.Client),
	}
}

func (g *GenAIGenerator) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.clients[apiKey]; ok {
		return c, nil
	}
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
	}
	if g.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}
	c, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if len(g.clients) < maxCachedClients {
		g.clients[apiKey] = c
	}
	return c, nil
}

// Generate implements Generator.
func (g *GenAIGenerator) Generate(ctx context.Context, apiKey, prompt string) (string, error) {
	c, err := g.client(ctx, apiKey)
	if err != nil {
		return "", err
	}
	resp, err := c.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("generate content: no candidates")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}
