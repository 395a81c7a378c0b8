// Package assistant sends prompts to the generative-text endpoint and turns
// every failure into a displayable fallback reply.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"example.com/wellness/internal/domain"
	"example.com/wellness/internal/observability"
)

// FallbackReply is shown whenever no generated text is available.
const FallbackReply = "Sorry, I couldn't generate a response. Please try again later."

// ErrNoAPIKey is returned when neither the caller nor the configuration supplies a key.
var ErrNoAPIKey = errors.New("no assistant api key configured")

// Generator produces text for a prompt using the given key.
type Generator interface {
	Generate(ctx context.Context, apiKey, prompt string) (string, error)
}

// Config controls the gateway.
type Config struct {
	APIKey  string
	Timeout time.Duration
	// Breaker settings; zero values fall back to defaults.
	MaxRequests      uint32
	Interval         time.Duration
	OpenTimeout      time.Duration
	MinRequests      uint32
	FailureThreshold float64
}

// Gateway implements domain.Assistant.
type Gateway struct {
	gen     Generator
	apiKey  string
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

var _ domain.Assistant = (*Gateway)(nil)

// NewGateway wraps gen with a timeout and a circuit breaker.
func NewGateway(gen Generator, cfg Config, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 5
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 0.6
	}

	g := &Gateway{gen: gen, apiKey: strings.TrimSpace(cfg.APIKey), timeout: cfg.Timeout, logger: logger}
	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "assistant",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return g
}

// Respond returns generated text, or FallbackReply and an error wrapping
// domain.ErrAIGateway. override takes precedence over the configured key.
// Only calls made with the configured key count toward the circuit breaker,
// so a bad per-device key cannot trip it for everyone else.
func (g *Gateway) Respond(ctx context.Context, prompt, override string) (string, error) {
	key := strings.TrimSpace(override)
	if key == "" {
		key = g.apiKey
	}
	if key == "" {
		observability.RecordAssistantRequest("unconfigured", 0)
		return FallbackReply, fmt.Errorf("%w: %w", domain.ErrAIGateway, ErrNoAPIKey)
	}

	call := func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		text, err := g.gen.Generate(callCtx, key, prompt)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == "" {
			return nil, errors.New("empty response")
		}
		return text, nil
	}

	start := time.Now()
	var (
		out interface{}
		err error
	)
	if key == g.apiKey {
		out, err = g.cb.Execute(call)
	} else {
		out, err = call()
	}
	elapsed := time.Since(start)

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		observability.RecordAssistantRequest("rejected", elapsed)
		return FallbackReply, fmt.Errorf("%w: temporarily unavailable: %w", domain.ErrAIGateway, err)
	case err != nil:
		observability.RecordAssistantRequest("failed", elapsed)
		g.logger.Warn("assistant request failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		return FallbackReply, fmt.Errorf("%w: %w", domain.ErrAIGateway, err)
	}

	observability.RecordAssistantRequest("ok", elapsed)
	return out.(string), nil
}

// State reports the breaker state for health output.
func (g *Gateway) State() string {
	return g.cb.State().String()
}
