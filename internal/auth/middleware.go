package auth

import (
	"net/http"
	"strings"
)

// Skipper allows callers to bypass authentication for specific requests.
type Skipper func(r *http.Request) bool

// ErrorWriter renders an authentication failure.
type ErrorWriter func(w http.ResponseWriter, err error)

// Middleware attaches claims for requests that carry a bearer token.
// Requests without an Authorization header pass through anonymously;
// a malformed or invalid token is rejected.
type Middleware struct {
	Config  Config
	Skipper Skipper
	OnError ErrorWriter
}

// NewMiddleware constructs Middleware. /healthz and /metrics are never inspected.
func NewMiddleware(cfg Config, onError ErrorWriter) Middleware {
	skipper := func(r *http.Request) bool {
		return r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
	}
	if onError == nil {
		onError = func(w http.ResponseWriter, err error) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
		}
	}
	return Middleware{Config: cfg, Skipper: skipper, OnError: onError}
}

// Wrap wraps an http.Handler with authentication.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skipper != nil && m.Skipper(r) {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := m.parseHeader(header)
		if err != nil {
			m.OnError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func (m Middleware) parseHeader(header string) (*Claims, error) {
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return nil, ErrInvalidToken
	}
	return Parse(header[len("Bearer "):], m.Config)
}
