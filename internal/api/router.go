package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/wellness/internal/auth"
)

// RouterConfig carries the cross-cutting settings of the HTTP surface.
type RouterConfig struct {
	Auth           auth.Config
	AllowedOrigins []string
}

// Routes builds the chi router for every endpoint.
func (h *Handler) Routes(cfg RouterConfig) http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger(h.logger))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", DeviceHeader, "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	authn := auth.NewMiddleware(cfg.Auth, func(w http.ResponseWriter, err error) {
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	})
	router.Use(authn.Wrap)

	router.Get("/healthz", healthz)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/v1", func(r chi.Router) {
		r.Post("/auth/login", h.login)
		r.Post("/sync", h.syncNow)

		r.Route("/definitions", func(r chi.Router) {
			r.Get("/", h.listDefinitions)
			r.Post("/", h.createDefinition)
			r.Delete("/{id}", h.deleteDefinition)
		})

		r.Route("/activities", func(r chi.Router) {
			r.Get("/", h.listActivities)
			r.Post("/", h.trackActivity)
			r.Delete("/{id}", h.deleteActivity)
		})

		r.Get("/cooldowns", h.listCooldowns)
		r.Get("/cooldowns/{type}/stream", h.streamCooldown)
		r.Get("/stats", h.getStats)

		r.Route("/chats", func(r chi.Router) {
			r.Get("/", h.chatHistory)
			r.Post("/", h.sendChat)
			r.Delete("/", h.clearChats)
			r.Get("/transcript", h.chatTranscript)
		})

		r.Put("/assistant/key", h.setAPIKey)
		r.Delete("/assistant/key", h.clearAPIKey)

		r.Route("/notes", func(r chi.Router) {
			r.Get("/", h.listNotes)
			r.Post("/", h.createNote)
			r.Get("/search", h.searchNotes)
			r.Put("/{id}", h.updateNote)
			r.Delete("/{id}", h.deleteNote)
		})
	})

	return router
}

func requestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}
