package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/matozai/scribe/internal/auth"
	"github.com/matozai/scribe/internal/session"
)

// Server wires the HTTP surface: the session REST endpoints, the
// websocket endpoint, and the health check.
type Server struct {
	sessions       *session.Service
	hub            *Hub
	verifier       *auth.Verifier
	logger         zerolog.Logger
	maxUploadBytes int64
}

func New(sessions *session.Service, hub *Hub, verifier *auth.Verifier, maxUploadBytes int64, logger zerolog.Logger) *Server {
	return &Server{
		sessions:       sessions,
		hub:            hub,
		verifier:       verifier,
		logger:         logger.With().Str("component", "server").Logger(),
		maxUploadBytes: maxUploadBytes,
	}
}

// Handler builds the route tree. Everything under /api/sessions requires
// a valid bearer token; /ws authenticates during the handshake instead.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.handleWS)

	r.Route("/api/sessions", func(r chi.Router) {
		r.Use(s.verifier.Middleware)

		r.Post("/", s.handleCreate)
		r.Get("/", s.handleList)
		r.Get("/stats", s.handleStats)
		r.Get("/{id}", s.handleGet)
		r.Patch("/{id}", s.handleUpdate)
		r.Delete("/{id}", s.handleDelete)
		r.Get("/{id}/audio", s.handleAudio)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}
