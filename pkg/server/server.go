// Package server exposes the follow-up store over HTTP and answers candidate
// utterances over a WebSocket.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-go-golems/rehearsal/pkg/followup"
	"github.com/rs/zerolog/log"
)

type Server struct {
	router    chi.Router
	store     *followup.Store
	responder *Responder
}

func NewServer(store *followup.Store, responder *Responder) *Server {
	s := &Server{
		store:     store,
		responder: responder,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StripSlashes)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)
	r.Post("/responses", s.handleCreateResponse)
	r.Get("/responses/{responseID}", s.handleGetResponse)
	r.Get("/ws", s.handleWS)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// requestLogger logs each request once it is done. The wrapped writer keeps
// http.Hijacker so websocket upgrades still work.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
