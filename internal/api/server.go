package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"twin-siege/internal/game"

	"github.com/go-chi/chi/v5"
)

// ServerConfig holds the optional knobs of the status server
type ServerConfig struct {
	RateLimit          RateLimitConfig
	CORSOrigins        []string
	MaxSpectatorsPerIP int
	EventLog           *game.EventLog
}

// Server is the status API plus the spectator websocket.
//
// Background work does not start until Start is called, so tests can
// construct a Server and use Router() with httptest.
type Server struct {
	router      *chi.Mux
	hub         *SpectatorHub
	rateLimiter *IPRateLimiter
	http        *http.Server
}

// NewServer builds the router and attaches the spectator feed at /ws
func NewServer(match MatchInterface, cfg ServerConfig) *Server {
	s := &Server{
		hub:         NewSpectatorHub(match, cfg.CORSOrigins, cfg.MaxSpectatorsPerIP),
		rateLimiter: NewIPRateLimiter(cfg.RateLimit),
	}
	s.router = NewRouter(RouterConfig{
		Match:       match,
		EventLog:    cfg.EventLog,
		RateLimiter: s.rateLimiter,
		CORSOrigins: cfg.CORSOrigins,
	})
	s.router.Get("/ws", s.hub.HandleWebSocket)
	return s
}

// Start serves HTTP on addr until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("🌐 API server starting on %s", addr)
	log.Printf("👀 Spectator feed: ws://%s/ws", addr)

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router returns the HTTP handler for use with httptest
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the spectator hub
func (s *Server) Hub() *SpectatorHub {
	return s.hub
}

// Shutdown stops accepting requests and the rate limiter cleanup.
// Hijacked spectator sockets end when the team buses close.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Stop()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
