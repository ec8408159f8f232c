package api

import (
	"net/http"

	"twin-siege/internal/bus"
	"twin-siege/internal/game"
	"twin-siege/internal/protocol"
	"twin-siege/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// MatchInterface defines the session methods used by the API.
// Keep this minimal so tests can supply a fake match.
type MatchInterface interface {
	// Phase returns lobby, running or finished
	Phase() session.Phase
	// Joined returns the number of seated participants
	Joined() int
	// MaxParticipants returns the admission target
	MaxParticipants() int
	// Snapshot returns the latest lock-free state of team 0 or 1
	Snapshot(team int) *game.TeamSnapshot
	// Bus returns the broadcast bus of team 0 or 1
	Bus(team int) *bus.Bus[protocol.Message]
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	router := api.NewRouter(api.RouterConfig{
//	    Match: fakeMatch,
//	    RateLimitConfig: &api.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
//	})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Match is the running session (required)
	Match MatchInterface

	// EventLog is optional; its counters appear in /api/match
	EventLog *game.EventLog

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is only used if RateLimiter is nil.
	// If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, localhost on any port is allowed.
	CORSOrigins []string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

type routerHandlers struct {
	match  MatchInterface
	events *game.EventLog
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// It is pure: no goroutines, listeners or background workers are started
// apart from the rate limiter cleanup when no limiter is supplied. This makes
// it safe to use with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)

	// Rate limiting before CORS to reject early
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}))

	h := &routerHandlers{match: cfg.Match, events: cfg.EventLog}

	r.Get("/health", h.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/match", h.handleGetMatch)
		r.Get("/teams/{team}", h.handleGetTeam)
	})

	return r
}
