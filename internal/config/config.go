// Package config provides centralized configuration management.
// Every section has a Default*() constructor holding the built-in values;
// Load and LoadFrom apply environment overrides on top and validate.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
)

// MaxTeamRoster is the largest team a session start frame can describe
const MaxTeamRoster = 255

// =============================================================================
// MATCH CONFIGURATION
// =============================================================================

// MatchConfig controls admission and the win condition.
type MatchConfig struct {
	MaxParticipants int `env:"MAX_PARTICIPANTS"` // Joined connections before start, split across two teams
	EndScore        int `env:"END_SCORE"`        // Points needed to win
}

// DefaultMatch returns a one-versus-one match to five.
func DefaultMatch() MatchConfig {
	return MatchConfig{
		MaxParticipants: 2,
		EndScore:        5,
	}
}

// =============================================================================
// PHYSICS CONFIGURATION
// =============================================================================

// PhysicsConfig describes the field and projectile motion.
type PhysicsConfig struct {
	Width        uint32        `env:"FIELD_WIDTH"`
	Height       uint32        `env:"FIELD_HEIGHT"`      // Also the projectile travel bound
	Step         uint32        `env:"PROJECTILE_STEP"`   // Distance per tick
	Radius       uint32        `env:"PROJECTILE_RADIUS"` // Collision radius
	TickInterval time.Duration `env:"TICK_INTERVAL"`
}

// DefaultPhysics returns the reference field: 800x600, 10 units per 100ms tick.
func DefaultPhysics() PhysicsConfig {
	return PhysicsConfig{
		Width:        800,
		Height:       600,
		Step:         10,
		Radius:       10,
		TickInterval: 100 * time.Millisecond,
	}
}

// =============================================================================
// RATE LIMIT CONFIGURATION
// =============================================================================

// RateLimitConfig holds participant cooldowns and HTTP limits.
type RateLimitConfig struct {
	FireCooldown       time.Duration `env:"FIRE_COOLDOWN"`
	PositionCooldown   time.Duration `env:"POSITION_COOLDOWN"`
	APIRequestsPerSec  float64       `env:"API_REQUESTS_PER_SEC"`
	APIBurst           int           `env:"API_BURST"`
	MaxSpectatorsPerIP int           `env:"MAX_SPECTATORS_PER_IP"`
}

// DefaultRateLimit returns the default cooldowns and API limits.
func DefaultRateLimit() RateLimitConfig {
	return RateLimitConfig{
		FireCooldown:       400 * time.Millisecond,
		PositionCooldown:   50 * time.Millisecond,
		APIRequestsPerSec:  10,
		APIBurst:           20,
		MaxSpectatorsPerIP: 5,
	}
}

// =============================================================================
// NETWORK CONFIGURATION
// =============================================================================

// NetworkConfig holds the participant socket and internal queue sizes.
type NetworkConfig struct {
	Host         string        `env:"HOST"`
	Port         int           `env:"PORT"`
	MailboxSize  int           `env:"RELAY_MAILBOX_SIZE"` // Per-direction relay capacity
	BusCapacity  int           `env:"BUS_CAPACITY"`       // Broadcast ring size per team
	InboundQueue int           `env:"INBOUND_QUEUE_SIZE"` // Participant actions per team
	JoinTimeout  time.Duration `env:"JOIN_TIMEOUT"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT"`
	FlushGrace   time.Duration `env:"FLUSH_GRACE"` // Wait after the outcome before closing sockets
}

// DefaultNetwork returns the default listener settings.
func DefaultNetwork() NetworkConfig {
	return NetworkConfig{
		Host:         "0.0.0.0",
		Port:         6773,
		MailboxSize:  64,
		BusCapacity:  1024,
		InboundQueue: 256,
		JoinTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Second,
		FlushGrace:   time.Second,
	}
}

// Addr returns the participant listen address.
func (n NetworkConfig) Addr() string {
	return net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds the status API, debug server and audit log settings.
type ServerConfig struct {
	HTTPAddr       string   `env:"HTTP_ADDR"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	DebugEnabled   bool     `env:"DEBUG_ENABLED"`
	DebugAddr      string   `env:"DEBUG_ADDR"` // Forced to localhost unless ALLOW_DEBUG_EXTERNAL
	AllowDebugExt  bool     `env:"ALLOW_DEBUG_EXTERNAL"`
	DebugUser      string   `env:"DEBUG_USER"` // Basic auth, required with ALLOW_DEBUG_EXTERNAL
	DebugPass      string   `env:"DEBUG_PASS"`
	EventLogPath   string   `env:"EVENT_LOG_PATH"` // Empty disables the file
}

// DefaultServer returns the default HTTP configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		HTTPAddr:       ":8080",
		AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		DebugEnabled:   true,
		DebugAddr:      "127.0.0.1:6060",
	}
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Match     MatchConfig
	Physics   PhysicsConfig
	RateLimit RateLimitConfig
	Network   NetworkConfig
	Server    ServerConfig
}

// Default returns the built-in configuration with no overrides.
func Default() AppConfig {
	return AppConfig{
		Match:     DefaultMatch(),
		Physics:   DefaultPhysics(),
		RateLimit: DefaultRateLimit(),
		Network:   DefaultNetwork(),
		Server:    DefaultServer(),
	}
}

// Load returns the configuration with process environment overrides.
func Load() (AppConfig, error) {
	return load(env.Options{})
}

// LoadFrom applies overrides from vars instead of the process environment.
func LoadFrom(vars map[string]string) (AppConfig, error) {
	return load(env.Options{Environment: vars})
}

func load(opts env.Options) (AppConfig, error) {
	cfg := Default()
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return AppConfig{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid config")

// Validate rejects values the match cannot run with.
func (c AppConfig) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
		}
	}

	check(c.Match.MaxParticipants >= 2, "MAX_PARTICIPANTS must be at least 2, got %d", c.Match.MaxParticipants)
	check(c.Match.MaxParticipants%2 == 0, "MAX_PARTICIPANTS must be even, got %d", c.Match.MaxParticipants)
	check(c.Match.MaxParticipants/2 <= MaxTeamRoster, "MAX_PARTICIPANTS allows at most %d per team", MaxTeamRoster)
	check(c.Match.EndScore > 0, "END_SCORE must be positive, got %d", c.Match.EndScore)

	check(c.Physics.Width > 0, "FIELD_WIDTH must be positive")
	check(c.Physics.Height > 0, "FIELD_HEIGHT must be positive")
	check(c.Physics.Step > 0, "PROJECTILE_STEP must be positive")
	check(c.Physics.TickInterval > 0, "TICK_INTERVAL must be positive")

	check(c.RateLimit.FireCooldown >= 0, "FIRE_COOLDOWN must not be negative")
	check(c.RateLimit.PositionCooldown >= 0, "POSITION_COOLDOWN must not be negative")

	check(c.Network.Port > 0 && c.Network.Port < 65536, "PORT out of range: %d", c.Network.Port)
	check(c.Network.MailboxSize > 0, "RELAY_MAILBOX_SIZE must be positive")
	check(c.Network.BusCapacity > 0, "BUS_CAPACITY must be positive")
	check(c.Network.InboundQueue > 0, "INBOUND_QUEUE_SIZE must be positive")

	return errors.Join(errs...)
}
