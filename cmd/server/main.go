package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"twin-siege/internal/api"
	"twin-siege/internal/config"
	"twin-siege/internal/game"
	"twin-siege/internal/metrics"
	"twin-siege/internal/session"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	} else {
		log.Println("✅ Loaded environment from .env")
	}

	log.Println("🎮 ================================")
	log.Println("🎮  TWIN SIEGE - MATCH SERVER")
	log.Println("🎮 ================================")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Config: %v", err)
	}
	log.Printf("🎮 Config: %d participants, first to %d, field %dx%d, tick %v",
		cfg.Match.MaxParticipants, cfg.Match.EndScore, cfg.Physics.Width, cfg.Physics.Height, cfg.Physics.TickInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events := game.NewEventLog()
	if err := events.Start(cfg.Server.EventLogPath); err != nil {
		log.Printf("⚠️ Event log disabled: %v", err)
	} else if cfg.Server.EventLogPath != "" {
		log.Printf("📝 Event log: %s", cfg.Server.EventLogPath)
	}
	go mirrorEventLogStats(ctx, events)

	if cfg.Server.DebugEnabled {
		if err := api.StartDebugServer(api.ObservabilityConfig{
			Enabled:       true,
			ListenAddr:    cfg.Server.DebugAddr,
			AllowExternal: cfg.Server.AllowDebugExt,
			BasicAuthUser: cfg.Server.DebugUser,
			BasicAuthPass: cfg.Server.DebugPass,
		}); err != nil {
			log.Printf("⚠️ Debug server disabled: %v", err)
		}
	}

	match := session.New(sessionConfig(cfg), session.WithEventLog(events))

	server := api.NewServer(match, api.ServerConfig{
		RateLimit: api.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.APIRequestsPerSec,
			Burst:             cfg.RateLimit.APIBurst,
			CleanupInterval:   api.DefaultRateLimitConfig.CleanupInterval,
		},
		CORSOrigins:        cfg.Server.AllowedOrigins,
		MaxSpectatorsPerIP: cfg.RateLimit.MaxSpectatorsPerIP,
		EventLog:           events,
	})
	go func() {
		if err := server.Start(cfg.Server.HTTPAddr); err != nil {
			log.Printf("⚠️ API server error: %v", err)
		}
	}()

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	result, err := match.ListenAndServe(ctx, cfg.Network.Addr())
	switch {
	case errors.Is(err, context.Canceled):
		log.Println("🛑 Shutting down before the match finished")
	case err != nil:
		log.Printf("❌ Match failed: %v", err)
	default:
		log.Printf("🏆 Final: team 0 %s (%d), team 1 %s (%d)",
			result.Outcomes[0], result.Scores[0], result.Outcomes[1], result.Scores[1])
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ API shutdown: %v", err)
	}
	events.Stop()
	log.Println("👋 Goodbye!")

	if err != nil {
		os.Exit(1)
	}
}

// sessionConfig maps the environment sections onto the orchestrator
func sessionConfig(cfg config.AppConfig) session.Config {
	return session.Config{
		MaxParticipants: cfg.Match.MaxParticipants,
		Game: game.Config{
			Width:        cfg.Physics.Width,
			Height:       cfg.Physics.Height,
			Step:         cfg.Physics.Step,
			Radius:       cfg.Physics.Radius,
			EndScore:     cfg.Match.EndScore,
			FireCooldown: cfg.RateLimit.FireCooldown,
			MoveCooldown: cfg.RateLimit.PositionCooldown,
			TickInterval: cfg.Physics.TickInterval,
		},
		MailboxSize:  cfg.Network.MailboxSize,
		BusCapacity:  cfg.Network.BusCapacity,
		InboundQueue: cfg.Network.InboundQueue,
		JoinTimeout:  cfg.Network.JoinTimeout,
		WriteTimeout: cfg.Network.WriteTimeout,
		FlushGrace:   cfg.Network.FlushGrace,
	}
}

// mirrorEventLogStats copies audit log counters into Prometheus
func mirrorEventLogStats(ctx context.Context, events *game.EventLog) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateEventLogStats(events.TotalCount(), events.DroppedCount())
		}
	}
}
