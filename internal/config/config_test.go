package config

import (
	"errors"
	"testing"
	"time"
)

// TestDefaults tests the reference match values
func TestDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.Network.Port != 6773 {
		t.Errorf("Expected port 6773, got %d", cfg.Network.Port)
	}
	if cfg.Match.MaxParticipants != 2 || cfg.Match.EndScore != 5 {
		t.Errorf("Unexpected match defaults %+v", cfg.Match)
	}
	if cfg.Physics.Width != 800 || cfg.Physics.Height != 600 || cfg.Physics.Step != 10 {
		t.Errorf("Unexpected physics defaults %+v", cfg.Physics)
	}
	if cfg.RateLimit.FireCooldown != 400*time.Millisecond {
		t.Errorf("Expected 400ms fire cooldown, got %v", cfg.RateLimit.FireCooldown)
	}
	if cfg.Network.Addr() != "0.0.0.0:6773" {
		t.Errorf("Unexpected addr %q", cfg.Network.Addr())
	}
}

// TestEnvOverrides tests that variables replace defaults section by section
func TestEnvOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"PORT":             "7000",
		"MAX_PARTICIPANTS": "6",
		"FIELD_HEIGHT":     "300",
		"TICK_INTERVAL":    "50ms",
		"FIRE_COOLDOWN":    "1s",
		"ALLOWED_ORIGINS":  "https://a.example,https://b.example",
		"EVENT_LOG_PATH":   "/tmp/match.jsonl",
		"DEBUG_USER":       "ops",
		"DEBUG_PASS":       "secret",
	})
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.Network.Port != 7000 {
		t.Errorf("Expected port 7000, got %d", cfg.Network.Port)
	}
	if cfg.Match.MaxParticipants != 6 {
		t.Errorf("Expected 6 participants, got %d", cfg.Match.MaxParticipants)
	}
	if cfg.Physics.Height != 300 || cfg.Physics.Width != 800 {
		t.Errorf("Expected height override only, got %+v", cfg.Physics)
	}
	if cfg.Physics.TickInterval != 50*time.Millisecond {
		t.Errorf("Expected 50ms tick, got %v", cfg.Physics.TickInterval)
	}
	if cfg.RateLimit.FireCooldown != time.Second {
		t.Errorf("Expected 1s cooldown, got %v", cfg.RateLimit.FireCooldown)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("Unexpected origins %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Server.EventLogPath != "/tmp/match.jsonl" {
		t.Errorf("Unexpected event log path %q", cfg.Server.EventLogPath)
	}
	if cfg.Server.DebugUser != "ops" || cfg.Server.DebugPass != "secret" {
		t.Errorf("Unexpected debug credentials %q/%q", cfg.Server.DebugUser, cfg.Server.DebugPass)
	}
}

// TestValidate tests rejection of unusable values
func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"odd participants", map[string]string{"MAX_PARTICIPANTS": "3"}},
		{"too few participants", map[string]string{"MAX_PARTICIPANTS": "0"}},
		{"roster overflow", map[string]string{"MAX_PARTICIPANTS": "512"}},
		{"zero end score", map[string]string{"END_SCORE": "0"}},
		{"zero step", map[string]string{"PROJECTILE_STEP": "0"}},
		{"zero tick", map[string]string{"TICK_INTERVAL": "0s"}},
		{"bad port", map[string]string{"PORT": "70000"}},
		{"zero mailbox", map[string]string{"RELAY_MAILBOX_SIZE": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.vars)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

// TestParseError tests malformed values
func TestParseError(t *testing.T) {
	if _, err := LoadFrom(map[string]string{"PORT": "not-a-number"}); err == nil {
		t.Error("Expected a parse error")
	}
}
