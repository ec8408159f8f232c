package game

import (
	"time"

	"golang.org/x/time/rate"

	"twin-siege/internal/protocol"
)

// Clock returns the current time. Teams evaluate cooldowns against it so
// tests can drive time explicitly.
type Clock func() time.Time

// Participant is one joined connection's in-game state
type Participant struct {
	Identity protocol.Identity
	X        uint32

	LastFire time.Time
	LastMove time.Time

	fireLimiter *rate.Limiter
	moveLimiter *rate.Limiter
}

// NewParticipant creates a participant centred on a field of the given width
func NewParticipant(id protocol.Identity, width uint32, fireCooldown, moveCooldown time.Duration) *Participant {
	return &Participant{
		Identity:    id,
		X:           width / 2,
		fireLimiter: newCooldown(fireCooldown),
		moveLimiter: newCooldown(moveCooldown),
	}
}

// newCooldown allows one action, then one more every d
func newCooldown(d time.Duration) *rate.Limiter {
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// tryFire consumes the fire cooldown at now
func (p *Participant) tryFire(now time.Time) bool {
	if !p.fireLimiter.AllowN(now, 1) {
		return false
	}
	p.LastFire = now
	return true
}

// tryMove consumes the position cooldown at now
func (p *Participant) tryMove(now time.Time) bool {
	if !p.moveLimiter.AllowN(now, 1) {
		return false
	}
	p.LastMove = now
	return true
}
