package game

import (
	"errors"
	"fmt"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"twin-siege/internal/protocol"
)

// ErrIDSpaceExhausted is returned when no fresh id could be drawn
var ErrIDSpaceExhausted = errors.New("game: could not allocate unique projectile id")

const (
	projectileIDLen = protocol.IdentityLen
	maxIDAttempts   = 16
)

// IDRegistry hands out projectile ids that are unique across the whole match.
// It is shared by both teams and only ever grows.
type IDRegistry struct {
	mu       sync.Mutex
	issued   map[protocol.ProjectileID]struct{}
	generate func() (string, error)
}

// NewIDRegistry creates a registry drawing random 8-character nanoids
func NewIDRegistry() *IDRegistry {
	return &IDRegistry{
		issued:   make(map[protocol.ProjectileID]struct{}),
		generate: func() (string, error) { return gonanoid.New(projectileIDLen) },
	}
}

// Next returns a fresh id, retrying on the rare collision
func (r *IDRegistry) Next() (protocol.ProjectileID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < maxIDAttempts; i++ {
		s, err := r.generate()
		if err != nil {
			return protocol.ProjectileID{}, fmt.Errorf("generate projectile id: %w", err)
		}
		id, err := protocol.NewProjectileID(s)
		if err != nil {
			return protocol.ProjectileID{}, err
		}
		if _, taken := r.issued[id]; taken {
			continue
		}
		r.issued[id] = struct{}{}
		return id, nil
	}
	return protocol.ProjectileID{}, ErrIDSpaceExhausted
}

// Issued returns how many ids have been handed out
func (r *IDRegistry) Issued() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.issued)
}
