package game

import (
	"twin-siege/internal/protocol"
)

// Projectile is a shot in flight. Outgoing projectiles climb from the firing
// team's base (y == Bound) toward the far edge (y == 0); incoming projectiles
// descend from the top edge toward the defending base.
type Projectile struct {
	ID     protocol.ProjectileID
	X      uint32
	Y      uint32
	Bound  uint32
	Radius uint32

	transfer bool // outgoing reached the far edge this tick
}

func newOutgoing(id protocol.ProjectileID, x, height, radius uint32) *Projectile {
	return &Projectile{ID: id, X: x, Y: height, Bound: height, Radius: radius}
}

func newIncoming(id protocol.ProjectileID, x, height, radius uint32) *Projectile {
	return &Projectile{ID: id, X: x, Y: 0, Bound: height, Radius: radius}
}

// advanceOutgoing moves toward the far edge, flooring at zero.
// Returns true once the projectile has arrived.
func (p *Projectile) advanceOutgoing(step uint32) bool {
	if p.Y <= step {
		p.Y = 0
	} else {
		p.Y -= step
	}
	p.transfer = p.Y == 0
	return p.transfer
}

// advanceIncoming moves toward the base, capping at Bound.
// Returns true once the projectile hits the base.
func (p *Projectile) advanceIncoming(step uint32) bool {
	if p.Bound-p.Y <= step {
		p.Y = p.Bound
	} else {
		p.Y += step
	}
	return p.Y == p.Bound
}

// removeByID drops every projectile whose id is in ids, keeping order
func removeByID(list []*Projectile, ids map[protocol.ProjectileID]struct{}) []*Projectile {
	kept := list[:0]
	for _, p := range list {
		if _, gone := ids[p.ID]; !gone {
			kept = append(kept, p)
		}
	}
	for i := len(kept); i < len(list); i++ {
		list[i] = nil
	}
	return kept
}
