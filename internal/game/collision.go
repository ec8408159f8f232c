package game

import (
	"twin-siege/internal/game/spatial"
	"twin-siege/internal/protocol"
)

// Collides reports whether two projectiles overlap: r1 + r2 > distance.
// Evaluated exactly in integers by comparing squares.
func Collides(a, b *Projectile) bool {
	dx := int64(a.X) - int64(b.X)
	dy := int64(a.Y) - int64(b.Y)
	r := int64(a.Radius) + int64(b.Radius)
	return r*r > dx*dx+dy*dy
}

// findCollisions returns the ids of every member of every colliding
// (outgoing, incoming) pair. A projectile can be in several pairs; all of them
// are destroyed together. The sweep on x prunes pairs that cannot touch.
func findCollisions(broad *spatial.SweepAndPrune, outgoing, incoming []*Projectile) (hitOut, hitIn map[protocol.ProjectileID]struct{}) {
	pairs := broad.Sweep(spans(outgoing), spans(incoming))
	for _, pair := range pairs {
		o, in := outgoing[pair.A], incoming[pair.B]
		if !Collides(o, in) {
			continue
		}
		if hitOut == nil {
			hitOut = make(map[protocol.ProjectileID]struct{})
			hitIn = make(map[protocol.ProjectileID]struct{})
		}
		hitOut[o.ID] = struct{}{}
		hitIn[in.ID] = struct{}{}
	}
	return hitOut, hitIn
}

// spans projects projectiles onto the x axis
func spans(list []*Projectile) []spatial.Span {
	out := make([]spatial.Span, len(list))
	for i, p := range list {
		out[i] = spatial.Around(int64(p.X), int64(p.Radius))
	}
	return out
}
