package game

import "time"

// ParticipantSnapshot is an immutable copy of a participant for readers
// outside the team lock
type ParticipantSnapshot struct {
	Identity string `json:"identity"`
	X        uint32 `json:"x"`
}

// ProjectileSnapshot is an immutable copy of a projectile in flight
type ProjectileSnapshot struct {
	ID string `json:"id"`
	X  uint32 `json:"x"`
	Y  uint32 `json:"y"`
}

// TeamSnapshot is published after every mutation. Slices are never shared
// with the live team state.
type TeamSnapshot struct {
	Index        int                   `json:"team"`
	Tick         uint64                `json:"tick"`
	Timestamp    time.Time             `json:"timestamp"`
	Score        int                   `json:"score"`
	Outcome      Outcome               `json:"outcome"`
	Participants []ParticipantSnapshot `json:"participants"`
	Outgoing     []ProjectileSnapshot  `json:"outgoing"`
	Incoming     []ProjectileSnapshot  `json:"incoming"`
}

// publishSnapshotLocked copies team state into a fresh snapshot.
// Caller holds t.mu.
func (t *Team) publishSnapshotLocked() {
	snap := &TeamSnapshot{
		Index:        t.cfg.Index,
		Tick:         t.tick,
		Timestamp:    t.clock(),
		Score:        t.score,
		Outcome:      t.outcome.state,
		Participants: make([]ParticipantSnapshot, 0, len(t.order)),
		Outgoing:     copyProjectiles(t.outgoing),
		Incoming:     copyProjectiles(t.incoming),
	}
	for _, id := range t.order {
		p := t.roster[id]
		snap.Participants = append(snap.Participants, ParticipantSnapshot{Identity: id.String(), X: p.X})
	}
	t.snapshot.Store(snap)
}

func copyProjectiles(list []*Projectile) []ProjectileSnapshot {
	out := make([]ProjectileSnapshot, len(list))
	for i, p := range list {
		out[i] = ProjectileSnapshot{ID: p.ID.String(), X: p.X, Y: p.Y}
	}
	return out
}
