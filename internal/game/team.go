package game

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"twin-siege/internal/bus"
	"twin-siege/internal/game/spatial"
	"twin-siege/internal/metrics"
	"twin-siege/internal/protocol"
)

var (
	ErrDuplicateIdentity  = errors.New("game: identity already on team")
	ErrUnknownParticipant = errors.New("game: unknown participant")
	ErrCooldown           = errors.New("game: cooldown not elapsed")
	ErrMatchOver          = errors.New("game: match is over")
	ErrRosterFull         = errors.New("game: roster full")
)

// Config holds the per-team rules. Both teams of a match share everything
// except Index.
type Config struct {
	Index        int
	Width        uint32
	Height       uint32
	Step         uint32
	Radius       uint32
	EndScore     int
	FireCooldown time.Duration
	MoveCooldown time.Duration
	TickInterval time.Duration
}

// ActionKind is what a participant asked for
type ActionKind uint8

const (
	ActionMove ActionKind = iota
	ActionFire
	ActionExit
)

func (k ActionKind) String() string {
	switch k {
	case ActionMove:
		return "move"
	case ActionFire:
		return "fire"
	case ActionExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Action is one inbound event, already tagged with the sender's identity
type Action struct {
	Kind     ActionKind
	Identity protocol.Identity
	X, Y     uint32
}

// Team is the single source of truth for one side of a match. Every exported
// method takes the team mutex; broadcasts are published while it is held so
// subscribers see them in mutation order.
type Team struct {
	cfg    Config
	clock  Clock
	ids    *IDRegistry
	bus    *bus.Bus[protocol.Message]
	link   *Link
	events *EventLog

	mu       sync.Mutex
	roster   map[protocol.Identity]*Participant
	order    []protocol.Identity
	outgoing []*Projectile
	incoming []*Projectile
	broad    *spatial.SweepAndPrune
	score    int
	hits     int // base hits suffered
	outcome  outcomeMachine
	tick     uint64
	finished bool
	done     chan struct{}

	snapshot atomic.Pointer[TeamSnapshot]
}

// Option customizes a Team
type Option func(*Team)

// WithClock replaces time.Now for cooldown checks
func WithClock(c Clock) Option {
	return func(t *Team) { t.clock = c }
}

// WithEventLog attaches the match audit log
func WithEventLog(el *EventLog) Option {
	return func(t *Team) { t.events = el }
}

// NewTeam creates an empty team bound to its side of the relay
func NewTeam(cfg Config, ids *IDRegistry, b *bus.Bus[protocol.Message], link *Link, opts ...Option) *Team {
	t := &Team{
		cfg:     cfg,
		clock:   time.Now,
		ids:     ids,
		bus:     b,
		link:    link,
		roster:  make(map[protocol.Identity]*Participant),
		broad:   spatial.NewSweepAndPrune(64),
		outcome: outcomeMachine{index: cfg.Index},
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.mu.Lock()
	t.publishSnapshotLocked()
	t.mu.Unlock()
	return t
}

// Index returns the team number, 0 or 1
func (t *Team) Index() int { return t.cfg.Index }

// Bus returns the team broadcast bus
func (t *Team) Bus() *bus.Bus[protocol.Message] { return t.bus }

// Done is closed once the team reaches Won or Lost
func (t *Team) Done() <-chan struct{} { return t.done }

// Snapshot returns the most recently published state without locking
func (t *Team) Snapshot() *TeamSnapshot { return t.snapshot.Load() }

func (t *Team) Score() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.score
}

// HitsTaken returns how many incoming projectiles reached this team's base
func (t *Team) HitsTaken() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hits
}

func (t *Team) Outcome() Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome.state
}

// Roster returns identities in join order
func (t *Team) Roster() []protocol.Identity {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]protocol.Identity, len(t.order))
	copy(out, t.order)
	return out
}

// Join adds a participant at the centre of the field
func (t *Team) Join(id protocol.Identity) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.outcome.state.Terminal() {
		return ErrMatchOver
	}
	if _, exists := t.roster[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateIdentity, id)
	}
	if len(t.order) >= protocol.MaxRoster {
		return ErrRosterFull
	}

	t.roster[id] = NewParticipant(id, t.cfg.Width, t.cfg.FireCooldown, t.cfg.MoveCooldown)
	t.order = append(t.order, id)

	log.Printf("👤 %s joined team %d (%d on roster)", id, t.cfg.Index, len(t.order))
	t.events.Record(EventTypeJoin, t.tick, t.cfg.Index, "", map[string]string{"identity": id.String()})
	metrics.SetParticipants(t.cfg.Index, len(t.order))
	t.publishSnapshotLocked()
	return nil
}

// Announce broadcasts the session start frame with the current roster
func (t *Team) Announce() {
	t.mu.Lock()
	defer t.mu.Unlock()

	roster := make([]protocol.Identity, len(t.order))
	copy(roster, t.order)
	t.bus.Publish(protocol.SessionStart{Width: t.cfg.Width, Height: t.cfg.Height, Roster: roster})
	log.Printf("🎮 Team %d session start: %d participants, field %dx%d", t.cfg.Index, len(roster), t.cfg.Width, t.cfg.Height)
}

// Apply runs one participant action. Dropped actions return an error
// describing why; callers decide what is worth logging.
func (t *Team) Apply(a Action) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.outcome.state.Terminal() {
		return ErrMatchOver
	}

	p, ok := t.roster[a.Identity]
	if !ok {
		metrics.RecordUnknownParticipant(t.cfg.Index)
		log.Printf("⚠️ Team %d: %s from unknown participant %q", t.cfg.Index, a.Kind, a.Identity.String())
		return fmt.Errorf("%w: %s", ErrUnknownParticipant, a.Identity)
	}

	switch a.Kind {
	case ActionExit:
		t.removeLocked(a.Identity)

	case ActionFire:
		now := t.clock()
		if !p.tryFire(now) {
			metrics.RecordCooldownDrop(t.cfg.Index, "fire")
			return ErrCooldown
		}
		id, err := t.ids.Next()
		if err != nil {
			return err
		}
		proj := newOutgoing(id, p.X, t.cfg.Height, t.cfg.Radius)
		t.outgoing = append(t.outgoing, proj)
		t.bus.Publish(protocol.ParticipantEvent{Identity: a.Identity, Event: protocol.EventFire})
		t.bus.Publish(protocol.ProjectileCreated{ID: id, X: proj.X, Y: proj.Y})

		metrics.RecordFire(t.cfg.Index)
		t.events.Record(EventTypeFire, t.tick, t.cfg.Index, a.Identity.String(),
			ProjectilePayload{ID: id.String(), X: proj.X, Y: proj.Y})

	case ActionMove:
		if !p.tryMove(t.clock()) {
			metrics.RecordCooldownDrop(t.cfg.Index, "move")
			return ErrCooldown
		}
		p.X = min(a.X, t.cfg.Width)
		t.bus.Publish(protocol.PositionUpdate{Identity: a.Identity, X: p.X, Y: a.Y})

	default:
		return fmt.Errorf("game: unknown action %d", a.Kind)
	}

	t.publishSnapshotLocked()
	return nil
}

// removeLocked drops a participant and tells the team. Caller holds t.mu.
func (t *Team) removeLocked(id protocol.Identity) {
	delete(t.roster, id)
	for i, o := range t.order {
		if o == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	t.bus.Publish(protocol.ParticipantLeft{Identity: id})

	log.Printf("👋 %s left team %d (%d remaining)", id, t.cfg.Index, len(t.order))
	t.events.Record(EventTypeLeave, t.tick, t.cfg.Index, "", map[string]string{"identity": id.String()})
	metrics.SetParticipants(t.cfg.Index, len(t.order))
}

// HandleTransfer turns a peer's escaped projectile into an incoming threat
func (t *Team) HandleTransfer(tr Transfer) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.outcome.state.Terminal() {
		return
	}
	p := newIncoming(tr.ID, tr.X, t.cfg.Height, t.cfg.Radius)
	t.incoming = append(t.incoming, p)
	t.bus.Publish(protocol.ThreatCreated{ID: p.ID, X: p.X, Y: p.Y})
	t.publishSnapshotLocked()
}

// HandleNotice applies a score or outcome notice from the peer and returns
// anything that must be sent back
func (t *Team) HandleNotice(n Notice) Outbox {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out Outbox
	switch n.Kind {
	case NoticeHit:
		if t.outcome.state != Running {
			return out
		}
		t.score++
		t.bus.Publish(protocol.EnemyHit{})
		metrics.SetScore(t.cfg.Index, t.score)
		t.events.Record(EventTypeScore, t.tick, t.cfg.Index, "", ScorePayload{Score: t.score})

		if t.outcome.scored(t.score, t.cfg.EndScore) {
			log.Printf("🏁 Team %d reached %d points, claiming victory", t.cfg.Index, t.score)
			out.Notices = append(out.Notices, Notice{Kind: NoticeVictory})
		}

	case NoticeVictory:
		if t.outcome.victory() {
			out.Notices = append(out.Notices, Notice{Kind: NoticeConcede})
		}

	case NoticeConcede:
		t.outcome.conceded()
	}

	t.finishLocked()
	t.publishSnapshotLocked()
	return out
}

// finishLocked announces a terminal outcome exactly once. Caller holds t.mu.
func (t *Team) finishLocked() {
	if t.finished || !t.outcome.state.Terminal() {
		return
	}
	t.finished = true

	if t.outcome.state == Won {
		t.bus.Publish(protocol.MatchWon{})
		log.Printf("🏆 Team %d won with %d points", t.cfg.Index, t.score)
	} else {
		t.bus.Publish(protocol.MatchLost{})
		log.Printf("💀 Team %d lost with %d points", t.cfg.Index, t.score)
	}

	metrics.RecordOutcome(t.cfg.Index, t.outcome.state.String())
	t.events.Record(EventTypeOutcome, t.tick, t.cfg.Index, "", OutcomePayload{Outcome: t.outcome.state, Score: t.score})
	close(t.done)
}
