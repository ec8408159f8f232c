// Package session runs one match: it admits participants over TCP, splits
// them into two teams, drives both team loops and tears everything down once
// the outcome is decided.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"twin-siege/internal/bus"
	"twin-siege/internal/game"
	"twin-siege/internal/metrics"
	"twin-siege/internal/protocol"
)

// Phase is the match lifecycle as seen from outside
type Phase int32

const (
	PhaseLobby Phase = iota
	PhaseRunning
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseRunning:
		return "running"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Config holds everything the orchestrator needs. Game.Index is ignored.
type Config struct {
	MaxParticipants int
	Game            game.Config

	MailboxSize  int
	BusCapacity  int
	InboundQueue int

	JoinTimeout  time.Duration
	WriteTimeout time.Duration
	FlushGrace   time.Duration
}

// Result summarizes a finished match
type Result struct {
	Outcomes [2]game.Outcome
	Scores   [2]int
}

// Winner returns the index of the winning team, or -1
func (r Result) Winner() int {
	for i, o := range r.Outcomes {
		if o == game.Won {
			return i
		}
	}
	return -1
}

// Session owns the two teams of one match
type Session struct {
	cfg    Config
	teams  [2]*game.Team
	events *game.EventLog

	phase  atomic.Int32
	joined atomic.Int32
}

// Option customizes a Session
type Option func(*sessionOptions)

type sessionOptions struct {
	events *game.EventLog
	clock  game.Clock
}

// WithEventLog records the match to an audit log
func WithEventLog(el *game.EventLog) Option {
	return func(o *sessionOptions) { o.events = el }
}

// WithClock overrides the team cooldown clock
func WithClock(c game.Clock) Option {
	return func(o *sessionOptions) { o.clock = c }
}

// New builds both teams, their buses and the relay between them
func New(cfg Config, opts ...Option) *Session {
	var o sessionOptions
	for _, opt := range opts {
		opt(&o)
	}

	ids := game.NewIDRegistry()
	linkA, linkB := game.NewRelay(cfg.MailboxSize)
	links := [2]*game.Link{linkA, linkB}

	s := &Session{cfg: cfg, events: o.events}
	for i := range s.teams {
		team := i
		tc := cfg.Game
		tc.Index = team

		b := bus.New[protocol.Message](cfg.BusCapacity, func(skipped uint64) {
			metrics.RecordBusLag(team, skipped)
		})

		teamOpts := []game.Option{game.WithEventLog(o.events)}
		if o.clock != nil {
			teamOpts = append(teamOpts, game.WithClock(o.clock))
		}
		s.teams[i] = game.NewTeam(tc, ids, b, links[i], teamOpts...)
	}
	return s
}

// Team returns team 0 or 1
func (s *Session) Team(i int) *game.Team { return s.teams[i] }

// Snapshot returns the latest published state of team i
func (s *Session) Snapshot(i int) *game.TeamSnapshot { return s.teams[i].Snapshot() }

// Bus returns the broadcast bus of team i
func (s *Session) Bus(i int) *bus.Bus[protocol.Message] { return s.teams[i].Bus() }

// Phase returns the current lifecycle phase
func (s *Session) Phase() Phase { return Phase(s.phase.Load()) }

// Joined returns how many participants completed the handshake
func (s *Session) Joined() int { return int(s.joined.Load()) }

// MaxParticipants returns the admission target
func (s *Session) MaxParticipants() int { return s.cfg.MaxParticipants }

// member is an admitted connection waiting for the match to start
type member struct {
	actor *Actor
	team  int
	sub   *bus.Subscription[protocol.Message]
}

// ListenAndServe listens on addr and serves one match
func (s *Session) ListenAndServe(ctx context.Context, addr string) (Result, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return Result{}, fmt.Errorf("listen %s: %w", addr, err)
	}
	log.Printf("🎮 Waiting for %d participants on %s", s.cfg.MaxParticipants, ln.Addr())
	return s.Serve(ctx, ln)
}

// Serve admits MaxParticipants over ln, then runs the match to completion.
// The listener is closed once admission ends.
func (s *Session) Serve(ctx context.Context, ln net.Listener) (Result, error) {
	members, err := s.admit(ctx, ln)
	if err != nil {
		for _, m := range members {
			m.actor.conn.Close()
		}
		return Result{}, err
	}

	inbound := [2]chan game.Action{
		make(chan game.Action, s.cfg.InboundQueue),
		make(chan game.Action, s.cfg.InboundQueue),
	}

	s.phase.Store(int32(PhaseRunning))
	for _, team := range s.teams {
		team.Announce()
	}
	log.Printf("🏁 Match started: %d vs %d", len(s.teams[0].Roster()), len(s.teams[1].Roster()))

	actorCtx, stopActors := context.WithCancel(ctx)
	defer stopActors()

	var actors sync.WaitGroup
	for _, m := range members {
		actors.Add(1)
		go func(m member) {
			defer actors.Done()
			m.actor.Run(actorCtx, m.team, m.sub, inbound[m.team])
		}(m)
	}

	var (
		teams   sync.WaitGroup
		result  Result
		runErrs [2]error
	)
	for i, team := range s.teams {
		teams.Add(1)
		go func(i int, team *game.Team) {
			defer teams.Done()
			result.Outcomes[i], runErrs[i] = team.Run(ctx, inbound[i])
		}(i, team)
	}
	teams.Wait()
	s.phase.Store(int32(PhaseFinished))

	for i, team := range s.teams {
		result.Scores[i] = team.Score()
	}
	if err := errors.Join(runErrs[0], runErrs[1]); err != nil {
		stopActors()
		actors.Wait()
		return result, fmt.Errorf("run teams: %w", err)
	}

	log.Printf("🏆 Match over: team %d wins (%d - %d)", result.Winner(), result.Scores[0], result.Scores[1])

	// Give actors time to deliver the final frames
	select {
	case <-time.After(s.cfg.FlushGrace):
	case <-ctx.Done():
	}
	stopActors()
	for _, team := range s.teams {
		team.Bus().Close()
	}
	actors.Wait()
	return result, nil
}

// pendingJoin is a connection whose Join frame was accepted
type pendingJoin struct {
	actor *Actor
	id    protocol.Identity
}

// admit accepts connections until both rosters are full. Handshakes run
// concurrently so a silent connection cannot hold up the others; joiners are
// seated in the order their Join frames complete. Failed handshakes and
// duplicate identities are dropped and the slot stays open.
func (s *Session) admit(ctx context.Context, ln net.Listener) ([]member, error) {
	defer ln.Close()

	admitCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(admitCtx, func() { ln.Close() })
	defer stop()

	var (
		joins      = make(chan pendingJoin)
		acceptErr  = make(chan error, 1)
		acceptDone = make(chan struct{})
		pending    sync.WaitGroup
	)
	go func() {
		defer close(acceptDone)
		for {
			conn, err := ln.Accept()
			if err != nil {
				var ne net.Error
				if errors.As(err, &ne) && ne.Timeout() {
					continue
				}
				acceptErr <- err
				return
			}
			pending.Add(1)
			go func() {
				defer pending.Done()
				s.handshake(admitCtx, conn, joins)
			}()
		}
	}()
	defer func() {
		cancel()
		<-acceptDone
		pending.Wait()
	}()

	members := make([]member, 0, s.cfg.MaxParticipants)
	for len(members) < s.cfg.MaxParticipants {
		select {
		case h := <-joins:
			m, err := s.seat(h, len(members)%2)
			if err != nil {
				h.actor.conn.Close()
				continue
			}
			members = append(members, m)
			s.joined.Store(int32(len(members)))

		case err := <-acceptErr:
			if ctx.Err() != nil {
				return members, ctx.Err()
			}
			return members, fmt.Errorf("accept: %w", err)

		case <-ctx.Done():
			return members, ctx.Err()
		}
	}
	return members, nil
}

// handshake waits for conn's Join frame and hands the actor to admit. The
// connection is closed if admission ends first.
func (s *Session) handshake(ctx context.Context, conn net.Conn, joins chan<- pendingJoin) {
	release := context.AfterFunc(ctx, func() { conn.Close() })

	actor := NewActor(conn, s.cfg.WriteTimeout)
	id, err := actor.Handshake(s.cfg.JoinTimeout)
	if !release() {
		return
	}
	if err != nil {
		metrics.RecordJoinFailure("handshake")
		log.Printf("⚠️ Join from %s failed: %v", actor.RemoteAddr(), err)
		conn.Close()
		return
	}

	select {
	case joins <- pendingJoin{actor: actor, id: id}:
	case <-ctx.Done():
		conn.Close()
	}
}

// seat puts a joined connection on team
func (s *Session) seat(h pendingJoin, team int) (member, error) {
	if err := s.teams[team].Join(h.id); err != nil {
		metrics.RecordJoinFailure("duplicate")
		log.Printf("⚠️ Join from %s rejected: %v", h.actor.RemoteAddr(), err)
		return member{}, err
	}

	// Subscribe before the session start broadcast so nothing is missed
	sub := s.teams[team].Bus().Subscribe()
	return member{actor: h.actor, team: team, sub: sub}, nil
}
