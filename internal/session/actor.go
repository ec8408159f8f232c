package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"twin-siege/internal/bus"
	"twin-siege/internal/game"
	"twin-siege/internal/protocol"
)

// ErrJoinFailed wraps every reason a connection did not complete the handshake
var ErrJoinFailed = errors.New("session: join failed")

// errExited marks a participant that asked to leave
var errExited = errors.New("session: participant exited")

// Actor bridges one participant connection and its team. It performs no
// game rule validation; it only translates frames and stamps its identity.
type Actor struct {
	conn         net.Conn
	reader       *bufio.Reader
	writeTimeout time.Duration

	team     int
	identity protocol.Identity
}

// NewActor wraps an accepted connection
func NewActor(conn net.Conn, writeTimeout time.Duration) *Actor {
	return &Actor{
		conn:         conn,
		reader:       bufio.NewReader(conn),
		writeTimeout: writeTimeout,
	}
}

// Identity returns the identity presented at join
func (a *Actor) Identity() protocol.Identity { return a.identity }

// RemoteAddr is used in logs
func (a *Actor) RemoteAddr() string {
	if addr := a.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}

// Handshake waits for exactly one Join frame. Anything else, including a
// timeout, fails with ErrJoinFailed.
func (a *Actor) Handshake(timeout time.Duration) (protocol.Identity, error) {
	if timeout > 0 {
		if err := a.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return protocol.Identity{}, fmt.Errorf("%w: %w", ErrJoinFailed, err)
		}
		defer a.conn.SetReadDeadline(time.Time{})
	}

	msg, err := protocol.ReadMessage(a.reader)
	if err != nil {
		return protocol.Identity{}, fmt.Errorf("%w: read join: %w", ErrJoinFailed, err)
	}
	join, ok := msg.(protocol.Join)
	if !ok {
		return protocol.Identity{}, fmt.Errorf("%w: expected join, got %s", ErrJoinFailed, msg.Tag())
	}

	// Re-validate so padding-only or NUL-embedded identities are refused
	id, err := protocol.NewIdentity(join.Identity.String())
	if err != nil || id != join.Identity {
		return protocol.Identity{}, fmt.Errorf("%w: %w", ErrJoinFailed, protocol.ErrInvalidIdentity)
	}

	a.identity = id
	return id, nil
}

// Run pumps frames until the participant leaves, the connection fails or ctx
// is done. A connection failure sends an exit action so the team frees the
// slot. The connection is closed on return.
func (a *Actor) Run(ctx context.Context, team int, sub *bus.Subscription[protocol.Message], actions chan<- game.Action) error {
	a.team = team
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	finish := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
			// Unblocks the reader
			a.conn.Close()
		})
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		finish(a.forward(runCtx, sub))
	}()
	go func() {
		defer wg.Done()
		finish(a.read(runCtx, actions))
	}()
	wg.Wait()
	sub.Close()

	switch {
	case firstErr == nil, errors.Is(firstErr, errExited):
		return nil
	case ctx.Err() != nil:
		return nil
	}

	log.Printf("🔌 %s (team %d) disconnected: %v", a.identity, team, firstErr)
	exit := game.Action{Kind: game.ActionExit, Identity: a.identity}
	select {
	case actions <- exit:
	case <-ctx.Done():
	}
	return firstErr
}

// forward writes every team broadcast except echoes of this participant's
// own input, and stops once the team announces this participant left
func (a *Actor) forward(ctx context.Context, sub *bus.Subscription[protocol.Message]) error {
	for {
		msg, err := sub.Recv(ctx)
		if err != nil {
			if errors.Is(err, bus.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		switch m := msg.(type) {
		case protocol.ParticipantLeft:
			if m.Identity == a.identity {
				return errExited
			}
		case protocol.ParticipantEvent:
			if m.Identity == a.identity {
				continue
			}
		case protocol.PositionUpdate:
			if m.Identity == a.identity {
				continue
			}
		}

		if err := a.write(msg); err != nil {
			return err
		}
	}
}

func (a *Actor) write(msg protocol.Message) error {
	if a.writeTimeout > 0 {
		if err := a.conn.SetWriteDeadline(time.Now().Add(a.writeTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	return protocol.WriteMessage(a.conn, msg)
}

// read turns client frames into team actions
func (a *Actor) read(ctx context.Context, actions chan<- game.Action) error {
	for {
		msg, err := protocol.ReadMessage(a.reader)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("connection closed: %w", err)
			}
			return fmt.Errorf("read frame: %w", err)
		}

		action, ok := a.translate(msg)
		if !ok {
			log.Printf("⚠️ %s sent unexpected %s frame, ignoring", a.identity, msg.Tag())
			continue
		}

		select {
		case actions <- action:
		case <-ctx.Done():
			return nil
		}

		if action.Kind == game.ActionExit {
			return errExited
		}
	}
}

// translate maps a client frame to an action carrying the actor's identity,
// whatever identity the frame claims
func (a *Actor) translate(msg protocol.Message) (game.Action, bool) {
	switch m := msg.(type) {
	case protocol.PositionUpdate:
		return game.Action{Kind: game.ActionMove, Identity: a.identity, X: m.X, Y: m.Y}, true
	case protocol.ParticipantEvent:
		switch m.Event {
		case protocol.EventFire:
			return game.Action{Kind: game.ActionFire, Identity: a.identity}, true
		case protocol.EventExit:
			return game.Action{Kind: game.ActionExit, Identity: a.identity}, true
		}
	}
	return game.Action{}, false
}
