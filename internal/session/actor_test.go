package session

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"twin-siege/internal/bus"
	"twin-siege/internal/game"
	"twin-siege/internal/protocol"
)

// TestHandshake tests the join frame rules
func TestHandshake(t *testing.T) {
	tests := []struct {
		name    string
		first   []byte
		wantErr bool
	}{
		{"join", protocol.Encode(protocol.Join{Identity: protocol.MustIdentity("alice")}), false},
		{"wrong frame", protocol.Encode(protocol.MatchWon{}), true},
		{"zero identity", protocol.Encode(protocol.Join{}), true},
		{"bad tag", []byte{0xEE}, true},
		{"truncated", []byte{0x02, 'a', 'b'}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, client := net.Pipe()
			defer server.Close()

			go func() {
				client.Write(tt.first)
				client.Close()
			}()

			actor := NewActor(server, time.Second)
			id, err := actor.Handshake(time.Second)
			if tt.wantErr {
				if !errors.Is(err, ErrJoinFailed) {
					t.Errorf("Expected ErrJoinFailed, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Handshake failed: %v", err)
			}
			if id.String() != "alice" || actor.Identity() != id {
				t.Errorf("Expected alice, got %q", id.String())
			}
		})
	}
}

// TestHandshakeTimeout tests that a silent client is dropped
func TestHandshakeTimeout(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	_, err := NewActor(server, time.Second).Handshake(30 * time.Millisecond)
	if !errors.Is(err, ErrJoinFailed) {
		t.Errorf("Expected ErrJoinFailed, got %v", err)
	}
}

// TestActorForwardsAndTranslates tests echo suppression (a teammate's fire
// reaches the client, its own does not), identity stamping and the implicit
// exit on disconnect
func TestActorForwardsAndTranslates(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	alice := protocol.MustIdentity("alice")
	bob := protocol.MustIdentity("bob")

	actor := NewActor(server, time.Second)
	actor.identity = alice

	b := bus.New[protocol.Message](16, nil)
	sub := b.Subscribe()
	actions := make(chan game.Action, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- actor.Run(ctx, 0, sub, actions) }()

	pid, _ := protocol.NewProjectileID("p1")
	b.Publish(protocol.PositionUpdate{Identity: alice, X: 1})
	b.Publish(protocol.ParticipantEvent{Identity: alice, Event: protocol.EventFire})
	b.Publish(protocol.PositionUpdate{Identity: bob, X: 2})
	b.Publish(protocol.ParticipantEvent{Identity: bob, Event: protocol.EventFire})
	b.Publish(protocol.ProjectileCreated{ID: pid, X: 2, Y: 600})

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	msg, err := protocol.ReadMessage(client)
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if pu, ok := msg.(protocol.PositionUpdate); !ok || pu.Identity != bob {
		t.Fatalf("Expected bob's position update first, got %#v", msg)
	}
	msg, err = protocol.ReadMessage(client)
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if ev, ok := msg.(protocol.ParticipantEvent); !ok || ev.Identity != bob || ev.Event != protocol.EventFire {
		t.Fatalf("Expected bob's fire event, got %#v", msg)
	}
	msg, err = protocol.ReadMessage(client)
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if _, ok := msg.(protocol.ProjectileCreated); !ok {
		t.Fatalf("Expected ProjectileCreated, got %#v", msg)
	}

	// The frame claims bob, the actor stamps alice
	if err := protocol.WriteMessage(client, protocol.ParticipantEvent{Identity: bob, Event: protocol.EventFire}); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	if err := protocol.WriteMessage(client, protocol.PositionUpdate{Identity: bob, X: 77, Y: 600}); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	fire := <-actions
	if fire.Kind != game.ActionFire || fire.Identity != alice {
		t.Errorf("Expected fire from alice, got %+v", fire)
	}
	move := <-actions
	if move.Kind != game.ActionMove || move.Identity != alice || move.X != 77 {
		t.Errorf("Expected move to 77 from alice, got %+v", move)
	}

	client.Close()

	select {
	case exit := <-actions:
		if exit.Kind != game.ActionExit || exit.Identity != alice {
			t.Errorf("Expected implicit exit for alice, got %+v", exit)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("No implicit exit after disconnect")
	}

	if err := <-done; err == nil {
		t.Error("Expected Run to report the connection failure")
	}
}

// TestActorExplicitExit tests that an exit frame ends the actor cleanly
func TestActorExplicitExit(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	actor := NewActor(server, time.Second)
	actor.identity = protocol.MustIdentity("carol")

	b := bus.New[protocol.Message](16, nil)
	actions := make(chan game.Action, 4)

	done := make(chan error, 1)
	go func() { done <- actor.Run(context.Background(), 1, b.Subscribe(), actions) }()

	if err := protocol.WriteMessage(client, protocol.ParticipantEvent{Event: protocol.EventExit}); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean exit, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Actor did not stop after exit")
	}

	if len(actions) != 1 {
		t.Fatalf("Expected exactly one action, got %d", len(actions))
	}
	if a := <-actions; a.Kind != game.ActionExit {
		t.Errorf("Expected exit action, got %s", a.Kind)
	}
}

// TestActorStopsOnOwnLeave tests the ParticipantLeft self signal
func TestActorStopsOnOwnLeave(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	dave := protocol.MustIdentity("dave")
	actor := NewActor(server, time.Second)
	actor.identity = dave

	b := bus.New[protocol.Message](16, nil)
	sub := b.Subscribe()
	actions := make(chan game.Action, 4)

	done := make(chan error, 1)
	go func() { done <- actor.Run(context.Background(), 0, sub, actions) }()

	b.Publish(protocol.ParticipantLeft{Identity: dave})

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Actor did not stop on its own ParticipantLeft")
	}
	if len(actions) != 0 {
		t.Errorf("Expected no implicit exit, got %d actions", len(actions))
	}
}
