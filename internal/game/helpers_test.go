package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"twin-siege/internal/bus"
	"twin-siege/internal/protocol"
)

// fakeClock is a manually advanced clock for cooldown tests
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// scenarioConfig is the reference match: 800x600 field, step 10, radius 10
func scenarioConfig() Config {
	return Config{
		Width:        800,
		Height:       600,
		Step:         10,
		Radius:       10,
		EndScore:     5,
		FireCooldown: 400 * time.Millisecond,
		MoveCooldown: 50 * time.Millisecond,
		TickInterval: 100 * time.Millisecond,
	}
}

// newMatch builds two cross-linked teams sharing one id registry
func newMatch(t testing.TB, cfg Config, mailbox int, opts ...Option) (*Team, *Team) {
	t.Helper()
	ids := NewIDRegistry()
	linkA, linkB := NewRelay(mailbox)

	cfgA, cfgB := cfg, cfg
	cfgA.Index, cfgB.Index = 0, 1

	a := NewTeam(cfgA, ids, bus.New[protocol.Message](1024, nil), linkA, opts...)
	b := NewTeam(cfgB, ids, bus.New[protocol.Message](1024, nil), linkB, opts...)
	return a, b
}

// drain reads everything currently buffered on sub
func drain(sub *bus.Subscription[protocol.Message]) []protocol.Message {
	var out []protocol.Message
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		msg, err := sub.Recv(ctx)
		cancel()
		if err != nil {
			return out
		}
		out = append(out, msg)
	}
}

// countTag returns how many messages carry tag
func countTag(msgs []protocol.Message, tag protocol.Tag) int {
	n := 0
	for _, m := range msgs {
		if m.Tag() == tag {
			n++
		}
	}
	return n
}

func mustJoin(t testing.TB, team *Team, name string) protocol.Identity {
	t.Helper()
	id := protocol.MustIdentity(name)
	if err := team.Join(id); err != nil {
		t.Fatalf("Join(%s) failed: %v", name, err)
	}
	return id
}
