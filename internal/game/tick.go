package game

import (
	"context"
	"sync"
	"time"

	"twin-siege/internal/metrics"
	"twin-siege/internal/protocol"
)

// Step advances the physics by one tick and returns the relay messages it
// produced. Nothing is sent here; the caller delivers the outbox after the
// lock is released.
func (t *Team) Step() Outbox {
	start := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	var out Outbox
	if t.outcome.state.Terminal() {
		return out
	}
	t.tick++

	// 1. Outgoing climb toward the far edge
	for _, p := range t.outgoing {
		p.advanceOutgoing(t.cfg.Step)
	}

	// 2. Collisions: collect every pair first, then remove all members
	hitOut, hitIn := findCollisions(t.broad, t.outgoing, t.incoming)
	if hitOut != nil {
		collision := CollisionPayload{}
		for _, p := range t.outgoing {
			if _, hit := hitOut[p.ID]; hit {
				t.bus.Publish(protocol.ProjectileDestroyed{ID: p.ID})
				collision.Outgoing = append(collision.Outgoing, p.ID.String())
			}
		}
		for _, p := range t.incoming {
			if _, hit := hitIn[p.ID]; hit {
				t.bus.Publish(protocol.ThreatDestroyed{ID: p.ID})
				collision.Incoming = append(collision.Incoming, p.ID.String())
			}
		}
		t.outgoing = removeByID(t.outgoing, hitOut)
		t.incoming = removeByID(t.incoming, hitIn)

		metrics.RecordCollisions(t.cfg.Index, len(hitOut)+len(hitIn))
		t.events.Record(EventTypeCollision, t.tick, t.cfg.Index, "", collision)
	}

	// 3. Survivors at the far edge move to the peer
	kept := t.outgoing[:0]
	for _, p := range t.outgoing {
		if !p.transfer {
			kept = append(kept, p)
			continue
		}
		t.bus.Publish(protocol.ProjectileDestroyed{ID: p.ID})
		out.Transfers = append(out.Transfers, Transfer{ID: p.ID, X: p.X})

		metrics.RecordTransfer(t.cfg.Index)
		t.events.Record(EventTypeTransfer, t.tick, t.cfg.Index, "", ProjectilePayload{ID: p.ID.String(), X: p.X})
	}
	clear(t.outgoing[len(kept):])
	t.outgoing = kept

	// 4. Incoming descend; arrivals are base hits credited to the peer
	keptIn := t.incoming[:0]
	for _, p := range t.incoming {
		if !p.advanceIncoming(t.cfg.Step) {
			keptIn = append(keptIn, p)
			continue
		}
		t.hits++
		t.bus.Publish(protocol.ThreatDestroyed{ID: p.ID})
		t.bus.Publish(protocol.BaseHit{})
		out.Notices = append(out.Notices, Notice{Kind: NoticeHit})

		metrics.RecordBaseHit(t.cfg.Index)
		t.events.Record(EventTypeBaseHit, t.tick, t.cfg.Index, "", ProjectilePayload{ID: p.ID.String(), X: p.X, Y: p.Y})
	}
	clear(t.incoming[len(keptIn):])
	t.incoming = keptIn

	t.publishSnapshotLocked()
	metrics.SetProjectiles(t.cfg.Index, len(t.outgoing), len(t.incoming))
	metrics.RecordTick(t.cfg.Index, time.Since(start))
	return out
}

// Run drives the team until it reaches a terminal outcome or ctx is done.
// It owns two goroutines: one applying participant actions and one running
// the ticker and relay. Both serialize through the team mutex.
func (t *Team) Run(ctx context.Context, actions <-chan Action) (Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t.applyLoop(ctx, actions)
	}()

	err := t.tickLoop(ctx)
	cancel()
	wg.Wait()
	return t.Outcome(), err
}

func (t *Team) applyLoop(ctx context.Context, actions <-chan Action) {
	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-actions:
			if !ok {
				return
			}
			// Unknown identities are logged inside Apply; cooldown drops are silent.
			_ = t.Apply(a)
		}
	}
}

func (t *Team) tickLoop(ctx context.Context) error {
	ticker := time.NewTicker(t.cfg.TickInterval)
	defer ticker.Stop()

	var pending Outbox
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			pending.merge(t.Step())
		case tr := <-t.link.Transfers:
			t.HandleTransfer(tr)
		case n := <-t.link.Notices:
			pending.merge(t.HandleNotice(n))
		}

		if err := t.flush(ctx, &pending); err != nil {
			return err
		}
		if t.Outcome().Terminal() {
			return nil
		}
	}
}

// flush delivers pending relay messages. While the peer's mailbox is full it
// keeps draining this team's own mailboxes, so two blocked teams always make
// progress. Once terminal, only outcome notices are still delivered.
func (t *Team) flush(ctx context.Context, pending *Outbox) error {
	blocked := false
	for !pending.Empty() {
		if t.Outcome().Terminal() {
			pending.discardGameplay()
			if pending.Empty() {
				return nil
			}
		}

		var (
			transfers chan<- Transfer
			notices   chan<- Notice
			nextT     Transfer
			nextN     Notice
		)
		if len(pending.Transfers) > 0 {
			transfers, nextT = t.link.sendTransfers, pending.Transfers[0]
		}
		if len(pending.Notices) > 0 {
			notices, nextN = t.link.sendNotices, pending.Notices[0]
		}

		select {
		case transfers <- nextT:
			pending.Transfers = pending.Transfers[1:]
			continue
		case notices <- nextN:
			pending.Notices = pending.Notices[1:]
			continue
		default:
		}

		if !blocked {
			blocked = true
			metrics.RecordRelayBlocked(t.cfg.Index)
		}

		select {
		case transfers <- nextT:
			pending.Transfers = pending.Transfers[1:]
		case notices <- nextN:
			pending.Notices = pending.Notices[1:]
		case tr := <-t.link.Transfers:
			t.HandleTransfer(tr)
		case n := <-t.link.Notices:
			pending.merge(t.HandleNotice(n))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
