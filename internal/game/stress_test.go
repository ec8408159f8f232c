package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"twin-siege/internal/protocol"
)

// =============================================================================
// STRESS TEST SUITE: CONCURRENT LOAD ON BOTH TEAMS
// Run with: go test -v -run=TestStress -timeout=60s ./internal/game/...
// =============================================================================

// StressTestConfig configures stress test parameters
type StressTestConfig struct {
	Duration        time.Duration
	TickInterval    time.Duration
	PerTeam         int // Participants on each side
	Mailbox         int // Relay capacity per direction
	ActionsInterval time.Duration
	FireCooldown    time.Duration
	Settle          bool // Wait for every projectile to resolve before stopping
}

// DefaultStressConfig keeps the match running for the whole duration
func DefaultStressConfig() StressTestConfig {
	return StressTestConfig{
		Duration:        500 * time.Millisecond,
		TickInterval:    time.Millisecond,
		PerTeam:         10,
		Mailbox:         8,
		ActionsInterval: 200 * time.Microsecond,
		FireCooldown:    5 * time.Millisecond,
	}
}

// StressTestResult contains what the run observed
type StressTestResult struct {
	ActionsSent   int64
	SnapshotReads int64
	Scores        [2]int
	HitsTaken     [2]int
	Errors        []error
}

// -----------------------------------------------------------------------------
// STRESS TEST: CONCURRENT ACTIONS
// -----------------------------------------------------------------------------

func TestStress_ConcurrentActions(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	res := runStressTest(t, DefaultStressConfig())

	t.Logf("Concurrent Actions Test:")
	t.Logf("  Actions Sent:   %d", res.ActionsSent)
	t.Logf("  Snapshot Reads: %d", res.SnapshotReads)
	t.Logf("  Scores:         %v", res.Scores)
	t.Logf("  Hits Taken:     %v", res.HitsTaken)

	for _, err := range res.Errors {
		t.Error(err)
	}
	// A point is only scored after the peer reported the hit
	if res.Scores[0] > res.HitsTaken[1] || res.Scores[1] > res.HitsTaken[0] {
		t.Errorf("Scores %v exceed hits taken %v", res.Scores, res.HitsTaken)
	}
}

// -----------------------------------------------------------------------------
// STRESS TEST: SCORE CONSERVATION
// -----------------------------------------------------------------------------

// TestStress_ScoreConservation stops the load, lets every projectile land or
// collide, and checks that each score equals the hits the other side took
func TestStress_ScoreConservation(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	cfg := DefaultStressConfig()
	cfg.Settle = true

	res := runStressTest(t, cfg)
	for _, err := range res.Errors {
		t.Error(err)
	}
	if res.Scores[0] != res.HitsTaken[1] || res.Scores[1] != res.HitsTaken[0] {
		t.Errorf("Scores %v do not match hits taken %v", res.Scores, res.HitsTaken)
	}
	if res.HitsTaken[0]+res.HitsTaken[1] == 0 {
		t.Error("Expected some base hits")
	}
}

// -----------------------------------------------------------------------------
// STRESS TEST: RELAY BACKPRESSURE
// -----------------------------------------------------------------------------

// TestStress_RelayBackpressure floods both directions through a one-slot relay
// and checks that neither team wedges
func TestStress_RelayBackpressure(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	cfg := DefaultStressConfig()
	cfg.Mailbox = 1
	cfg.FireCooldown = 0
	cfg.ActionsInterval = 50 * time.Microsecond

	res := runStressTest(t, cfg)
	for _, err := range res.Errors {
		t.Error(err)
	}
	if res.HitsTaken[0]+res.HitsTaken[1] == 0 {
		t.Error("Expected projectiles to cross the relay")
	}
}

// runStressTest runs two teams on real tickers while workers hammer them with
// actions and a reader polls snapshots, then cancels and checks invariants
func runStressTest(t *testing.T, cfg StressTestConfig) StressTestResult {
	t.Helper()

	gameCfg := Config{
		Width:        200,
		Height:       100,
		Step:         10,
		Radius:       2,
		EndScore:     1 << 30,
		FireCooldown: cfg.FireCooldown,
		MoveCooldown: cfg.FireCooldown,
		TickInterval: cfg.TickInterval,
	}
	a, b := newMatch(t, gameCfg, cfg.Mailbox)
	teams := [2]*Team{a, b}

	var roster [2][]protocol.Identity
	for i, team := range teams {
		for p := 0; p < cfg.PerTeam; p++ {
			roster[i] = append(roster[i], mustJoin(t, team, fmt.Sprintf("t%dp%02d", i, p)))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	workCtx, stopWork := context.WithCancel(ctx)
	defer stopWork()

	var (
		res    StressTestResult
		errMu  sync.Mutex
		fail   = func(err error) { errMu.Lock(); res.Errors = append(res.Errors, err); errMu.Unlock() }
		sent   atomic.Int64
		reads  atomic.Int64
		wg     sync.WaitGroup
		runs   sync.WaitGroup
		inputs [2]chan Action
	)

	for i, team := range teams {
		inputs[i] = make(chan Action, 64)
		runs.Add(1)
		go func(team *Team, actions chan Action) {
			defer runs.Done()
			if _, err := team.Run(ctx, actions); err != nil && !errors.Is(err, context.Canceled) {
				fail(fmt.Errorf("team %d: %w", team.Index(), err))
			}
		}(team, inputs[i])
	}

	for i := range teams {
		wg.Add(1)
		go func(team int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(team) + 1))
			ticker := time.NewTicker(cfg.ActionsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-workCtx.Done():
					return
				case <-ticker.C:
				}
				id := roster[team][rng.Intn(len(roster[team]))]
				action := Action{Kind: ActionFire, Identity: id}
				if rng.Intn(3) == 0 {
					action = Action{Kind: ActionMove, Identity: id, X: uint32(rng.Intn(int(gameCfg.Width) + 50))}
				}
				select {
				case inputs[team] <- action:
					sent.Add(1)
				case <-workCtx.Done():
					return
				}
			}
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for workCtx.Err() == nil {
			for _, team := range teams {
				snap := team.Snapshot()
				if err := checkSnapshot(snap, gameCfg); err != nil {
					fail(err)
					return
				}
				reads.Add(1)
			}
			time.Sleep(100 * time.Microsecond)
		}
	}()

	time.Sleep(cfg.Duration)
	stopWork()
	wg.Wait()

	if cfg.Settle && !settled(teams, 2*time.Second) {
		fail(errors.New("projectiles still in flight after the load stopped"))
	}
	cancel()

	done := make(chan struct{})
	go func() {
		runs.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		fail(errors.New("teams did not stop after cancel"))
		return res
	}

	res.ActionsSent = sent.Load()
	res.SnapshotReads = reads.Load()
	for i, team := range teams {
		res.Scores[i] = team.Score()
		res.HitsTaken[i] = team.HitsTaken()
	}
	return res
}

// settled waits until, for a run of consecutive polls, neither team tracks a
// projectile and every base hit has been credited to the other side. The run
// covers projectiles still sitting in a relay mailbox.
func settled(teams [2]*Team, timeout time.Duration) bool {
	const quietPolls = 20
	deadline := time.Now().Add(timeout)
	streak := 0
	for time.Now().Before(deadline) {
		quiet := teams[0].Score() == teams[1].HitsTaken() && teams[1].Score() == teams[0].HitsTaken()
		for _, team := range teams {
			snap := team.Snapshot()
			if len(snap.Outgoing)+len(snap.Incoming) > 0 {
				quiet = false
			}
		}
		if !quiet {
			streak = 0
		} else if streak++; streak >= quietPolls {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

// checkSnapshot verifies that positions are in bounds and no projectile is
// in both queues of one team
func checkSnapshot(snap *TeamSnapshot, cfg Config) error {
	seen := make(map[string]struct{}, len(snap.Outgoing)+len(snap.Incoming))
	for _, list := range [][]ProjectileSnapshot{snap.Outgoing, snap.Incoming} {
		for _, p := range list {
			if _, dup := seen[p.ID]; dup {
				return fmt.Errorf("team %d: projectile %s appears twice", snap.Index, p.ID)
			}
			seen[p.ID] = struct{}{}
			if p.Y > cfg.Height {
				return fmt.Errorf("team %d: projectile %s out of bounds at y=%d", snap.Index, p.ID, p.Y)
			}
		}
	}
	for _, p := range snap.Participants {
		if p.X > cfg.Width {
			return fmt.Errorf("team %d: participant %s beyond width at x=%d", snap.Index, p.Identity, p.X)
		}
	}
	return nil
}
