package game

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"twin-siege/internal/game/spatial"
	"twin-siege/internal/protocol"
)

// =============================================================================
// BENCHMARK SUITE: TICK HOT PATH
// Run with: go test -bench=. -benchmem ./internal/game/...
// =============================================================================

// -----------------------------------------------------------------------------
// TEAM STEP BENCHMARKS
// -----------------------------------------------------------------------------

func BenchmarkStep_10Projectiles(b *testing.B)   { benchmarkStep(b, 10) }
func BenchmarkStep_100Projectiles(b *testing.B)  { benchmarkStep(b, 100) }
func BenchmarkStep_500Projectiles(b *testing.B)  { benchmarkStep(b, 500) }
func BenchmarkStep_2000Projectiles(b *testing.B) { benchmarkStep(b, 2000) }

// benchmarkStep fills both queues with n projectiles spread across the field.
// The field is tall enough that nothing arrives or meets during the run.
func benchmarkStep(b *testing.B, n int) {
	cfg := scenarioConfig()
	cfg.Height = 1 << 30
	cfg.FireCooldown = 0
	cfg.MoveCooldown = 0
	team, _ := newMatch(b, cfg, 8)
	id := mustJoin(b, team, "bench")

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < n; i++ {
		x := uint32(rng.Intn(int(cfg.Width)))
		team.Apply(Action{Kind: ActionMove, Identity: id, X: x})
		team.Apply(Action{Kind: ActionFire, Identity: id})
		team.HandleTransfer(Transfer{ID: benchID(i), X: uint32(rng.Intn(int(cfg.Width)))})
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		team.Step()
	}
}

func benchID(i int) protocol.ProjectileID {
	id, _ := protocol.NewProjectileID(fmt.Sprintf("b%07d", i))
	return id
}

// -----------------------------------------------------------------------------
// COLLISION BENCHMARKS
// -----------------------------------------------------------------------------

func BenchmarkFindCollisions_100(b *testing.B)  { benchmarkFindCollisions(b, 100) }
func BenchmarkFindCollisions_1000(b *testing.B) { benchmarkFindCollisions(b, 1000) }

func benchmarkFindCollisions(b *testing.B, n int) {
	rng := rand.New(rand.NewSource(1))
	out := make([]*Projectile, n)
	in := make([]*Projectile, n)
	for i := 0; i < n; i++ {
		out[i] = &Projectile{ID: benchID(i), X: uint32(rng.Intn(800)), Y: uint32(rng.Intn(600)), Radius: 10}
		in[i] = &Projectile{ID: benchID(n + i), X: uint32(rng.Intn(800)), Y: uint32(rng.Intn(600)), Radius: 10}
	}
	broad := spatial.NewSweepAndPrune(2 * n)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		findCollisions(broad, out, in)
	}
}

// -----------------------------------------------------------------------------
// SNAPSHOT BENCHMARKS
// -----------------------------------------------------------------------------

func BenchmarkPublishSnapshot_50Participants(b *testing.B) {
	team, _ := newMatch(b, scenarioConfig(), 8)
	for i := 0; i < 50; i++ {
		mustJoin(b, team, fmt.Sprintf("p%02d", i))
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		team.mu.Lock()
		team.publishSnapshotLocked()
		team.mu.Unlock()
	}
}

// -----------------------------------------------------------------------------
// ACTION BENCHMARKS
// -----------------------------------------------------------------------------

func BenchmarkApplyMove(b *testing.B) {
	clock := newFakeClock()
	team, _ := newMatch(b, scenarioConfig(), 8, WithClock(clock.Now))
	id := mustJoin(b, team, "mover")

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		clock.Advance(time.Second)
		team.Apply(Action{Kind: ActionMove, Identity: id, X: uint32(i % 800)})
	}
}
