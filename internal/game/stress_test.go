package game

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// STRESS TESTS
// Run with: go test -v -run=TestStress -timeout=60s ./internal/game/...
// =============================================================================

// TestStress_ScatterLoad maxes out range so every volley is a fan of
// scatter shots, then checks the caps hold every frame.
func TestStress_ScatterLoad(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	cfg := testEngineConfig(11)
	cfg.Base.InitialGold = 1_000_000
	cfg.Base.InitialLives = 1_000_000
	cfg.Projectile.Damage = 100
	e := NewEngine(cfg)

	for _, id := range []string{"range_extension", "rapid_fire"} {
		for {
			if _, err := e.PurchaseUpgrade(id, "stress"); err != nil {
				break
			}
		}
	}

	limits := e.GetLimits()
	var peakProjectiles, peakParticles, cheap int
	var maxFrame time.Duration

	for i := 0; i < 60*120; i++ {
		start := time.Now()
		e.Step(frameDT)
		if d := time.Since(start); d > maxFrame {
			maxFrame = d
		}

		st := e.Stats()
		if st.Projectiles > limits.MaxProjectiles {
			t.Fatalf("Frame %d: %d projectiles exceeds cap %d", st.Frame, st.Projectiles, limits.MaxProjectiles)
		}
		if st.Particles > limits.MaxParticles {
			t.Fatalf("Frame %d: %d particles exceeds cap %d", st.Frame, st.Particles, limits.MaxParticles)
		}
		if st.ProjectilePool.Total > limits.ProjectilePoolCap {
			t.Fatalf("Frame %d: projectile pool grew to %d", st.Frame, st.ProjectilePool.Total)
		}
		if st.FullUpdates > limits.BatchSize {
			t.Fatalf("Frame %d: %d full updates exceeds batch %d", st.Frame, st.FullUpdates, limits.BatchSize)
		}
		peakProjectiles = max(peakProjectiles, st.Projectiles)
		peakParticles = max(peakParticles, st.Particles)
		cheap += st.CheapUpdates
	}

	gs := e.GetState()
	t.Logf("Scatter Load Results:")
	t.Logf("  Wave: %d, Kills: %d", gs.Wave, gs.Kills)
	t.Logf("  Peak Projectiles: %d, Peak Particles: %d", peakProjectiles, peakParticles)
	t.Logf("  Cheap Updates: %d, Rejected: %d", cheap, e.Stats().Rejected)
	t.Logf("  Max Frame Time: %v", maxFrame)

	if gs.Kills == 0 {
		t.Error("Expected kills under full scatter fire")
	}
	if maxFrame > 50*time.Millisecond {
		t.Errorf("Max frame time %v exceeds 50ms", maxFrame)
	}
}

// TestStress_ConcurrentReaders runs the real frame loop while API-style
// readers and buyers hammer the engine.
func TestStress_ConcurrentReaders(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	cfg := testEngineConfig(5)
	cfg.Simulation.TickRate = 240
	cfg.Base.InitialGold = 5000
	e := NewEngine(cfg)
	e.Start()
	defer e.Stop()

	var (
		wg        sync.WaitGroup
		reads     atomic.Int64
		purchases atomic.Int64
		stop      = make(chan struct{})
	)

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var snap GameSnapshot
			var lastSeq uint64
			for {
				select {
				case <-stop:
					return
				default:
				}
				e.CopySnapshot(&snap)
				if snap.Sequence < lastSeq {
					t.Errorf("Snapshot sequence went backwards: %d after %d", snap.Sequence, lastSeq)
					return
				}
				lastSeq = snap.Sequence
				_ = e.GetState()
				_ = e.Stats()
				_ = e.Leaderboard(5)
				reads.Add(1)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		ids := []string{"firepower_boost", "rapid_fire", "armor_upgrade", "life_steal"}
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			case <-time.After(5 * time.Millisecond):
			}
			if _, err := e.PurchaseUpgrade(ids[i%len(ids)], "stress"); err == nil {
				purchases.Add(1)
			}
		}
	}()

	time.Sleep(2 * time.Second)
	close(stop)
	wg.Wait()

	st := e.GetState()
	t.Logf("Concurrent Results:")
	t.Logf("  Frames: %d, Reads: %d, Purchases: %d", st.Frame, reads.Load(), purchases.Load())

	if st.Frame == 0 || reads.Load() == 0 {
		t.Error("Expected both the loop and the readers to make progress")
	}
	if purchases.Load() == 0 {
		t.Error("Expected at least one purchase to go through")
	}
}
