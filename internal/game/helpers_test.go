package game

import (
	"testing"

	"cyber-defense/internal/config"
	"cyber-defense/internal/game/spatial"
)

// seqRoller returns a fixed sequence of rolls, cycling when exhausted.
type seqRoller struct {
	vals  []float64
	i     int
	calls int
}

func (r *seqRoller) Roll() float64 {
	r.calls++
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v
}

// noCrit never rolls a critical.
func noCrit() *seqRoller { return &seqRoller{vals: []float64{0.999}} }

// testWorld wires the combat services without an engine.
type testWorld struct {
	enemies     *EnemyManager
	grid        *spatial.SpatialGrid
	projectiles *ProjectileManager
	hits        []HitEvent
}

func newTestWorld(t testing.TB, proj config.ProjectileConfig, limits config.ResourceLimits, roller Roller) *testWorld {
	t.Helper()

	w := &testWorld{
		enemies: NewEnemyManager(config.DefaultEnemyStats(), limits.MaxEnemies),
		grid:    spatial.NewSpatialGrid(800, 600, 80, limits.MaxEnemies),
	}
	w.projectiles = NewProjectileManager(proj, limits, w.enemies, w.grid, roller)
	w.projectiles.SetHitHandler(func(h HitEvent) {
		w.hits = append(w.hits, h)
	})
	return w
}

func (w *testWorld) rebuild() {
	w.grid.Clear()
	w.enemies.ForEach(func(idx uint32, e *Enemy) {
		w.grid.Insert(idx, e.X, e.Y)
	})
}

func (w *testWorld) spawn(t testing.TB, et EnemyType, x, y float64) EnemyRef {
	t.Helper()
	ref, ok := w.enemies.Spawn(et, x, y, 1, 1)
	if !ok {
		t.Fatalf("Failed to spawn %s at (%.0f, %.0f)", et, x, y)
	}
	w.rebuild()
	return ref
}

// step runs n frames at 60 FPS, rebuilding the grid like the engine does.
func (w *testWorld) step(n int) {
	for i := 0; i < n; i++ {
		w.rebuild()
		w.projectiles.Update(1.0 / 60)
	}
}

func testEngineConfig(seed int64) EngineConfig {
	cfg := DefaultEngineConfig()
	cfg.Simulation.Seed = seed
	return cfg
}

func approx(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
