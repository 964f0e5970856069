package game

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"cyber-defense/internal/config"
)

// EnemySnapshot is an immutable copy of enemy state for rendering
// Uses value types (not pointers) to ensure immutability
type EnemySnapshot struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Health    float64   `json:"health"`
	MaxHealth float64   `json:"maxHealth"`
	Size      float64   `json:"size"`
	Color     string    `json:"color"`
	Type      EnemyType `json:"type"`
}

// ParticleSnapshot is an immutable particle for rendering
type ParticleSnapshot struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Size  float64 `json:"size"`
	Color string  `json:"color"`
	Alpha float64 `json:"alpha"`
	Kind  string  `json:"kind"`
	Glow  bool    `json:"glow"`
}

// FlashSnapshot is an immutable impact flash
type FlashSnapshot struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Radius    float64 `json:"radius"`
	Color     string  `json:"color"`
	Intensity float64 `json:"intensity"`
}

// ShakeSnapshot captures screen shake state
type ShakeSnapshot struct {
	OffsetX   float64 `json:"offsetX"`
	OffsetY   float64 `json:"offsetY"`
	Intensity float64 `json:"intensity"`
}

// EventSnapshot is an event raised during the snapshot's frame.
type EventSnapshot struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// BaseSnapshot is the defender's state.
type BaseSnapshot struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Radius   float64 `json:"radius"`
	Range    float64 `json:"range"`
	Lives    int     `json:"lives"`
	MaxLives int     `json:"maxLives"`
}

// GameSnapshot is a complete immutable game state for rendering
// All slices are pre-allocated and capped to prevent unbounded growth
type GameSnapshot struct {
	Sequence  uint64 `json:"sequence"`  // Monotonic sequence for ordering
	Timestamp int64  `json:"timestamp"` // Unix millis when created
	Frame     uint64 `json:"frame"`

	Base        BaseSnapshot   `json:"base"`
	Wave        int            `json:"wave"`
	WaveName    string         `json:"waveName"`
	WaveSpawned int            `json:"waveSpawned"`
	WaveTotal   int            `json:"waveTotal"`
	Score       int            `json:"score"`
	Gold        int            `json:"gold"`
	Kills       int            `json:"kills"`
	Streak      int            `json:"streak"`
	Level       int            `json:"level"`
	XP          int            `json:"xp"`
	XPToNext    int            `json:"xpToNext"`
	GameOver    bool           `json:"gameOver"`
	Effects     UpgradeEffects `json:"effects"`

	// Pre-allocated capped slices (never grows beyond limits)
	Enemies     []EnemySnapshot      `json:"enemies"`
	Projectiles []ProjectileSnapshot `json:"projectiles"`
	Particles   []ParticleSnapshot   `json:"particles"`
	Flashes     []FlashSnapshot      `json:"flashes"`
	Events      []EventSnapshot      `json:"events"`
	Shake       ShakeSnapshot        `json:"shake"`

	Stats FrameStats `json:"stats"`
}

// SnapshotPool pre-allocates snapshots to avoid GC pressure
// Uses triple buffering for lock-free producer/consumer
type SnapshotPool struct {
	snapshots [3]GameSnapshot // Triple buffer
	limits    config.ResourceLimits
	writeIdx  uint32 // atomic - producer index
	readIdx   uint32 // atomic - consumer index
	sequence  uint64 // atomic - monotonic sequence
}

// NewSnapshotPool creates a pool with pre-allocated slices
func NewSnapshotPool(limits config.ResourceLimits) *SnapshotPool {
	pool := &SnapshotPool{limits: limits}

	for i := 0; i < 3; i++ {
		pool.snapshots[i] = GameSnapshot{
			Enemies:     make([]EnemySnapshot, 0, limits.MaxSnapshotEnemies),
			Projectiles: make([]ProjectileSnapshot, 0, limits.MaxProjectiles),
			Particles:   make([]ParticleSnapshot, 0, limits.MaxParticles),
			Flashes:     make([]FlashSnapshot, 0, maxFlashes),
			Events:      make([]EventSnapshot, 0, limits.MaxSnapshotEvents),
		}
	}

	return pool
}

// AcquireWrite gets the next write slot (producer only, called from the
// simulation step). Slices are reset but keep their capacity.
func (p *SnapshotPool) AcquireWrite() *GameSnapshot {
	idx := atomic.AddUint32(&p.writeIdx, 1) % 3
	snap := &p.snapshots[idx]

	snap.Enemies = snap.Enemies[:0]
	snap.Projectiles = snap.Projectiles[:0]
	snap.Particles = snap.Particles[:0]
	snap.Flashes = snap.Flashes[:0]
	snap.Events = snap.Events[:0]
	snap.Shake = ShakeSnapshot{}
	snap.GameOver = false

	snap.Sequence = atomic.AddUint64(&p.sequence, 1)
	snap.Timestamp = time.Now().UnixMilli()

	return snap
}

// PublishWrite marks write complete and advances read pointer
// Called after snapshot is fully populated
func (p *SnapshotPool) PublishWrite() {
	atomic.StoreUint32(&p.readIdx, atomic.LoadUint32(&p.writeIdx))
}

// AcquireRead gets the latest complete snapshot (consumer only).
// Before the first publish it returns an empty snapshot.
func (p *SnapshotPool) AcquireRead() *GameSnapshot {
	idx := atomic.LoadUint32(&p.readIdx) % 3
	return &p.snapshots[idx]
}

// GetLimits returns the resource limits
func (p *SnapshotPool) GetLimits() config.ResourceLimits {
	return p.limits
}
