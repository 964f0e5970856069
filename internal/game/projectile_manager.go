package game

import (
	"math"

	"cyber-defense/internal/config"
	"cyber-defense/internal/game/pool"
	"cyber-defense/internal/game/spatial"
)

// HitEvent describes one projectile hit after damage was applied.
type HitEvent struct {
	Enemy     EnemyRef
	EnemyType EnemyType
	X, Y      float64 // enemy position at impact
	Color     string
	Reward    int
	Damage    float64 // rolled damage before rounding
	Dealt     int     // hit points actually removed
	Critical  bool
	Killed    bool
	Mode      ProjectileMode
}

// HitHandler receives every hit inside ProjectileManager.Update.
type HitHandler func(HitEvent)

// ProjectileStats is reported to the performance overlay.
type ProjectileStats struct {
	Active       int        `json:"active"`
	Pool         pool.Stats `json:"pool"`
	Rejected     uint64     `json:"rejected"`
	FullUpdates  int        `json:"fullUpdates"`  // last frame
	CheapUpdates int        `json:"cheapUpdates"` // last frame
}

// ProjectileManager owns the active projectile list and its pool.
//
// Admission control: creation returns nil once MaxProjectiles are in
// flight or the pool hit its cap. Frame budget: only the first BatchSize
// projectiles get the full update each frame, the rest take a straight
// step toward their last known target with no collision.
type ProjectileManager struct {
	pool   *pool.Pool[Projectile]
	active []*Projectile
	dead   []int // indices into active, collected during Update

	enemies *EnemyManager
	grid    *spatial.SpatialGrid
	roller  Roller
	onHit   HitHandler

	cfg       config.ProjectileConfig
	maxActive int
	batchSize int

	rejected     uint64
	fullUpdates  int
	cheapUpdates int
}

// NewProjectileManager creates a manager with a pre-warmed pool.
func NewProjectileManager(cfg config.ProjectileConfig, limits config.ResourceLimits,
	enemies *EnemyManager, grid *spatial.SpatialGrid, roller Roller) *ProjectileManager {

	p := pool.New(func() *Projectile { return &Projectile{} }, resetProjectile, limits.ProjectilePoolCap)
	p.Prewarm(limits.ProjectilePoolSize)

	return &ProjectileManager{
		pool:      p,
		active:    make([]*Projectile, 0, limits.MaxProjectiles),
		dead:      make([]int, 0, limits.MaxProjectiles),
		enemies:   enemies,
		grid:      grid,
		roller:    roller,
		cfg:       cfg,
		maxActive: limits.MaxProjectiles,
		batchSize: limits.BatchSize,
	}
}

// SetHitHandler installs the hit callback.
func (m *ProjectileManager) SetHitHandler(h HitHandler) {
	m.onHit = h
}

// admit takes a projectile from the pool if the cap allows it.
func (m *ProjectileManager) admit() *Projectile {
	if len(m.active) >= m.maxActive {
		m.rejected++
		return nil
	}
	p, h, ok := m.pool.Acquire()
	if !ok {
		m.rejected++
		return nil
	}

	p.handle = h
	p.Active = true
	p.Speed = m.cfg.Speed
	p.Color = m.cfg.Color
	p.Size = m.cfg.Size

	if !p.listed {
		p.listed = true
		m.active = append(m.active, p)
	}
	return p
}

func (m *ProjectileManager) arm(p *Projectile, fx UpgradeEffects) {
	p.Damage = m.cfg.Damage * fx.DamageMultiplier
	p.CritChance = fx.CriticalChance
	p.CritMultiplier = fx.CriticalMultiplier
}

// CreateProjectile fires a tracking projectile at target.
// Returns nil when admission control rejects it or the target is gone.
func (m *ProjectileManager) CreateProjectile(x, y float64, target EnemyRef, fx UpgradeEffects) *Projectile {
	e, ok := m.enemies.Resolve(target)
	if !ok {
		return nil
	}
	p := m.admit()
	if p == nil {
		return nil
	}

	p.X, p.Y = x, y
	p.Mode = ModeTracking
	p.Target = target
	p.LastTargetX, p.LastTargetY = e.X, e.Y
	m.arm(p, fx)
	return p
}

// CreateScatterProjectile fires a projectile along angle that expires
// after maxRange pixels.
func (m *ProjectileManager) CreateScatterProjectile(x, y, angle, maxRange float64, fx UpgradeEffects) *Projectile {
	p := m.admit()
	if p == nil {
		return nil
	}

	p.X, p.Y = x, y
	p.Mode = ModeScatter
	p.Angle = angle
	p.MaxRange = maxRange
	p.LastTargetX = x + math.Cos(angle)*maxRange
	p.LastTargetY = y + math.Sin(angle)*maxRange
	m.arm(p, fx)
	return p
}

// Update advances every active projectile by dt seconds, then recycles the
// ones that died this frame.
func (m *ProjectileManager) Update(dt float64) {
	m.dead = m.dead[:0]
	m.fullUpdates = 0
	m.cheapUpdates = 0

	for i, p := range m.active {
		if p.Active {
			if m.fullUpdates < m.batchSize {
				m.updateFull(p, dt)
				m.fullUpdates++
			} else {
				m.updateCheap(p, dt)
				m.cheapUpdates++
			}
		}
		if !p.Active {
			m.dead = append(m.dead, i)
		}
	}

	m.recycle()
}

// recycle removes dead projectiles back to front so earlier indices stay
// valid while the list shrinks.
func (m *ProjectileManager) recycle() {
	for j := len(m.dead) - 1; j >= 0; j-- {
		i := m.dead[j]
		p := m.active[i]
		m.pool.Release(p.handle)
		copy(m.active[i:], m.active[i+1:])
		m.active[len(m.active)-1] = nil
		m.active = m.active[:len(m.active)-1]
	}
	m.dead = m.dead[:0]
}

func (m *ProjectileManager) updateFull(p *Projectile, dt float64) {
	switch p.Mode {
	case ModeTracking:
		e, ok := m.enemies.Resolve(p.Target)
		if !ok {
			p.Active = false
			return
		}
		p.LastTargetX, p.LastTargetY = e.X, e.Y
		p.pushTrail()

		if math.Hypot(e.X-p.X, e.Y-p.Y) < m.cfg.HitRadius {
			m.hit(p, p.Target.Index)
			return
		}
		p.moveToward(e.X, e.Y, p.Speed*dt)

	case ModeScatter:
		p.pushTrail()
		step := p.Speed * dt
		p.X += math.Cos(p.Angle) * step
		p.Y += math.Sin(p.Angle) * step
		p.Traveled += step
		if p.Traveled >= p.MaxRange {
			p.Active = false
			return
		}

		r := m.cfg.CollisionRadius
		for _, idx := range m.grid.QueryRadius(p.X, p.Y, r) {
			e := m.enemies.At(idx)
			if e == nil {
				continue
			}
			if math.Hypot(e.X-p.X, e.Y-p.Y) <= r {
				m.hit(p, idx)
				return
			}
		}
	}
}

// updateCheap moves without collision checks.
func (m *ProjectileManager) updateCheap(p *Projectile, dt float64) {
	step := p.Speed * dt

	if p.Mode == ModeTracking {
		if _, ok := m.enemies.Resolve(p.Target); !ok {
			p.Active = false
			return
		}
		if math.Hypot(p.LastTargetX-p.X, p.LastTargetY-p.Y) > m.cfg.HitRadius {
			p.moveToward(p.LastTargetX, p.LastTargetY, step)
		}
		return
	}

	p.moveToward(p.LastTargetX, p.LastTargetY, step)
	p.Traveled += step
	if p.Traveled >= p.MaxRange {
		p.Active = false
	}
}

func (m *ProjectileManager) hit(p *Projectile, idx uint32) {
	e := m.enemies.At(idx)
	if e == nil {
		p.Active = false
		return
	}

	ev := HitEvent{
		Enemy:     m.enemies.RefOf(idx),
		EnemyType: e.Type,
		X:         e.X,
		Y:         e.Y,
		Color:     e.Color,
		Reward:    e.Reward,
		Mode:      p.Mode,
	}

	res := RollDamage(p.Damage, p.CritChance, p.CritMultiplier, m.roller)
	ev.Damage = res.Damage
	ev.Critical = res.Critical
	ev.Dealt, ev.Killed = m.enemies.ApplyDamage(idx, res.Damage)

	p.Active = false
	if m.onHit != nil {
		m.onHit(ev)
	}
}

// Count returns the number of projectiles in flight.
func (m *ProjectileManager) Count() int { return len(m.active) }

// ForEach calls fn for every active projectile.
func (m *ProjectileManager) ForEach(fn func(p *Projectile)) {
	for _, p := range m.active {
		if p.Active {
			fn(p)
		}
	}
}

// Clear returns every projectile to the pool.
func (m *ProjectileManager) Clear() {
	for _, p := range m.active {
		m.pool.Release(p.handle)
	}
	for i := range m.active {
		m.active[i] = nil
	}
	m.active = m.active[:0]
}

// Stats returns counters for the performance overlay.
func (m *ProjectileManager) Stats() ProjectileStats {
	return ProjectileStats{
		Active:       len(m.active),
		Pool:         m.pool.Stats(),
		Rejected:     m.rejected,
		FullUpdates:  m.fullUpdates,
		CheapUpdates: m.cheapUpdates,
	}
}
