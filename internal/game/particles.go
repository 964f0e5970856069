package game

import (
	"math"
	"math/rand"

	"cyber-defense/internal/config"
	"cyber-defense/internal/game/pool"
)

// ParticleKind selects how a particle is drawn.
type ParticleKind uint8

const (
	ParticleDefault ParticleKind = iota
	ParticleExplosion
	ParticleHit
	ParticleDamage
)

func (k ParticleKind) String() string {
	switch k {
	case ParticleExplosion:
		return "explosion"
	case ParticleHit:
		return "hit"
	case ParticleDamage:
		return "damage"
	default:
		return "default"
	}
}

// Particle is a pooled cosmetic particle.
type Particle struct {
	X, Y          float64
	VX, VY        float64 // pixels per second
	Life, MaxLife float64 // seconds
	Size          float64
	Gravity       float64 // pixels per second squared
	Friction      float64 // velocity factor applied per 1/60 s
	Rotation      float64
	RotationSpeed float64
	Color         string
	Kind          ParticleKind
	Glow, Fade    bool
	Active        bool

	handle pool.Handle
}

func resetParticle(p *Particle) {
	*p = Particle{Friction: 1, Color: "#ffffff"}
}

// Alpha returns the draw opacity.
func (p *Particle) Alpha() float64 {
	if !p.Fade || p.MaxLife <= 0 {
		return 1
	}
	return p.Life / p.MaxLife
}

// ParticleSpec is a spawn request. Zero Friction means none.
type ParticleSpec struct {
	VX, VY        float64
	Life          float64
	Color         string
	Size          float64
	Kind          ParticleKind
	Gravity       float64
	Friction      float64
	RotationSpeed float64
	Glow, Fade    bool
}

// ParticleStats is reported to the performance overlay.
type ParticleStats struct {
	Active   int        `json:"active"`
	Pool     pool.Stats `json:"pool"`
	Rejected uint64     `json:"rejected"`
}

// ParticleSystem owns the pooled particles.
// Like projectiles, only the first BatchSize particles get full physics
// each frame; the rest just drift and age so they still expire on time.
type ParticleSystem struct {
	pool      *pool.Pool[Particle]
	active    []*Particle
	max       int
	batchSize int
	rng       *rand.Rand
	rejected  uint64
}

// NewParticleSystem creates a system with a pre-warmed pool.
func NewParticleSystem(limits config.ResourceLimits, rng *rand.Rand) *ParticleSystem {
	p := pool.New(func() *Particle { return &Particle{} }, resetParticle, 0)
	p.Prewarm(limits.ParticlePoolSize)

	return &ParticleSystem{
		pool:      p,
		active:    make([]*Particle, 0, limits.MaxParticles),
		max:       limits.MaxParticles,
		batchSize: limits.BatchSize,
		rng:       rng,
	}
}

// Spawn adds one particle. Requests over the cap are dropped.
func (s *ParticleSystem) Spawn(x, y float64, spec ParticleSpec) bool {
	if len(s.active) >= s.max {
		s.rejected++
		return false
	}
	p, h, ok := s.pool.Acquire()
	if !ok {
		s.rejected++
		return false
	}

	life := spec.Life
	if life <= 0 {
		life = 1
	}
	friction := spec.Friction
	if friction <= 0 {
		friction = 1
	}
	size := spec.Size
	if size <= 0 {
		size = 2
	}
	color := spec.Color
	if color == "" {
		color = "#ffffff"
	}

	*p = Particle{
		X: x, Y: y,
		VX: spec.VX, VY: spec.VY,
		Life: life, MaxLife: life,
		Size:          size,
		Gravity:       spec.Gravity,
		Friction:      friction,
		RotationSpeed: spec.RotationSpeed,
		Color:         color,
		Kind:          spec.Kind,
		Glow:          spec.Glow,
		Fade:          spec.Fade,
		Active:        true,
		handle:        h,
	}
	s.active = append(s.active, p)
	return true
}

// Explosion spawns count particles flying out of (x, y).
func (s *ParticleSystem) Explosion(x, y float64, color string, count int) {
	for i := 0; i < count; i++ {
		s.Spawn(x, y, ParticleSpec{
			VX:       (s.rng.Float64() - 0.5) * 120,
			VY:       (s.rng.Float64() - 0.5) * 120,
			Life:     1.0,
			Color:    color,
			Size:     s.rng.Float64()*2 + 2,
			Kind:     ParticleExplosion,
			Fade:     true,
			Friction: 0.90,
		})
	}
}

// HitSparks spawns the short-lived sparks at a projectile impact.
func (s *ParticleSystem) HitSparks(x, y float64, color string, count int) {
	for i := 0; i < count; i++ {
		s.Spawn(x+(s.rng.Float64()-0.5)*20, y+(s.rng.Float64()-0.5)*20, ParticleSpec{
			VX:    (s.rng.Float64() - 0.5) * 100,
			VY:    (s.rng.Float64() - 0.5) * 100,
			Life:  0.3,
			Color: color,
			Size:  s.rng.Float64()*3 + 1,
			Kind:  ParticleHit,
		})
	}
}

// DamageBurst spawns falling red particles where the base took a hit.
func (s *ParticleSystem) DamageBurst(x, y float64, count int) {
	for i := 0; i < count; i++ {
		s.Spawn(x, y, ParticleSpec{
			VX:       (s.rng.Float64() - 0.5) * 100,
			VY:       (s.rng.Float64()-0.5)*100 - 50,
			Life:     1.0,
			Color:    "#ff6666",
			Size:     s.rng.Float64()*3 + 1,
			Kind:     ParticleDamage,
			Friction: 0.95,
			Gravity:  100,
		})
	}
}

// Ring spawns count particles evenly around (x, y); used for boss entry.
func (s *ParticleSystem) Ring(x, y float64, colors []string, count int) {
	for i := 0; i < count; i++ {
		angle := 2 * math.Pi / float64(count) * float64(i)
		speed := 200 + s.rng.Float64()*100
		s.Spawn(x, y, ParticleSpec{
			VX:       math.Cos(angle) * speed,
			VY:       math.Sin(angle) * speed,
			Life:     1.0,
			Color:    colors[i%len(colors)],
			Size:     4 + s.rng.Float64()*3,
			Kind:     ParticleExplosion,
			Glow:     true,
			Gravity:  50,
			Friction: 0.92,
		})
	}
}

// Update advances all particles and recycles the expired ones.
func (s *ParticleSystem) Update(dt float64) {
	frames := dt * 60 // friction is tuned per 1/60 s

	for i, p := range s.active {
		if i < s.batchSize {
			f := math.Pow(p.Friction, frames)
			p.VX *= f
			p.VY *= f
			p.VY += p.Gravity * dt
			p.Rotation += p.RotationSpeed * dt
		}
		p.X += p.VX * dt
		p.Y += p.VY * dt
		p.Life -= dt
		if p.Life <= 0 {
			p.Active = false
		}
	}

	// Zero-allocation in-place filtering
	n := 0
	for _, p := range s.active {
		if p.Active {
			s.active[n] = p
			n++
			continue
		}
		s.pool.Release(p.handle)
	}
	for i := n; i < len(s.active); i++ {
		s.active[i] = nil
	}
	s.active = s.active[:n]
}

// ForEach calls fn for every live particle.
func (s *ParticleSystem) ForEach(fn func(p *Particle)) {
	for _, p := range s.active {
		fn(p)
	}
}

// Count returns the number of live particles.
func (s *ParticleSystem) Count() int { return len(s.active) }

// Clear returns every particle to the pool.
func (s *ParticleSystem) Clear() {
	s.pool.ReleaseAll()
	for i := range s.active {
		s.active[i] = nil
	}
	s.active = s.active[:0]
}

// Stats returns counters for the performance overlay.
func (s *ParticleSystem) Stats() ParticleStats {
	return ParticleStats{
		Active:   len(s.active),
		Pool:     s.pool.Stats(),
		Rejected: s.rejected,
	}
}
