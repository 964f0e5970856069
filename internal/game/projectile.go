package game

import (
	"math"

	"cyber-defense/internal/game/pool"
)

// ProjectileMode selects how a projectile moves and hits.
type ProjectileMode uint8

const (
	// ModeTracking re-aims at its target every tick and hits on proximity.
	ModeTracking ProjectileMode = iota
	// ModeScatter flies a fixed heading until it hits something or runs out of range.
	ModeScatter
)

func (m ProjectileMode) String() string {
	if m == ModeScatter {
		return "scatter"
	}
	return "tracking"
}

// TrailLength is the number of past positions kept per projectile.
const TrailLength = 8

// TrailPoint is one remembered projectile position.
type TrailPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Projectile is a pooled base-attack shot.
type Projectile struct {
	X, Y  float64
	Mode  ProjectileMode
	Speed float64 // pixels per second

	// Tracking mode
	Target EnemyRef

	// Scatter mode
	Angle    float64
	MaxRange float64
	Traveled float64

	// Combat, fixed when fired
	Damage         float64 // base damage x DamageMultiplier
	CritChance     float64
	CritMultiplier float64

	Active bool

	// Last known target position for the cheap update path
	LastTargetX, LastTargetY float64

	Color string
	Size  float64

	// Trail positions (ring buffer)
	Trail    [TrailLength]TrailPoint
	TrailIdx int
	TrailLen int

	handle pool.Handle
	listed bool // guards against double insertion into the active list
}

// resetProjectile zeroes every mutable field before the projectile goes
// back to the pool.
func resetProjectile(p *Projectile) {
	*p = Projectile{}
}

// pushTrail records the current position before the projectile moves.
func (p *Projectile) pushTrail() {
	p.Trail[p.TrailIdx] = TrailPoint{X: p.X, Y: p.Y}
	p.TrailIdx = (p.TrailIdx + 1) % TrailLength
	if p.TrailLen < TrailLength {
		p.TrailLen++
	}
}

// TrailPoints returns the remembered positions, oldest first.
func (p *Projectile) TrailPoints() (pts [TrailLength]TrailPoint, count int) {
	start := (p.TrailIdx - p.TrailLen + TrailLength) % TrailLength
	for i := 0; i < p.TrailLen; i++ {
		pts[i] = p.Trail[(start+i)%TrailLength]
	}
	return pts, p.TrailLen
}

// moveToward steps the projectile toward (tx, ty) and returns the distance
// that was left before the move.
func (p *Projectile) moveToward(tx, ty, step float64) float64 {
	dx := tx - p.X
	dy := ty - p.Y
	dist := math.Hypot(dx, dy)
	if dist == 0 {
		return 0
	}
	if step > dist {
		step = dist
	}
	p.X += dx / dist * step
	p.Y += dy / dist * step
	return dist
}

// Rotation returns the heading used for drawing.
func (p *Projectile) Rotation() float64 {
	if p.Mode == ModeScatter {
		return p.Angle
	}
	return math.Atan2(p.LastTargetY-p.Y, p.LastTargetX-p.X)
}

// Roller produces uniform numbers in [0, 1) for critical rolls.
// Tests inject a fixed sequence.
type Roller interface {
	Roll() float64
}

// RollerFunc adapts a plain function to Roller.
type RollerFunc func() float64

// Roll implements Roller.
func (f RollerFunc) Roll() float64 { return f() }

// HitResult is the outcome of one damage resolution.
type HitResult struct {
	Damage   float64
	Critical bool
}

// RollDamage resolves the damage of a single hit. damage already includes
// the damage multiplier; exactly one roll is made against critChance.
func RollDamage(damage, critChance, critMultiplier float64, r Roller) HitResult {
	if r.Roll() < critChance {
		return HitResult{Damage: damage * critMultiplier, Critical: true}
	}
	return HitResult{Damage: damage}
}

// ProjectileSnapshot is an immutable copy of projectile state for rendering
type ProjectileSnapshot struct {
	X          float64                 `json:"x"`
	Y          float64                 `json:"y"`
	Mode       string                  `json:"mode"`
	Rotation   float64                 `json:"rot"`
	Color      string                  `json:"color"`
	Size       float64                 `json:"size"`
	Trail      [TrailLength]TrailPoint `json:"trail"`
	TrailCount int                     `json:"trailCount"`
}

// ToSnapshot creates an immutable snapshot for rendering
func (p *Projectile) ToSnapshot() ProjectileSnapshot {
	pts, n := p.TrailPoints()
	return ProjectileSnapshot{
		X:          p.X,
		Y:          p.Y,
		Mode:       p.Mode.String(),
		Rotation:   p.Rotation(),
		Color:      p.Color,
		Size:       p.Size,
		Trail:      pts,
		TrailCount: n,
	}
}
