package game

import (
	"math"

	"cyber-defense/internal/config"
	"cyber-defense/internal/game/spatial"
)

// ShotCount maps the range multiplier to the number of projectiles per
// attack. Thresholds are checked highest first.
func ShotCount(rangeMultiplier float64) int {
	switch {
	case rangeMultiplier >= 6.0:
		return 5
	case rangeMultiplier >= 4.5:
		return 4
	case rangeMultiplier >= 3.0:
		return 3
	case rangeMultiplier >= 1.5:
		return 2
	default:
		return 1
	}
}

// FanOut appends the headings of n projectiles spread around baseAngle
// within a total arc of spread radians.
//
// Odd n keeps one shot on baseAngle and spaces the rest evenly on both
// sides. Even n leaves the center empty and puts n/2 shots on each side at
// half-step offsets.
func FanOut(dst []float64, baseAngle float64, n int, spread float64) []float64 {
	if n <= 1 {
		return append(dst, baseAngle)
	}

	half := n / 2
	step := spread / float64(half)
	if n%2 == 1 {
		for i := 0; i < n; i++ {
			dst = append(dst, baseAngle+float64(i-half)*step)
		}
		return dst
	}

	for i := 0; i < n; i++ {
		side := 1.0
		if i < half {
			side = -1.0
		}
		offset := (float64(i%half) + 0.5) * step
		dst = append(dst, baseAngle+side*offset)
	}
	return dst
}

// AutoAttack is the base's targeting loop: wait for the cooldown, find the
// nearest enemy in range through the grid, and fire.
type AutoAttack struct {
	x, y         float64
	baseCooldown float64 // seconds
	baseRange    float64
	spread       float64

	timer  float64 // seconds since the last successful attack
	angles []float64
}

// NewAutoAttack creates the attack loop for a base at the configured spot.
// The first attack is available immediately.
func NewAutoAttack(base config.BaseConfig, proj config.ProjectileConfig) *AutoAttack {
	cd := base.AttackCooldown.Seconds()
	return &AutoAttack{
		x:            base.X,
		y:            base.Y,
		baseCooldown: cd,
		baseRange:    base.BaseRange(),
		spread:       proj.SpreadAngle,
		timer:        cd,
		angles:       make([]float64, 0, 5),
	}
}

// EffectiveCooldown returns the cooldown in seconds under fx.
func (a *AutoAttack) EffectiveCooldown(fx UpgradeEffects) float64 {
	return a.baseCooldown * fx.FireRateMultiplier
}

// EffectiveRange returns the attack range under fx.
func (a *AutoAttack) EffectiveRange(fx UpgradeEffects) float64 {
	return a.baseRange * fx.RangeMultiplier
}

// Update advances the cooldown by dt and attacks if it is ready.
// It returns the number of projectiles fired. The cooldown only restarts
// when at least one projectile was admitted.
func (a *AutoAttack) Update(dt float64, fx UpgradeEffects, grid *spatial.SpatialGrid,
	enemies *EnemyManager, projectiles *ProjectileManager) int {

	a.timer += dt
	if a.timer < a.EffectiveCooldown(fx) {
		return 0
	}

	reach := a.EffectiveRange(fx)
	idx, ok := a.nearest(reach, grid, enemies)
	if !ok {
		return 0
	}

	target := enemies.At(idx)
	baseAngle := math.Atan2(target.Y-a.y, target.X-a.x)
	n := ShotCount(fx.RangeMultiplier)

	fired := 0
	if n == 1 {
		if projectiles.CreateProjectile(a.x, a.y, enemies.RefOf(idx), fx) != nil {
			fired++
		}
	} else {
		a.angles = FanOut(a.angles[:0], baseAngle, n, a.spread)
		for _, angle := range a.angles {
			if projectiles.CreateScatterProjectile(a.x, a.y, angle, reach, fx) != nil {
				fired++
			}
		}
	}

	if fired > 0 {
		a.timer = 0
	}
	return fired
}

// nearest returns the arena index of the closest live enemy within r.
func (a *AutoAttack) nearest(r float64, grid *spatial.SpatialGrid, enemies *EnemyManager) (uint32, bool) {
	best := uint32(0)
	bestDist := math.Inf(1)
	found := false

	for _, idx := range grid.QueryRadius(a.x, a.y, r) {
		e := enemies.At(idx)
		if e == nil {
			continue
		}
		d := math.Hypot(e.X-a.x, e.Y-a.y)
		if d <= r && d < bestDist {
			best, bestDist, found = idx, d, true
		}
	}
	return best, found
}

// Ready reports whether the next Update with this fx would try to attack.
func (a *AutoAttack) Ready(fx UpgradeEffects) bool {
	return a.timer >= a.EffectiveCooldown(fx)
}

// Reset makes the next attack available immediately.
func (a *AutoAttack) Reset() {
	a.timer = a.baseCooldown
}
