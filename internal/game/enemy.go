package game

import (
	"math"

	"cyber-defense/internal/config"
)

// EnemyType identifies a row of the enemy stat table.
type EnemyType string

const (
	EnemyNormal EnemyType = "normal"
	EnemyFast   EnemyType = "fast"
	EnemyTank   EnemyType = "tank"
	EnemyBoss   EnemyType = "boss"
)

// Enemy is one attacker walking toward the base.
// Enemies live in the EnemyManager arena; the spatial grid stores their
// arena index and projectiles hold an EnemyRef.
type Enemy struct {
	X, Y      float64
	Speed     float64 // pixels per second, wave multiplier applied
	Health    float64
	MaxHealth float64
	Damage    int // lives removed when it reaches the base
	Reward    int // score and gold on kill
	Size      float64
	Color     string
	Type      EnemyType
	Active    bool

	gen uint32
}

// EnemyRef is a weak reference to an enemy slot. It stops resolving as soon
// as the enemy dies or leaves, even if the slot is later reused.
type EnemyRef struct {
	Index uint32
	Gen   uint32
}

// EnemyManager owns the enemy arena.
// Dead slots go onto a free list and come back with a bumped generation.
type EnemyManager struct {
	enemies    []Enemy
	free       []uint32
	active     int
	stats      map[string]config.EnemyStat
	maxEnemies int
}

// NewEnemyManager creates an arena with room for maxEnemies live enemies.
func NewEnemyManager(stats map[string]config.EnemyStat, maxEnemies int) *EnemyManager {
	return &EnemyManager{
		enemies:    make([]Enemy, 0, 64),
		free:       make([]uint32, 0, 64),
		stats:      stats,
		maxEnemies: maxEnemies,
	}
}

// Spawn places a new enemy of type t at (x, y) with wave multipliers applied.
// Returns false when the type is unknown or the arena is full.
func (m *EnemyManager) Spawn(t EnemyType, x, y, healthMul, speedMul float64) (EnemyRef, bool) {
	st, ok := m.stats[string(t)]
	if !ok || m.active >= m.maxEnemies {
		return EnemyRef{}, false
	}

	var idx uint32
	if n := len(m.free); n > 0 {
		idx = m.free[n-1]
		m.free = m.free[:n-1]
	} else {
		m.enemies = append(m.enemies, Enemy{gen: 1})
		idx = uint32(len(m.enemies) - 1)
	}

	e := &m.enemies[idx]
	hp := st.Health * healthMul
	*e = Enemy{
		X:         x,
		Y:         y,
		Speed:     st.Speed * speedMul,
		Health:    hp,
		MaxHealth: hp,
		Damage:    st.Damage,
		Reward:    st.Reward,
		Size:      st.Size,
		Color:     st.Color,
		Type:      t,
		Active:    true,
		gen:       e.gen,
	}
	m.active++

	return EnemyRef{Index: idx, Gen: e.gen}, true
}

// Resolve returns the enemy behind ref if it is still alive.
func (m *EnemyManager) Resolve(ref EnemyRef) (*Enemy, bool) {
	if int(ref.Index) >= len(m.enemies) {
		return nil, false
	}
	e := &m.enemies[ref.Index]
	if !e.Active || e.gen != ref.Gen {
		return nil, false
	}
	return e, true
}

// At returns the live enemy in slot idx, or nil.
// Grid query results are passed straight in here.
func (m *EnemyManager) At(idx uint32) *Enemy {
	if int(idx) >= len(m.enemies) {
		return nil
	}
	e := &m.enemies[idx]
	if !e.Active {
		return nil
	}
	return e
}

// RefOf builds a weak reference to the enemy currently in slot idx.
func (m *EnemyManager) RefOf(idx uint32) EnemyRef {
	return EnemyRef{Index: idx, Gen: m.enemies[idx].gen}
}

// ApplyDamage rounds amount to whole hit points and subtracts it.
// A lethal hit removes the enemy immediately so nothing else can target it
// this frame.
func (m *EnemyManager) ApplyDamage(idx uint32, amount float64) (dealt int, killed bool) {
	e := m.At(idx)
	if e == nil {
		return 0, false
	}
	dealt = int(math.Round(amount))
	e.Health -= float64(dealt)
	if e.Health <= 0 {
		e.Health = 0
		m.remove(idx)
		return dealt, true
	}
	return dealt, false
}

func (m *EnemyManager) remove(idx uint32) {
	e := &m.enemies[idx]
	if !e.Active {
		return
	}
	e.Active = false
	e.gen++
	m.free = append(m.free, idx)
	m.active--
}

// Advance moves every enemy toward (tx, ty). Enemies that come within
// reachRadius are removed after onReach sees them.
func (m *EnemyManager) Advance(dt, tx, ty, reachRadius float64, onReach func(e *Enemy)) {
	for i := range m.enemies {
		e := &m.enemies[i]
		if !e.Active {
			continue
		}

		dx := tx - e.X
		dy := ty - e.Y
		dist := math.Hypot(dx, dy)
		if dist <= reachRadius {
			if onReach != nil {
				onReach(e)
			}
			m.remove(uint32(i))
			continue
		}

		step := e.Speed * dt
		if step > dist {
			step = dist
		}
		e.X += dx / dist * step
		e.Y += dy / dist * step
	}
}

// ForEach calls fn for every live enemy with its arena index.
func (m *EnemyManager) ForEach(fn func(idx uint32, e *Enemy)) {
	for i := range m.enemies {
		if m.enemies[i].Active {
			fn(uint32(i), &m.enemies[i])
		}
	}
}

// Count returns the number of live enemies.
func (m *EnemyManager) Count() int { return m.active }

// Capacity returns the live enemy cap.
func (m *EnemyManager) Capacity() int { return m.maxEnemies }

// Clear removes every enemy. Outstanding refs stop resolving.
func (m *EnemyManager) Clear() {
	for i := range m.enemies {
		m.remove(uint32(i))
	}
}
