package game

import (
	"math/rand"
)

// WaveDescriptor is the pure description of wave n.
type WaveDescriptor struct {
	Number           int         `json:"number"`
	Name             string      `json:"name"`
	Roster           []EnemyType `json:"roster"`        // spawn picks uniformly from this list
	SpawnInterval    float64     `json:"spawnInterval"` // seconds between spawns
	EnemyCount       int         `json:"enemyCount"`
	HealthMultiplier float64     `json:"healthMultiplier"`
	SpeedMultiplier  float64     `json:"speedMultiplier"`
	IsBossWave       bool        `json:"isBossWave"`
}

// BossWaveEvery is the boss wave period.
const BossWaveEvery = 5

// DescribeWave returns the deterministic descriptor for wave n (n >= 1).
// Every fifth wave is a single boss; the others fall into four tiers.
func DescribeWave(n int) WaveDescriptor {
	w := float64(n)

	if n%BossWaveEvery == 0 {
		tier := float64(n / BossWaveEvery)
		return WaveDescriptor{
			Number:           n,
			Name:             "BOSS BATTLE",
			Roster:           []EnemyType{EnemyBoss},
			SpawnInterval:    0,
			EnemyCount:       1,
			HealthMultiplier: 1 + (tier-1)*0.8,
			SpeedMultiplier:  1 + (tier-1)*0.2,
			IsBossWave:       true,
		}
	}

	switch {
	case n <= 3:
		return WaveDescriptor{
			Number:           n,
			Name:             "Rookie Defense",
			Roster:           []EnemyType{EnemyNormal, EnemyFast},
			SpawnInterval:    1.5,
			EnemyCount:       10 + n*4,
			HealthMultiplier: 1 + (w-1)*0.15,
			SpeedMultiplier:  1,
		}
	case n <= 8:
		return WaveDescriptor{
			Number:           n,
			Name:             "Reinforced Assault",
			Roster:           []EnemyType{EnemyNormal, EnemyFast, EnemyTank},
			SpawnInterval:    1.0,
			EnemyCount:       20 + n*5,
			HealthMultiplier: 1.3 + (w-4)*0.25,
			SpeedMultiplier:  1.1 + (w-4)*0.05,
		}
	case n <= 15:
		return WaveDescriptor{
			Number:           n,
			Name:             "Elite Invasion",
			Roster:           []EnemyType{EnemyTank, EnemyFast, EnemyTank, EnemyNormal},
			SpawnInterval:    0.8,
			EnemyCount:       30 + n*6,
			HealthMultiplier: 2.0 + (w-9)*0.3,
			SpeedMultiplier:  1.3 + (w-9)*0.08,
		}
	default:
		return WaveDescriptor{
			Number:           n,
			Name:             "Hell Mode",
			Roster:           []EnemyType{EnemyTank, EnemyTank, EnemyFast, EnemyNormal},
			SpawnInterval:    0.6,
			EnemyCount:       50 + n*8,
			HealthMultiplier: 3.5 + w*0.4,
			SpeedMultiplier:  1.8 + w*0.1,
		}
	}
}

// WaveCompletionBonus is the gold awarded for clearing wave n.
func WaveCompletionBonus(n int) int {
	return 50 + n*10
}

const spawnEdgeOffset = 30 // pixels outside the field

// WaveSpawner drives the wave state machine: start, trickle spawns at the
// wave interval, complete once everything spawned is gone.
type WaveSpawner struct {
	current int
	active  bool
	spawned int
	timer   float64
	desc    WaveDescriptor

	width, height float64
	rng           *rand.Rand
}

// NewWaveSpawner creates a spawner that starts at wave 1.
func NewWaveSpawner(width, height float64, rng *rand.Rand) *WaveSpawner {
	return &WaveSpawner{
		current: 1,
		width:   width,
		height:  height,
		rng:     rng,
	}
}

// WaveUpdate reports the transitions of one Update call.
type WaveUpdate struct {
	Started   *WaveDescriptor
	Completed int // wave number, 0 = none
}

// Update advances spawning by dt seconds.
func (s *WaveSpawner) Update(dt float64, enemies *EnemyManager) WaveUpdate {
	var out WaveUpdate

	if !s.active {
		if enemies.Count() == 0 {
			s.start(enemies)
			d := s.desc
			out.Started = &d
		}
		return out
	}

	s.timer += dt
	if s.timer >= s.desc.SpawnInterval && s.spawned < s.desc.EnemyCount {
		if s.spawnOne(enemies) {
			s.spawned++
		}
		s.timer = 0
	}

	if s.spawned >= s.desc.EnemyCount && enemies.Count() == 0 {
		out.Completed = s.current
		s.active = false
		s.current++
	}
	return out
}

func (s *WaveSpawner) start(enemies *EnemyManager) {
	s.desc = DescribeWave(s.current)
	s.active = true
	s.spawned = 0
	s.timer = 0

	if s.desc.IsBossWave {
		enemies.Spawn(EnemyBoss, s.width/2, -50, s.desc.HealthMultiplier, s.desc.SpeedMultiplier)
		s.spawned = s.desc.EnemyCount
	}
}

func (s *WaveSpawner) spawnOne(enemies *EnemyManager) bool {
	t := s.desc.Roster[s.rng.Intn(len(s.desc.Roster))]

	var x, y float64
	switch s.rng.Intn(4) {
	case 0: // top
		x, y = s.rng.Float64()*s.width, -spawnEdgeOffset
	case 1: // right
		x, y = s.width+spawnEdgeOffset, s.rng.Float64()*s.height
	case 2: // bottom
		x, y = s.rng.Float64()*s.width, s.height+spawnEdgeOffset
	default: // left
		x, y = -spawnEdgeOffset, s.rng.Float64()*s.height
	}

	_, ok := enemies.Spawn(t, x, y, s.desc.HealthMultiplier, s.desc.SpeedMultiplier)
	return ok
}

// Current returns the wave number in progress (or about to start).
func (s *WaveSpawner) Current() int { return s.current }

// Active reports whether a wave is in progress.
func (s *WaveSpawner) Active() bool { return s.active }

// Progress returns spawned and total counts for the current wave.
func (s *WaveSpawner) Progress() (spawned, total int) {
	return s.spawned, s.desc.EnemyCount
}
