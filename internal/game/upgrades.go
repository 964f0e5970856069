package game

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// UpgradeEffects is the cached, fixed-shape result of all purchased upgrades.
// The auto attack reads it every tick; it only changes on purchase.
type UpgradeEffects struct {
	DamageMultiplier    float64 `json:"damageMultiplier"`
	FireRateMultiplier  float64 `json:"fireRateMultiplier"` // applied to the cooldown, < 1 is faster
	RangeMultiplier     float64 `json:"rangeMultiplier"`
	CriticalChance      float64 `json:"criticalChance"` // 0..1
	CriticalMultiplier  float64 `json:"criticalMultiplier"`
	MaxHealthMultiplier float64 `json:"maxHealthMultiplier"`
	LifeStealPercent    float64 `json:"lifeStealPercent"` // 0..0.5
}

// DefaultEffects is the state with no upgrades bought.
func DefaultEffects() UpgradeEffects {
	return UpgradeEffects{
		DamageMultiplier:    1,
		FireRateMultiplier:  1,
		RangeMultiplier:     1,
		CriticalChance:      0,
		CriticalMultiplier:  2.0,
		MaxHealthMultiplier: 1,
		LifeStealPercent:    0,
	}
}

const (
	maxCriticalChance = 1.0
	maxLifeSteal      = 0.5
)

// UpgradeCategory groups upgrades for display.
type UpgradeCategory string

const (
	CategoryAbility  UpgradeCategory = "ability"
	CategorySurvival UpgradeCategory = "survival"
)

// UpgradeDef is one purchasable upgrade. Each stack applies the per-level
// values once; multipliers compound, chances add. An upgrade can only be
// bought once the player level reaches MinLevel and unlocks its Quality.
type UpgradeDef struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    UpgradeCategory `json:"category"`
	Quality     UpgradeQuality  `json:"quality"`
	MinLevel    int             `json:"minLevel"`
	MaxLevel    int             `json:"maxLevel"`
	BaseCost    int             `json:"baseCost"`
	Description string          `json:"description"`

	DamageMul    float64 `json:"-"`
	FireRateMul  float64 `json:"-"`
	RangeMul     float64 `json:"-"`
	CritChance   float64 `json:"-"`
	CritMul      float64 `json:"-"`
	MaxHealthMul float64 `json:"-"`
	LifeSteal    float64 `json:"-"`
	InstantHeal  float64 `json:"-"` // fraction of max lives restored on purchase
}

// Cost returns the gold price of going from level to level+1.
func (d UpgradeDef) Cost(level int) int {
	return d.BaseCost * (level + 1)
}

// UnlockedAt reports whether a player at level may buy d.
func (d UpgradeDef) UnlockedAt(level int) bool {
	return level >= d.MinLevel && level >= d.Quality.MinLevel()
}

// DefaultUpgradeCatalog returns the ability and survival upgrades.
func DefaultUpgradeCatalog() []UpgradeDef {
	return []UpgradeDef{
		{
			ID: "firepower_boost", Name: "Firepower Boost", Category: CategoryAbility,
			Quality: QualityCommon, MinLevel: 1,
			MaxLevel: 5, BaseCost: 100, Description: "+15% damage per level",
			DamageMul: 1.15,
		},
		{
			ID: "rapid_fire", Name: "Rapid Fire", Category: CategoryAbility,
			Quality: QualityCommon, MinLevel: 1,
			MaxLevel: 5, BaseCost: 120, Description: "-10% attack cooldown per level",
			FireRateMul: 0.9,
		},
		{
			ID: "range_extension", Name: "Range Extension", Category: CategoryAbility,
			Quality: QualityCommon, MinLevel: 1,
			MaxLevel: 4, BaseCost: 150, Description: "+50% attack range per level, more shots at long range",
			RangeMul: 1.5,
		},
		{
			ID: "precision_strike", Name: "Precision Strike", Category: CategoryAbility,
			Quality: QualityRare, MinLevel: 2,
			MaxLevel: 3, BaseCost: 200, Description: "+8% critical chance, criticals deal 2x",
			CritChance: 0.08, CritMul: 2.0,
		},
		{
			ID: "emergency_repair", Name: "Emergency Repair", Category: CategorySurvival,
			Quality: QualityCommon, MinLevel: 1,
			MaxLevel: 3, BaseCost: 80, Description: "Restore 25% of max health immediately",
			InstantHeal: 0.25,
		},
		{
			ID: "armor_upgrade", Name: "Armor Upgrade", Category: CategorySurvival,
			Quality: QualityCommon, MinLevel: 1,
			MaxLevel: 5, BaseCost: 100, Description: "+15% max health per level",
			MaxHealthMul: 1.15,
		},
		{
			ID: "life_steal", Name: "Life Steal", Category: CategorySurvival,
			Quality: QualityRare, MinLevel: 2,
			MaxLevel: 5, BaseCost: 180, Description: "Each kill heals 1.5% of max health per level",
			LifeSteal: 0.015,
		},
	}
}

// Purchase errors.
var (
	ErrUnknownUpgrade   = errors.New("unknown upgrade")
	ErrMaxLevel         = errors.New("upgrade already at max level")
	ErrInsufficientGold = errors.New("insufficient gold")
	ErrUpgradeLocked    = errors.New("upgrade locked at current level")
)

// UpgradeSystem tracks purchased levels and owns the effects cache.
type UpgradeSystem struct {
	defs        map[string]UpgradeDef
	order       []string
	levels      map[string]int
	effects     UpgradeEffects
	playerLevel int
}

// NewUpgradeSystem creates a system over catalog with nothing purchased.
func NewUpgradeSystem(catalog []UpgradeDef) *UpgradeSystem {
	s := &UpgradeSystem{
		defs:        make(map[string]UpgradeDef, len(catalog)),
		order:       make([]string, 0, len(catalog)),
		levels:      make(map[string]int, len(catalog)),
		effects:     DefaultEffects(),
		playerLevel: 1,
	}
	for _, d := range catalog {
		s.defs[d.ID] = d
		s.order = append(s.order, d.ID)
	}
	return s
}

// Effects returns the cached effects snapshot.
func (s *UpgradeSystem) Effects() UpgradeEffects { return s.effects }

// Level returns the purchased level of id.
func (s *UpgradeSystem) Level(id string) int { return s.levels[id] }

// Def returns the definition of id.
func (s *UpgradeSystem) Def(id string) (UpgradeDef, bool) {
	d, ok := s.defs[id]
	return d, ok
}

// SetPlayerLevel sets the level that gates MinLevel and quality.
func (s *UpgradeSystem) SetPlayerLevel(level int) { s.playerLevel = level }

// Purchase buys one level of id with the given gold balance.
// It returns the gold spent; the effects cache is recomputed on success.
func (s *UpgradeSystem) Purchase(id string, gold int) (int, error) {
	def, ok := s.defs[id]
	if !ok {
		return 0, fmt.Errorf("purchase %q: %w", id, ErrUnknownUpgrade)
	}
	if !def.UnlockedAt(s.playerLevel) {
		return 0, fmt.Errorf("purchase %q (needs level %d, at %d): %w",
			id, max(def.MinLevel, def.Quality.MinLevel()), s.playerLevel, ErrUpgradeLocked)
	}
	level := s.levels[id]
	if level >= def.MaxLevel {
		return 0, fmt.Errorf("purchase %q: %w", id, ErrMaxLevel)
	}
	cost := def.Cost(level)
	if gold < cost {
		return 0, fmt.Errorf("purchase %q (cost %d, have %d): %w", id, cost, gold, ErrInsufficientGold)
	}

	s.levels[id] = level + 1
	s.recalculate()
	return cost, nil
}

// Reset drops every purchased level and the player level.
func (s *UpgradeSystem) Reset() {
	for k := range s.levels {
		delete(s.levels, k)
	}
	s.effects = DefaultEffects()
	s.playerLevel = 1
}

// recalculate rebuilds the effects from scratch so repeated purchases never
// accumulate rounding drift.
func (s *UpgradeSystem) recalculate() {
	fx := DefaultEffects()

	ids := make([]string, 0, len(s.levels))
	for id := range s.levels {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		def := s.defs[id]
		n := float64(s.levels[id])
		if n == 0 {
			continue
		}
		if def.DamageMul != 0 {
			fx.DamageMultiplier *= math.Pow(def.DamageMul, n)
		}
		if def.FireRateMul != 0 {
			fx.FireRateMultiplier *= math.Pow(def.FireRateMul, n)
		}
		if def.RangeMul != 0 {
			fx.RangeMultiplier *= math.Pow(def.RangeMul, n)
		}
		if def.MaxHealthMul != 0 {
			fx.MaxHealthMultiplier *= math.Pow(def.MaxHealthMul, n)
		}
		fx.CriticalChance += def.CritChance * n
		fx.CriticalMultiplier = math.Max(fx.CriticalMultiplier, def.CritMul)
		fx.LifeStealPercent += def.LifeSteal * n
	}

	fx.CriticalChance = math.Min(fx.CriticalChance, maxCriticalChance)
	fx.LifeStealPercent = math.Min(fx.LifeStealPercent, maxLifeSteal)
	s.effects = fx
}

// UpgradeStatus is the read model for one catalog entry.
type UpgradeStatus struct {
	UpgradeDef
	Level    int  `json:"level"`
	NextCost int  `json:"nextCost"` // 0 at max level
	Maxed    bool `json:"maxed"`
	Locked   bool `json:"locked"` // player level too low
}

// Catalog returns every upgrade with its current level, in catalog order.
func (s *UpgradeSystem) Catalog() []UpgradeStatus {
	out := make([]UpgradeStatus, 0, len(s.order))
	for _, id := range s.order {
		def := s.defs[id]
		lvl := s.levels[id]
		st := UpgradeStatus{
			UpgradeDef: def,
			Level:      lvl,
			Maxed:      lvl >= def.MaxLevel,
			Locked:     !def.UnlockedAt(s.playerLevel),
		}
		if !st.Maxed {
			st.NextCost = def.Cost(lvl)
		}
		out = append(out, st)
	}
	return out
}
