package game

import (
	"errors"
	"math"
	"testing"
)

func TestUpgradePurchaseCompounds(t *testing.T) {
	s := NewUpgradeSystem(DefaultUpgradeCatalog())

	cost, err := s.Purchase("firepower_boost", 1000)
	if err != nil || cost != 100 {
		t.Fatalf("First level: expected cost 100, got %d (%v)", cost, err)
	}
	cost, err = s.Purchase("firepower_boost", 1000)
	if err != nil || cost != 200 {
		t.Fatalf("Second level: expected cost 200, got %d (%v)", cost, err)
	}

	if got := s.Effects().DamageMultiplier; !approx(got, 1.15*1.15) {
		t.Errorf("Expected damage multiplier %.4f, got %.4f", 1.15*1.15, got)
	}
	if s.Level("firepower_boost") != 2 {
		t.Errorf("Expected level 2, got %d", s.Level("firepower_boost"))
	}
}

func TestUpgradeErrors(t *testing.T) {
	s := NewUpgradeSystem(DefaultUpgradeCatalog())
	s.SetPlayerLevel(2)

	if _, err := s.Purchase("laser_eyes", 1000); !errors.Is(err, ErrUnknownUpgrade) {
		t.Errorf("Expected ErrUnknownUpgrade, got %v", err)
	}
	if _, err := s.Purchase("precision_strike", 199); !errors.Is(err, ErrInsufficientGold) {
		t.Errorf("Expected ErrInsufficientGold, got %v", err)
	}
	if s.Level("precision_strike") != 0 {
		t.Error("Failed purchase should not change the level")
	}
	if s.Effects() != DefaultEffects() {
		t.Error("Failed purchase should not change the effects")
	}

	for i := 0; i < 3; i++ {
		if _, err := s.Purchase("precision_strike", 10000); err != nil {
			t.Fatalf("Level %d: %v", i+1, err)
		}
	}
	if _, err := s.Purchase("precision_strike", 10000); !errors.Is(err, ErrMaxLevel) {
		t.Errorf("Expected ErrMaxLevel, got %v", err)
	}
}

func TestUpgradeEffects(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		levels int
		check  func(fx UpgradeEffects) bool
	}{
		{"rapid fire shortens cooldown", "rapid_fire", 3, func(fx UpgradeEffects) bool {
			return approx(fx.FireRateMultiplier, math.Pow(0.9, 3))
		}},
		{"range adds shots", "range_extension", 4, func(fx UpgradeEffects) bool {
			return approx(fx.RangeMultiplier, 5.0625) && ShotCount(fx.RangeMultiplier) == 4
		}},
		{"precision adds chance", "precision_strike", 3, func(fx UpgradeEffects) bool {
			return approx(fx.CriticalChance, 0.24) && fx.CriticalMultiplier == 2.0
		}},
		{"armor raises max health", "armor_upgrade", 1, func(fx UpgradeEffects) bool {
			return approx(fx.MaxHealthMultiplier, 1.15)
		}},
		{"life steal adds percent", "life_steal", 5, func(fx UpgradeEffects) bool {
			return approx(fx.LifeStealPercent, 0.075)
		}},
		{"emergency repair leaves effects alone", "emergency_repair", 3, func(fx UpgradeEffects) bool {
			return fx == DefaultEffects()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewUpgradeSystem(DefaultUpgradeCatalog())
			s.SetPlayerLevel(8)
			for i := 0; i < tt.levels; i++ {
				if _, err := s.Purchase(tt.id, 100000); err != nil {
					t.Fatalf("Purchase %s: %v", tt.id, err)
				}
			}
			if !tt.check(s.Effects()) {
				t.Errorf("Unexpected effects %+v", s.Effects())
			}
		})
	}
}

func TestUpgradeClamps(t *testing.T) {
	s := NewUpgradeSystem([]UpgradeDef{
		{ID: "vampire", MaxLevel: 5, BaseCost: 1, LifeSteal: 0.2},
		{ID: "lucky", MaxLevel: 5, BaseCost: 1, CritChance: 0.3, CritMul: 3},
	})
	for i := 0; i < 5; i++ {
		s.Purchase("vampire", 100)
		s.Purchase("lucky", 100)
	}

	fx := s.Effects()
	if fx.LifeStealPercent != 0.5 {
		t.Errorf("Life steal should clamp at 0.5, got %.2f", fx.LifeStealPercent)
	}
	if fx.CriticalChance != 1.0 {
		t.Errorf("Critical chance should clamp at 1.0, got %.2f", fx.CriticalChance)
	}
	if fx.CriticalMultiplier != 3 {
		t.Errorf("Expected critical multiplier 3, got %.1f", fx.CriticalMultiplier)
	}
}

func TestUpgradeCatalogStatus(t *testing.T) {
	s := NewUpgradeSystem(DefaultUpgradeCatalog())
	for i := 0; i < 4; i++ {
		s.Purchase("range_extension", 100000)
	}
	s.Purchase("armor_upgrade", 100000)

	cat := s.Catalog()
	if len(cat) != 7 {
		t.Fatalf("Expected 7 upgrades, got %d", len(cat))
	}
	if cat[0].ID != "firepower_boost" {
		t.Errorf("Catalog should keep definition order, got %s first", cat[0].ID)
	}

	for _, st := range cat {
		switch st.ID {
		case "range_extension":
			if !st.Maxed || st.NextCost != 0 {
				t.Errorf("range_extension should be maxed, got %+v", st)
			}
		case "armor_upgrade":
			if st.Level != 1 || st.NextCost != 200 {
				t.Errorf("armor_upgrade should be level 1 costing 200, got %+v", st)
			}
		case "life_steal", "precision_strike":
			if !st.Locked {
				t.Errorf("%s should be locked at level 1", st.ID)
			}
		default:
			if st.Locked {
				t.Errorf("%s should be unlocked at level 1", st.ID)
			}
		}
	}

	s.Reset()
	if s.Effects() != DefaultEffects() || s.Level("armor_upgrade") != 0 {
		t.Error("Reset should drop every level")
	}
}

func TestUpgradeLevelGate(t *testing.T) {
	s := NewUpgradeSystem(DefaultUpgradeCatalog())

	if _, err := s.Purchase("life_steal", 10000); !errors.Is(err, ErrUpgradeLocked) {
		t.Fatalf("Expected ErrUpgradeLocked at level 1, got %v", err)
	}
	if s.Level("life_steal") != 0 {
		t.Error("Locked purchase should not change the level")
	}

	s.SetPlayerLevel(2)
	if _, err := s.Purchase("life_steal", 10000); err != nil {
		t.Fatalf("Level 2 should unlock life_steal: %v", err)
	}

	s.Reset()
	if _, err := s.Purchase("life_steal", 10000); !errors.Is(err, ErrUpgradeLocked) {
		t.Errorf("Reset should drop the player level, got %v", err)
	}
}

func TestUpgradeQualityGate(t *testing.T) {
	s := NewUpgradeSystem([]UpgradeDef{
		{ID: "relic", Quality: QualityLegendary, MinLevel: 1, MaxLevel: 1, BaseCost: 1},
	})

	for _, level := range []int{1, 4, 7} {
		s.SetPlayerLevel(level)
		if _, err := s.Purchase("relic", 100); !errors.Is(err, ErrUpgradeLocked) {
			t.Errorf("Level %d: expected ErrUpgradeLocked, got %v", level, err)
		}
	}
	s.SetPlayerLevel(8)
	if _, err := s.Purchase("relic", 100); err != nil {
		t.Errorf("Level 8 should unlock legendary: %v", err)
	}
}
