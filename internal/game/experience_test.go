package game

import "testing"

func TestExperienceLevels(t *testing.T) {
	x := NewExperience()

	if n := x.Gain(99); n != 0 || x.Level != 1 {
		t.Fatalf("99 XP should stay at level 1, got level %d (+%d)", x.Level, n)
	}
	if n := x.Gain(1); n != 1 || x.Level != 2 || x.XP != 0 {
		t.Fatalf("100 XP should reach level 2 with 0 left, got %+v (+%d)", x, n)
	}
	if x.ToNext != 125 {
		t.Errorf("Level 2 should need 125 XP, got %d", x.ToNext)
	}

	// One big grant can cross several thresholds
	if n := x.Gain(125 + 150 + 10); n != 2 {
		t.Errorf("Expected 2 levels, got %d", n)
	}
	if x.Level != 4 || x.XP != 10 || x.ToNext != 175 {
		t.Errorf("Expected level 4 with 10/175 XP, got %+v", x)
	}

	if n := x.Gain(-50); n != 0 || x.XP != 10 {
		t.Errorf("Negative XP should be ignored, got %+v", x)
	}
}

func TestExperienceRewards(t *testing.T) {
	tests := []struct {
		name string
		got  int
		want int
	}{
		{"normal kill", KillXP(EnemyNormal), 15},
		{"fast kill", KillXP(EnemyFast), 20},
		{"tank kill", KillXP(EnemyTank), 35},
		{"boss kill", KillXP(EnemyBoss), 10},
		{"wave 1", WaveXP(1), 60},
		{"wave 10", WaveXP(10), 150},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: expected %d XP, got %d", tt.name, tt.want, tt.got)
		}
	}
}

func TestQualityForLevel(t *testing.T) {
	tests := []struct {
		level int
		want  UpgradeQuality
	}{
		{1, QualityCommon},
		{2, QualityRare},
		{3, QualityRare},
		{4, QualityEpic},
		{7, QualityEpic},
		{8, QualityLegendary},
		{20, QualityLegendary},
	}
	for _, tt := range tests {
		if got := QualityForLevel(tt.level); got != tt.want {
			t.Errorf("QualityForLevel(%d) = %s, want %s", tt.level, got, tt.want)
		}
	}
}
