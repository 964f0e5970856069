package game

// UpgradeQuality is the rarity tier of an upgrade. Higher tiers unlock
// with the player level.
type UpgradeQuality string

const (
	QualityCommon    UpgradeQuality = "common"
	QualityRare      UpgradeQuality = "rare"
	QualityEpic      UpgradeQuality = "epic"
	QualityLegendary UpgradeQuality = "legendary"
)

// Level thresholds for each quality tier.
var qualityLevels = map[UpgradeQuality]int{
	QualityCommon:    1,
	QualityRare:      2,
	QualityEpic:      4,
	QualityLegendary: 8,
}

// MinLevel returns the player level that unlocks q. Unknown or empty
// qualities are always available.
func (q UpgradeQuality) MinLevel() int {
	return qualityLevels[q]
}

// QualityForLevel returns the best quality tier unlocked at level.
func QualityForLevel(level int) UpgradeQuality {
	switch {
	case level >= qualityLevels[QualityLegendary]:
		return QualityLegendary
	case level >= qualityLevels[QualityEpic]:
		return QualityEpic
	case level >= qualityLevels[QualityRare]:
		return QualityRare
	default:
		return QualityCommon
	}
}

const (
	baseLevelXP     = 100
	levelXPStep     = 25
	waveBonusXP     = 50
	waveBonusXPStep = 10
	defaultKillXP   = 10
)

var killXP = map[EnemyType]int{
	EnemyNormal: 15,
	EnemyFast:   20,
	EnemyTank:   35,
}

// KillXP is the experience granted for destroying one enemy of type t.
func KillXP(t EnemyType) int {
	if xp, ok := killXP[t]; ok {
		return xp
	}
	return defaultKillXP
}

// WaveXP is the experience granted for clearing wave n.
func WaveXP(n int) int {
	return waveBonusXP + n*waveBonusXPStep
}

// Experience tracks XP and the player level. XP is kept relative to the
// current level; ToNext grows linearly with the level.
type Experience struct {
	XP     int `json:"xp"`
	Level  int `json:"level"`
	ToNext int `json:"toNext"`
}

// NewExperience returns a level 1 tracker with no XP.
func NewExperience() Experience {
	return Experience{Level: 1, ToNext: baseLevelXP}
}

// Gain adds amount XP and returns how many levels were gained.
func (x *Experience) Gain(amount int) int {
	if amount <= 0 {
		return 0
	}
	x.XP += amount

	gained := 0
	for x.XP >= x.ToNext {
		x.XP -= x.ToNext
		x.Level++
		x.ToNext = baseLevelXP + (x.Level-1)*levelXPStep
		gained++
	}
	return gained
}

// Quality returns the best quality tier unlocked at the current level.
func (x Experience) Quality() UpgradeQuality {
	return QualityForLevel(x.Level)
}
