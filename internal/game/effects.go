package game

import "math/rand"

// ImpactFlash is the expanding ring drawn on critical hits and kills.
type ImpactFlash struct {
	X, Y      float64
	Radius    float64
	MaxRadius float64
	Color     string
	Timer     float64 // seconds left
}

const (
	flashDuration     = 0.17
	maxFlashes        = 10
	maxShakeIntensity = 15.0
)

// NewImpactFlash creates a new impact flash effect.
func NewImpactFlash(x, y float64, color string, intensity float64) ImpactFlash {
	return ImpactFlash{
		X:         x,
		Y:         y,
		Radius:    3.0,
		MaxRadius: 10.0 + intensity*5.0,
		Color:     color,
		Timer:     flashDuration,
	}
}

// Update expands the flash; false means it is finished.
func (f *ImpactFlash) Update(dt float64) bool {
	f.Timer -= dt
	if f.Timer < 0 {
		f.Timer = 0
	}

	// Ease out: fast growth first
	progress := 1.0 - f.Timer/flashDuration
	f.Radius = f.MaxRadius * (1.0 - (1.0-progress)*(1.0-progress))

	return f.Timer > 0
}

// Alpha returns the current opacity.
func (f *ImpactFlash) Alpha() float64 {
	return f.Timer / flashDuration
}

// ScreenShake is camera shake triggered by boss entry and base hits.
type ScreenShake struct {
	Intensity float64
	Duration  float64 // seconds left
	OffsetX   float64
	OffsetY   float64
}

// Add starts or strengthens the shake. Intensity is capped.
func (s *ScreenShake) Add(intensity, duration float64) {
	s.Intensity += intensity
	if s.Intensity > maxShakeIntensity {
		s.Intensity = maxShakeIntensity
	}
	if duration > s.Duration {
		s.Duration = duration
	}
}

// Update decays the shake and picks new offsets from rng.
func (s *ScreenShake) Update(dt float64, rng *rand.Rand) {
	if s.Duration <= 0 {
		*s = ScreenShake{}
		return
	}
	s.Duration -= dt
	s.Intensity *= 0.9

	s.OffsetX = (rng.Float64() - 0.5) * 2 * s.Intensity
	s.OffsetY = (rng.Float64() - 0.5) * 2 * s.Intensity

	if s.Duration <= 0 || s.Intensity < 0.5 {
		*s = ScreenShake{}
	}
}
