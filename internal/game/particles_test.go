package game

import (
	"math/rand"
	"testing"

	"cyber-defense/internal/config"
)

func newTestParticles(limits config.ResourceLimits) *ParticleSystem {
	return NewParticleSystem(limits, rand.New(rand.NewSource(1)))
}

func TestParticleCap(t *testing.T) {
	limits := config.DefaultLimits()
	s := newTestParticles(limits)

	for i := 0; i < 30; i++ {
		s.Explosion(100, 100, "#ff0000", 5)
	}

	if s.Count() != limits.MaxParticles {
		t.Errorf("Expected %d particles at the cap, got %d", limits.MaxParticles, s.Count())
	}
	if got := s.Stats().Rejected; got != 50 {
		t.Errorf("Expected 50 rejected, got %d", got)
	}
}

func TestParticleExpiry(t *testing.T) {
	s := newTestParticles(config.DefaultLimits())
	s.HitSparks(0, 0, "#00ffff", 6)
	s.Explosion(0, 0, "#00ff00", 4)

	s.Update(0.31)
	if s.Count() != 4 {
		t.Errorf("Sparks should expire after 0.3s, %d particles left", s.Count())
	}

	s.Update(0.7)
	if s.Count() != 0 {
		t.Errorf("Expected all particles expired, got %d", s.Count())
	}
	if st := s.Stats().Pool; st.InUse != 0 {
		t.Errorf("Expired particles should return to the pool, %d in use", st.InUse)
	}
}

// TestParticleBudget checks only the first BatchSize particles get physics
func TestParticleBudget(t *testing.T) {
	limits := config.DefaultLimits()
	limits.BatchSize = 1
	s := newTestParticles(limits)

	spec := ParticleSpec{VX: 60, Life: 1, Friction: 0.5}
	s.Spawn(0, 0, spec)
	s.Spawn(0, 0, spec)
	s.Update(1.0 / 60)

	var vx []float64
	s.ForEach(func(p *Particle) { vx = append(vx, p.VX) })

	if !approx(vx[0], 30) {
		t.Errorf("Budgeted particle should slow to 30, got %.2f", vx[0])
	}
	if vx[1] != 60 {
		t.Errorf("Over-budget particle should keep its velocity, got %.2f", vx[1])
	}
}

func TestParticleAlpha(t *testing.T) {
	p := &Particle{Life: 0.25, MaxLife: 1, Fade: true}
	if p.Alpha() != 0.25 {
		t.Errorf("Expected alpha 0.25, got %.2f", p.Alpha())
	}
	p.Fade = false
	if p.Alpha() != 1 {
		t.Errorf("Non-fading particle should be opaque, got %.2f", p.Alpha())
	}
}

func TestParticleRing(t *testing.T) {
	s := newTestParticles(config.DefaultLimits())
	colors := []string{"#ff00ff", "#ff0066", "#cc00cc"}
	s.Ring(400, 0, colors, 30)

	if s.Count() != 30 {
		t.Fatalf("Expected 30 ring particles, got %d", s.Count())
	}
	i := 0
	s.ForEach(func(p *Particle) {
		if p.Color != colors[i%3] || !p.Glow {
			t.Errorf("Particle %d: unexpected %s glow=%v", i, p.Color, p.Glow)
		}
		i++
	})
}

func BenchmarkParticleUpdate(b *testing.B) {
	s := newTestParticles(config.DefaultLimits())
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if s.Count() < 50 {
			s.Explosion(100, 100, "#ffffff", 20)
		}
		s.Update(1.0 / 60)
	}
}
