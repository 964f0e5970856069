package game

import (
	"time"

	"cyber-defense/internal/game/pool"
	"cyber-defense/internal/game/spatial"
)

// frameWindow is the number of frames averaged for the overlay.
const frameWindow = 60

// FrameStats is the performance overlay data for one frame.
type FrameStats struct {
	Frame          uint64            `json:"frame"`
	FrameMs        float64           `json:"frameMs"`    // time spent in Step
	AvgFrameMs     float64           `json:"avgFrameMs"` // over the last 60 frames
	MaxFrameMs     float64           `json:"maxFrameMs"`
	Enemies        int               `json:"enemies"`
	Projectiles    int               `json:"projectiles"`
	Particles      int               `json:"particles"`
	FullUpdates    int               `json:"fullUpdates"`
	CheapUpdates   int               `json:"cheapUpdates"`
	Rejected       uint64            `json:"rejected"` // projectile admissions refused, lifetime
	ProjectilePool pool.Stats        `json:"projectilePool"`
	ParticlePool   pool.Stats        `json:"particlePool"`
	Grid           spatial.GridStats `json:"grid"`
}

// frameTimer keeps a ring of recent frame durations.
type frameTimer struct {
	samples [frameWindow]time.Duration
	idx     int
	count   int
	sum     time.Duration
}

func (t *frameTimer) add(d time.Duration) {
	if t.count == frameWindow {
		t.sum -= t.samples[t.idx]
	} else {
		t.count++
	}
	t.samples[t.idx] = d
	t.sum += d
	t.idx = (t.idx + 1) % frameWindow
}

func (t *frameTimer) avg() time.Duration {
	if t.count == 0 {
		return 0
	}
	return t.sum / time.Duration(t.count)
}

func (t *frameTimer) max() time.Duration {
	var m time.Duration
	for i := 0; i < t.count; i++ {
		if t.samples[i] > m {
			m = t.samples[i]
		}
	}
	return m
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
