package game

// GetSnapshot returns the latest published snapshot without locking.
// The snapshot may be overwritten two frames later; callers that keep it
// longer (network encoders) should use CopySnapshot.
func (e *Engine) GetSnapshot() *GameSnapshot {
	return e.snapshotPool.AcquireRead()
}

// CopySnapshot deep-copies the latest snapshot into dst, reusing dst's
// slice capacity.
func (e *Engine) CopySnapshot(dst *GameSnapshot) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	src := e.snapshotPool.AcquireRead()
	enemies := append(dst.Enemies[:0], src.Enemies...)
	projectiles := append(dst.Projectiles[:0], src.Projectiles...)
	particles := append(dst.Particles[:0], src.Particles...)
	flashes := append(dst.Flashes[:0], src.Flashes...)
	events := append(dst.Events[:0], src.Events...)

	*dst = *src
	dst.Enemies = enemies
	dst.Projectiles = projectiles
	dst.Particles = particles
	dst.Flashes = flashes
	dst.Events = events
}

// produceSnapshot writes the current frame into the snapshot pool.
// Caller holds mu.
func (e *Engine) produceSnapshot() {
	snap := e.snapshotPool.AcquireWrite()
	limits := e.cfg.Limits
	base := e.cfg.Base
	fx := e.upgrades.Effects()

	snap.Frame = e.frame
	snap.Base = BaseSnapshot{
		X:        base.X,
		Y:        base.Y,
		Radius:   base.Radius,
		Range:    e.attack.EffectiveRange(fx),
		Lives:    e.lives,
		MaxLives: e.maxLives,
	}
	spawned, total := e.waves.Progress()
	snap.Wave = e.waves.Current()
	snap.WaveName = DescribeWave(snap.Wave).Name
	snap.WaveSpawned = spawned
	snap.WaveTotal = total
	snap.Score = e.score
	snap.Gold = e.gold
	snap.Kills = e.kills
	snap.Streak = e.streak
	snap.Level = e.xp.Level
	snap.XP = e.xp.XP
	snap.XPToNext = e.xp.ToNext
	snap.GameOver = e.gameOver
	snap.Effects = fx
	snap.Stats = e.lastStats

	e.enemies.ForEach(func(_ uint32, en *Enemy) {
		if len(snap.Enemies) >= limits.MaxSnapshotEnemies {
			return
		}
		snap.Enemies = append(snap.Enemies, EnemySnapshot{
			X:         en.X,
			Y:         en.Y,
			Health:    en.Health,
			MaxHealth: en.MaxHealth,
			Size:      en.Size,
			Color:     en.Color,
			Type:      en.Type,
		})
	})

	e.projectiles.ForEach(func(p *Projectile) {
		if len(snap.Projectiles) >= limits.MaxProjectiles {
			return
		}
		snap.Projectiles = append(snap.Projectiles, p.ToSnapshot())
	})

	e.particles.ForEach(func(p *Particle) {
		if len(snap.Particles) >= limits.MaxParticles {
			return
		}
		snap.Particles = append(snap.Particles, ParticleSnapshot{
			X:     p.X,
			Y:     p.Y,
			Size:  p.Size,
			Color: p.Color,
			Alpha: p.Alpha(),
			Kind:  p.Kind.String(),
			Glow:  p.Glow,
		})
	})

	for i := range e.flashes {
		fl := &e.flashes[i]
		snap.Flashes = append(snap.Flashes, FlashSnapshot{
			X:         fl.X,
			Y:         fl.Y,
			Radius:    fl.Radius,
			Color:     fl.Color,
			Intensity: fl.Alpha(),
		})
	}

	snap.Events = append(snap.Events, e.frameEvents...)

	if e.shake.Intensity > 0.5 {
		snap.Shake = ShakeSnapshot{
			OffsetX:   e.shake.OffsetX,
			OffsetY:   e.shake.OffsetY,
			Intensity: e.shake.Intensity,
		}
	}

	e.snapshotPool.PublishWrite()
}
