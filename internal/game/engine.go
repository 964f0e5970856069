package game

import (
	"errors"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"cyber-defense/internal/config"
	"cyber-defense/internal/game/spatial"

	"github.com/google/uuid"
)

// ErrGameOver is returned by actions that need a running game.
var ErrGameOver = errors.New("game over")

// EngineConfig holds everything the engine needs to build its services.
type EngineConfig struct {
	Simulation config.SimulationConfig
	Base       config.BaseConfig
	Projectile config.ProjectileConfig
	Limits     config.ResourceLimits
	Spatial    config.SpatialConfig
	Enemies    map[string]config.EnemyStat

	// Optional overrides, mostly for tests
	Roller   Roller       // critical rolls; defaults to the engine RNG
	Upgrades []UpgradeDef // defaults to DefaultUpgradeCatalog
}

// EngineConfigFrom builds an EngineConfig from the application config.
func EngineConfigFrom(app config.AppConfig) EngineConfig {
	return EngineConfig{
		Simulation: app.Simulation,
		Base:       app.Base,
		Projectile: app.Projectile,
		Limits:     app.Limits,
		Spatial:    app.Spatial,
		Enemies:    app.Enemies,
	}
}

// DefaultEngineConfig is EngineConfigFrom(config.Default()).
func DefaultEngineConfig() EngineConfig {
	return EngineConfigFrom(config.Default())
}

// GameState is the scoreboard part of the simulation.
type GameState struct {
	RunID    string         `json:"runId"`
	Frame    uint64         `json:"frame"`
	SimTime  float64        `json:"simTime"` // seconds
	Wave     int            `json:"wave"`
	WaveName string         `json:"waveName"`
	Lives    int            `json:"lives"`
	MaxLives int            `json:"maxLives"`
	Gold     int            `json:"gold"`
	Score    int            `json:"score"`
	Kills    int            `json:"kills"`
	Streak   int            `json:"streak"`
	Level    int            `json:"level"`
	XP       int            `json:"xp"`
	XPToNext int            `json:"xpToNext"`
	Quality  UpgradeQuality `json:"quality"` // best upgrade tier unlocked
	Enemies  int            `json:"enemies"`
	GameOver bool           `json:"gameOver"`
	Running  bool           `json:"running"`
	Effects  UpgradeEffects `json:"effects"`
}

// Engine is the simulation orchestrator. It constructs every service once
// and runs them in a fixed order each frame. All mutation happens under mu;
// readers either take the read lock or use the lock-free snapshot.
type Engine struct {
	mu  sync.RWMutex
	cfg EngineConfig

	runID string
	rng   *rand.Rand

	enemies     *EnemyManager
	grid        *spatial.SpatialGrid
	projectiles *ProjectileManager
	particles   *ParticleSystem
	waves       *WaveSpawner
	upgrades    *UpgradeSystem
	attack      *AutoAttack

	flashes []ImpactFlash
	shake   ScreenShake

	bus         *EventBus
	eventLog    *EventLog
	board       *RunBoard
	frameEvents []EventSnapshot

	snapshotPool *SnapshotPool
	timer        frameTimer
	lastStats    FrameStats
	onFrame      func(FrameStats)

	// Scoreboard
	lives     int
	maxLives  int
	gold      int
	score     int
	kills     int
	streak    int
	healCarry float64 // fractional life steal not yet applied
	xp        Experience
	gameOver  bool
	frame     uint64
	simTime   float64

	tickRate int
	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}
}

// NewEngine creates an engine with all services wired but not running.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Simulation.TickRate <= 0 {
		cfg.Simulation.TickRate = config.DefaultSimulation().TickRate
	}
	if cfg.Upgrades == nil {
		cfg.Upgrades = DefaultUpgradeCatalog()
	}

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	e := &Engine{
		cfg:          cfg,
		rng:          rand.New(rand.NewSource(seed)),
		bus:          NewEventBus(),
		eventLog:     NewEventLog(),
		board:        NewRunBoard(LeaderboardSize),
		frameEvents:  make([]EventSnapshot, 0, cfg.Limits.MaxSnapshotEvents),
		flashes:      make([]ImpactFlash, 0, maxFlashes),
		snapshotPool: NewSnapshotPool(cfg.Limits),
		tickRate:     cfg.Simulation.TickRate,
		stopChan:     make(chan struct{}),
	}

	// Every published event goes to the audit log
	e.bus.SubscribeAll(func(ev Event) {
		e.eventLog.Emit(ev)
	})

	e.reset()
	return e
}

// reset builds a fresh run. Caller holds mu (or is the constructor).
func (e *Engine) reset() {
	cfg := e.cfg

	roller := cfg.Roller
	if roller == nil {
		roller = RollerFunc(e.rng.Float64)
	}

	e.runID = uuid.NewString()
	e.enemies = NewEnemyManager(cfg.Enemies, cfg.Limits.MaxEnemies)
	e.grid = spatial.NewSpatialGrid(cfg.Simulation.WorldWidth, cfg.Simulation.WorldHeight,
		cfg.Spatial.GridCellSize, cfg.Limits.MaxEnemies)
	e.projectiles = NewProjectileManager(cfg.Projectile, cfg.Limits, e.enemies, e.grid, roller)
	e.projectiles.SetHitHandler(e.onHit)
	e.particles = NewParticleSystem(cfg.Limits, e.rng)
	e.waves = NewWaveSpawner(cfg.Simulation.WorldWidth, cfg.Simulation.WorldHeight, e.rng)
	e.upgrades = NewUpgradeSystem(cfg.Upgrades)
	e.attack = NewAutoAttack(cfg.Base, cfg.Projectile)

	e.flashes = e.flashes[:0]
	e.shake = ScreenShake{}
	e.frameEvents = e.frameEvents[:0]

	e.lives = cfg.Base.InitialLives
	e.maxLives = cfg.Base.InitialLives
	e.gold = cfg.Base.InitialGold
	e.score = 0
	e.kills = 0
	e.streak = 0
	e.healCarry = 0
	e.xp = NewExperience()
	e.gameOver = false
	e.frame = 0
	e.simTime = 0
	e.timer = frameTimer{}
}

// Start begins the fixed-rate frame loop
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopChan = make(chan struct{})
	e.ticker = time.NewTicker(time.Second / time.Duration(e.tickRate))
	ticker, stop := e.ticker, e.stopChan
	e.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				e.tick()
			case <-stop:
				return
			}
		}
	}()

	log.Printf("🎮 Simulation started at %d TPS (run %s)", e.tickRate, e.runID)
}

// Stop stops the frame loop. Safe to call twice.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}

	e.running = false
	if e.ticker != nil {
		e.ticker.Stop()
	}
	close(e.stopChan)
	log.Println("🛑 Simulation stopped")
}

// tick runs one frame at the nominal rate.
func (e *Engine) tick() {
	e.Step(1.0 / float64(e.tickRate))
}

// Step advances the simulation by dt seconds. It is synchronous and runs
// every service in order; tests drive the engine through it directly.
func (e *Engine) Step(dt float64) {
	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.frameEvents = e.frameEvents[:0]

	if !e.gameOver {
		e.step(dt)
	}

	elapsed := time.Since(start)
	e.timer.add(elapsed)
	e.lastStats = e.collectStats(elapsed)
	e.produceSnapshot()

	if e.onFrame != nil {
		e.onFrame(e.lastStats)
	}
}

func (e *Engine) step(dt float64) {
	e.frame++
	e.simTime += dt
	base := e.cfg.Base

	// 1. Enemies advance; the ones reaching the base hit it
	e.enemies.Advance(dt, base.X, base.Y, base.Radius, e.onBaseHit)

	// 2. Wave logic spawns new enemies
	wu := e.waves.Update(dt, e.enemies)
	if wu.Completed > 0 {
		e.onWaveComplete(wu.Completed)
	}
	if wu.Started != nil {
		e.onWaveStart(*wu.Started)
	}

	// 3. Rebuild the spatial grid from live enemies
	e.grid.Clear()
	e.enemies.ForEach(func(idx uint32, en *Enemy) {
		e.grid.Insert(idx, en.X, en.Y)
	})

	// 4. Auto attack acquires targets and spawns projectiles
	fx := e.upgrades.Effects()
	e.attack.Update(dt, fx, e.grid, e.enemies, e.projectiles)

	// 5. Projectiles move and collide; dead ones go back to the pool
	e.projectiles.Update(dt)

	// 6. Cosmetics
	e.particles.Update(dt)
	e.updateFlashes(dt)
	e.shake.Update(dt, e.rng)

	// 7. Lives check
	if e.lives <= 0 {
		e.lives = 0
		e.gameOver = true
		pos := e.board.Record(e.runRecord())
		e.emit(EventTypeGameOver, sourceSim, GameOverPayload{
			Wave:  e.waves.Current(),
			Score: e.score,
			Kills: e.kills,
			Rank:  pos,
		})
		log.Printf("💀 Game over on wave %d: score %d, %d kills (rank %d)", e.waves.Current(), e.score, e.kills, pos)
	}
}

// runRecord tallies the current run. Caller holds mu.
func (e *Engine) runRecord() RunRecord {
	return RunRecord{
		RunID:    e.runID,
		Score:    e.score,
		Wave:     e.waves.Current(),
		Kills:    e.kills,
		Frames:   e.frame,
		GameOver: e.gameOver,
		EndedAt:  time.Now(),
	}
}

func (e *Engine) onBaseHit(en *Enemy) {
	e.lives -= en.Damage
	e.streak = 0
	e.particles.DamageBurst(en.X, en.Y, 5)
	e.shake.Add(3, 0.3)

	e.emit(EventTypeBaseHit, sourceSim, BaseHitPayload{
		EnemyType: en.Type,
		Damage:    en.Damage,
		Lives:     e.lives,
	})
}

// onHit applies kill credit immediately so the next frame's wave logic
// and targeting see the updated state.
func (e *Engine) onHit(h HitEvent) {
	e.particles.HitSparks(h.X, h.Y, e.cfg.Projectile.Color, 6)
	if h.Critical {
		e.addFlash(NewImpactFlash(h.X, h.Y, "#ffffff", 1))
		e.emit(EventTypeCritical, sourceSim, DamagePayload{
			EnemyType: h.EnemyType, X: h.X, Y: h.Y, Damage: h.Dealt, Critical: true,
		})
	}

	if !h.Killed {
		e.emit(EventTypeDamage, sourceSim, DamagePayload{
			EnemyType: h.EnemyType, X: h.X, Y: h.Y, Damage: h.Dealt, Critical: h.Critical,
		})
		return
	}

	e.score += h.Reward
	e.gold += h.Reward
	e.kills++
	e.streak++
	if e.streak > 5 {
		e.score += 10 * e.streak
	}

	e.applyLifeSteal()

	e.particles.Explosion(h.X, h.Y, h.Color, 4)
	e.addFlash(NewImpactFlash(h.X, h.Y, h.Color, 2))

	e.emit(EventTypeKill, sourceSim, KillPayload{
		EnemyType: h.EnemyType,
		X:         h.X,
		Y:         h.Y,
		Reward:    h.Reward,
		Streak:    e.streak,
		Critical:  h.Critical,
	})
	e.gainXP(KillXP(h.EnemyType))
}

// applyLifeSteal heals a share of max lives per kill. Lives are whole
// numbers, so the fractional part carries over to the next kill.
func (e *Engine) applyLifeSteal() {
	pct := e.upgrades.Effects().LifeStealPercent
	if pct <= 0 {
		return
	}
	e.healCarry += float64(e.maxLives) * pct
	heal := int(e.healCarry)
	if heal == 0 {
		return
	}
	e.healCarry -= float64(heal)
	e.heal(heal)
}

func (e *Engine) heal(n int) {
	e.lives += n
	if e.lives > e.maxLives {
		e.lives = e.maxLives
	}
}

// gainXP adds experience and unlocks upgrade tiers on level up.
func (e *Engine) gainXP(amount int) {
	if e.xp.Gain(amount) == 0 {
		return
	}
	e.upgrades.SetPlayerLevel(e.xp.Level)
	e.emit(EventTypeLevelUp, sourceSim, LevelUpPayload{
		Level:   e.xp.Level,
		Quality: e.xp.Quality(),
	})
	log.Printf("⭐ Level %d reached (%s upgrades unlocked)", e.xp.Level, e.xp.Quality())
}

func (e *Engine) onWaveStart(d WaveDescriptor) {
	if d.IsBossWave {
		x := e.cfg.Simulation.WorldWidth / 2
		e.particles.Ring(x, 0, []string{"#ff00ff", "#ff0066", "#cc00cc"}, 30)
		e.shake.Add(15, 1.5)
	}
	e.emit(EventTypeWaveStart, sourceSim, WavePayload{
		Wave:       d.Number,
		Name:       d.Name,
		EnemyCount: d.EnemyCount,
		IsBoss:     d.IsBossWave,
	})
	log.Printf("🌊 Wave %d started: %s (%d enemies)", d.Number, d.Name, d.EnemyCount)
}

func (e *Engine) onWaveComplete(n int) {
	bonus := WaveCompletionBonus(n)
	e.gold += bonus
	e.emit(EventTypeWaveComplete, sourceSim, WavePayload{
		Wave:  n,
		Name:  DescribeWave(n).Name,
		Bonus: bonus,
	})
	log.Printf("✅ Wave %d complete, +%d gold", n, bonus)
	e.gainXP(WaveXP(n))
}

func (e *Engine) addFlash(f ImpactFlash) {
	if len(e.flashes) >= maxFlashes {
		return // Silently drop
	}
	e.flashes = append(e.flashes, f)
}

func (e *Engine) updateFlashes(dt float64) {
	n := 0
	for i := range e.flashes {
		if e.flashes[i].Update(dt) {
			e.flashes[n] = e.flashes[i]
			n++
		}
	}
	e.flashes = e.flashes[:n]
}

// emit stamps and publishes an event. Caller holds mu.
func (e *Engine) emit(t EventType, source string, payload interface{}) {
	ev := NewEvent(t, e.frame, source, payload)
	ev.RunID = e.runID
	e.bus.Publish(ev)

	if len(e.frameEvents) < cap(e.frameEvents) {
		e.frameEvents = append(e.frameEvents, EventSnapshot{Type: t.String(), Payload: ev.Payload})
	}
}

// PurchaseUpgrade buys one level of id, paying with the current gold.
// source identifies the caller in the event log.
func (e *Engine) PurchaseUpgrade(id, source string) (UpgradeStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gameOver {
		return UpgradeStatus{}, ErrGameOver
	}

	cost, err := e.upgrades.Purchase(id, e.gold)
	if err != nil {
		return UpgradeStatus{}, err
	}
	e.gold -= cost

	fx := e.upgrades.Effects()
	newMax := int(math.Round(float64(e.cfg.Base.InitialLives) * fx.MaxHealthMultiplier))
	if newMax > e.maxLives {
		e.lives += newMax - e.maxLives
		e.maxLives = newMax
	}
	if def, _ := e.upgrades.Def(id); def.InstantHeal > 0 {
		e.heal(int(math.Round(float64(e.maxLives) * def.InstantHeal)))
	}

	level := e.upgrades.Level(id)
	e.emit(EventTypeUpgrade, source, UpgradePayload{
		UpgradeID: id,
		Level:     level,
		Cost:      cost,
		Gold:      e.gold,
		Effects:   fx,
	})
	log.Printf("⬆️ Upgrade %s -> level %d (cost %d, gold left %d)", id, level, cost, e.gold)

	for _, st := range e.upgrades.Catalog() {
		if st.ID == id {
			return st, nil
		}
	}
	return UpgradeStatus{}, nil
}

// Restart throws away the current run and starts a new one.
func (e *Engine) Restart() {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Abandoned runs still count; finished ones were recorded at game over
	if !e.gameOver && e.frame > 0 {
		e.board.Record(e.runRecord())
	}

	e.reset()
	e.produceSnapshot()
	log.Printf("🔄 New run %s", e.runID)
}

// Leaderboard returns the best n runs since the engine was created
func (e *Engine) Leaderboard(n int) []RankedRun {
	return e.board.Top(n)
}

// GetState returns the current scoreboard
func (e *Engine) GetState() GameState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return GameState{
		RunID:    e.runID,
		Frame:    e.frame,
		SimTime:  e.simTime,
		Wave:     e.waves.Current(),
		WaveName: DescribeWave(e.waves.Current()).Name,
		Lives:    e.lives,
		MaxLives: e.maxLives,
		Gold:     e.gold,
		Score:    e.score,
		Kills:    e.kills,
		Streak:   e.streak,
		Level:    e.xp.Level,
		XP:       e.xp.XP,
		XPToNext: e.xp.ToNext,
		Quality:  e.xp.Quality(),
		Enemies:  e.enemies.Count(),
		GameOver: e.gameOver,
		Running:  e.running,
		Effects:  e.upgrades.Effects(),
	}
}

// Upgrades returns the upgrade catalog with current levels.
func (e *Engine) Upgrades() []UpgradeStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.upgrades.Catalog()
}

// Stats returns the performance overlay data of the last frame.
func (e *Engine) Stats() FrameStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastStats
}

func (e *Engine) collectStats(elapsed time.Duration) FrameStats {
	ps := e.projectiles.Stats()
	return FrameStats{
		Frame:          e.frame,
		FrameMs:        ms(elapsed),
		AvgFrameMs:     ms(e.timer.avg()),
		MaxFrameMs:     ms(e.timer.max()),
		Enemies:        e.enemies.Count(),
		Projectiles:    ps.Active,
		Particles:      e.particles.Count(),
		FullUpdates:    ps.FullUpdates,
		CheapUpdates:   ps.CheapUpdates,
		Rejected:       ps.Rejected,
		ProjectilePool: ps.Pool,
		ParticlePool:   e.particles.Stats().Pool,
		Grid:           e.grid.Stats(),
	}
}

// SetFrameHook installs a callback run after every frame with its stats.
// It runs under the engine lock and must not call back into the engine.
func (e *Engine) SetFrameHook(fn func(FrameStats)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onFrame = fn
}

// Events returns the event bus for subscribers.
func (e *Engine) Events() *EventBus {
	return e.bus
}

// RecentEvents returns up to n of the latest logged events.
func (e *Engine) RecentEvents(n int) []Event {
	return e.eventLog.Recent(n)
}

// StartEventLog initializes the event logging system
func (e *Engine) StartEventLog(filePath string) error {
	return e.eventLog.Start(filePath)
}

// StopEventLog gracefully stops the event logging system
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// GetEventLogStats returns event log statistics for monitoring
func (e *Engine) GetEventLogStats() EventLogStats {
	return e.eventLog.GetStats()
}

// GetLimits returns the current resource limits
func (e *Engine) GetLimits() config.ResourceLimits {
	return e.cfg.Limits
}

// Config returns the engine configuration.
func (e *Engine) Config() EngineConfig {
	return e.cfg
}
