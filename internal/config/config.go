// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for simulation, combat and server settings.
//
// IMPORTANT: When changing values, only modify this file.
// All other parts of the codebase should reference these values.
package config

import (
	"math"
	"os"
	"strconv"
	"time"
)

// =============================================================================
// SIMULATION CONFIGURATION
// =============================================================================

// SimulationConfig holds the frame loop and play-field settings.
type SimulationConfig struct {
	TickRate    int     // Simulation frames per second
	WorldWidth  float64 // Play-field width in pixels
	WorldHeight float64 // Play-field height in pixels
	Seed        int64   // RNG seed (0 = time based)
}

// DefaultSimulation returns the default simulation configuration.
func DefaultSimulation() SimulationConfig {
	return SimulationConfig{
		TickRate:    60,
		WorldWidth:  800,
		WorldHeight: 600,
	}
}

// SimulationFromEnv returns simulation configuration with environment variable overrides.
func SimulationFromEnv() SimulationConfig {
	cfg := DefaultSimulation()

	if tps := getEnvInt("SIM_TPS", 0); tps > 0 {
		cfg.TickRate = tps
	}
	if w := getEnvFloat("WORLD_WIDTH", 0); w > 0 {
		cfg.WorldWidth = w
	}
	if h := getEnvFloat("WORLD_HEIGHT", 0); h > 0 {
		cfg.WorldHeight = h
	}
	if s := getEnvInt("SIM_SEED", 0); s != 0 {
		cfg.Seed = int64(s)
	}

	return cfg
}

// =============================================================================
// BASE (DEFENDER) CONFIGURATION
// =============================================================================

// BaseConfig describes the stationary defender.
type BaseConfig struct {
	X, Y           float64
	Radius         float64
	InitialLives   int
	InitialGold    int
	AttackCooldown time.Duration // Base cooldown before fire-rate upgrades
	RangeFactor    float64       // Base attack range = Radius * RangeFactor
}

// BaseRange returns the attack range before range upgrades.
func (b BaseConfig) BaseRange() float64 {
	return b.Radius * b.RangeFactor
}

// DefaultBase returns the default defender configuration.
func DefaultBase() BaseConfig {
	return BaseConfig{
		X:              400,
		Y:              300,
		Radius:         55,
		InitialLives:   100,
		InitialGold:    300,
		AttackCooldown: 500 * time.Millisecond,
		RangeFactor:    3,
	}
}

// =============================================================================
// PROJECTILE CONFIGURATION
// =============================================================================

// ProjectileConfig holds the base attack projectile stats.
type ProjectileConfig struct {
	Damage          float64 // Base damage before upgrades
	Speed           float64 // Pixels per second
	Color           string
	Size            float64
	HitRadius       float64 // Tracking projectiles hit below this distance
	CollisionRadius float64 // Scatter projectiles query the grid with this radius
	SpreadAngle     float64 // Total fan-out spread for multi-shot attacks (radians)
}

// DefaultProjectile returns the default base attack projectile.
func DefaultProjectile() ProjectileConfig {
	return ProjectileConfig{
		Damage:          25,
		Speed:           300,
		Color:           "#00ffff",
		Size:            3,
		HitRadius:       10,
		CollisionRadius: 15,
		SpreadAngle:     math.Pi / 8, // 22.5 degrees
	}
}

// =============================================================================
// RESOURCE LIMITS
// =============================================================================

// ResourceLimits controls admission control and per-frame work budgets.
type ResourceLimits struct {
	MaxProjectiles     int // Active projectile cap (admission control)
	ProjectilePoolSize int // Pre-warmed projectile instances
	ProjectilePoolCap  int // Hard cap on projectile instances ever created
	MaxParticles       int // Active particle cap
	ParticlePoolSize   int // Pre-warmed particle instances
	BatchSize          int // Full updates per frame before the cheap path kicks in
	MaxSnapshotEnemies int // Enemies copied into a snapshot
	MaxSnapshotEvents  int // Events copied into a snapshot
	MaxEnemies         int // Hard cap on live enemies
}

// DefaultLimits returns the default resource limits.
func DefaultLimits() ResourceLimits {
	return ResourceLimits{
		MaxProjectiles:     40,
		ProjectilePoolSize: 20,
		ProjectilePoolCap:  100,
		MaxParticles:       100,
		ParticlePoolSize:   50,
		BatchSize:          20,
		MaxSnapshotEnemies: 200,
		MaxSnapshotEvents:  32,
		MaxEnemies:         512,
	}
}

// LimitsFromEnv returns resource limits with environment variable overrides.
func LimitsFromEnv() ResourceLimits {
	cfg := DefaultLimits()

	if v := getEnvInt("MAX_PROJECTILES", 0); v > 0 {
		cfg.MaxProjectiles = v
	}
	if v := getEnvInt("MAX_PARTICLES", 0); v > 0 {
		cfg.MaxParticles = v
	}
	if v := getEnvInt("BATCH_SIZE", 0); v > 0 {
		cfg.BatchSize = v
	}

	return cfg
}

// =============================================================================
// SPATIAL CONFIGURATION
// =============================================================================

// SpatialConfig holds spatial indexing settings.
type SpatialConfig struct {
	GridCellSize float64 // Spatial grid cell size for collision detection
}

// DefaultSpatial returns the default spatial configuration.
func DefaultSpatial() SpatialConfig {
	return SpatialConfig{
		GridCellSize: 80, // pixels
	}
}

// SpatialFromEnv returns spatial configuration with environment variable overrides.
func SpatialFromEnv() SpatialConfig {
	cfg := DefaultSpatial()
	if v := getEnvFloat("GRID_CELL_SIZE", 0); v > 0 {
		cfg.GridCellSize = v
	}
	return cfg
}

// =============================================================================
// ENEMY STAT TABLE
// =============================================================================

// EnemyStat is one row of the enemy table. Speed is in pixels per second.
type EnemyStat struct {
	Speed  float64
	Health float64
	Damage int
	Reward int
	Size   float64
	Color  string
}

// DefaultEnemyStats returns the enemy table keyed by enemy type.
func DefaultEnemyStats() map[string]EnemyStat {
	return map[string]EnemyStat{
		"normal": {Speed: 90, Health: 96, Damage: 15, Reward: 15, Size: 10, Color: "#00ff00"},
		"fast":   {Speed: 180, Health: 64, Damage: 12, Reward: 20, Size: 12, Color: "#ffff00"},
		"tank":   {Speed: 48, Health: 200, Damage: 25, Reward: 35, Size: 15, Color: "#ff6600"},
		"boss":   {Speed: 30, Health: 3600, Damage: 50, Reward: 500, Size: 35, Color: "#ff00ff"},
	}
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port          int
	DebugAddr     string // pprof + /metrics, localhost only
	EventLogPath  string // JSONL audit log ("" disables file output)
	BroadcastRate time.Duration
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:          3000,
		DebugAddr:     "127.0.0.1:6060",
		EventLogPath:  "events.jsonl",
		BroadcastRate: 100 * time.Millisecond,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if v, ok := os.LookupEnv("EVENT_LOG_PATH"); ok {
		cfg.EventLogPath = v
	}
	if v := os.Getenv("DEBUG_ADDR"); v != "" {
		cfg.DebugAddr = v
	}
	if ms := getEnvInt("BROADCAST_MS", 0); ms > 0 {
		cfg.BroadcastRate = time.Duration(ms) * time.Millisecond
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Simulation SimulationConfig
	Base       BaseConfig
	Projectile ProjectileConfig
	Limits     ResourceLimits
	Spatial    SpatialConfig
	Enemies    map[string]EnemyStat
	Server     ServerConfig
}

// Default returns the complete configuration without environment overrides.
// Tests use this to get a reproducible setup.
func Default() AppConfig {
	return AppConfig{
		Simulation: DefaultSimulation(),
		Base:       DefaultBase(),
		Projectile: DefaultProjectile(),
		Limits:     DefaultLimits(),
		Spatial:    DefaultSpatial(),
		Enemies:    DefaultEnemyStats(),
		Server:     DefaultServer(),
	}
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	cfg := Default()
	cfg.Simulation = SimulationFromEnv()
	cfg.Limits = LimitsFromEnv()
	cfg.Spatial = SpatialFromEnv()
	cfg.Server = ServerFromEnv()
	return cfg
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
