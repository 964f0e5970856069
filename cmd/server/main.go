package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"cyber-defense/internal/api"
	"cyber-defense/internal/config"
	"cyber-defense/internal/game"
	"cyber-defense/internal/render"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🛡️ ================================")
	log.Println("🛡️  CYBER DEFENSE - GO ENGINE")
	log.Println("🛡️ ================================")

	// Load centralized configuration (SSOT - Single Source of Truth)
	appConfig := config.Load()
	simCfg := appConfig.Simulation
	serverCfg := appConfig.Server

	log.Printf("🎮 Config: %d TPS, %.0fx%.0f field, seed %d", simCfg.TickRate, simCfg.WorldWidth, simCfg.WorldHeight, simCfg.Seed)

	engine := game.NewEngine(game.EngineConfigFrom(appConfig))
	engine.SetFrameHook(api.RecordFrame)
	limits := engine.GetLimits()
	log.Printf("🛡️ Resource limits: %d projectiles (batch %d), %d particles, %d enemies",
		limits.MaxProjectiles, limits.BatchSize, limits.MaxParticles, limits.MaxEnemies)

	// Start event log
	if err := engine.StartEventLog(serverCfg.EventLogPath); err != nil {
		log.Printf("⚠️ Event log disabled: %v", err)
	} else if serverCfg.EventLogPath != "" {
		log.Printf("📝 Event log: %s", serverCfg.EventLogPath)
	}

	// Start debug server
	debugCfg := api.DefaultObservabilityConfig()
	debugCfg.ListenAddr = serverCfg.DebugAddr
	debugCfg.BasicAuthUser = os.Getenv("DEBUG_USER")
	debugCfg.BasicAuthPass = os.Getenv("DEBUG_PASS")
	if os.Getenv("DISABLE_DEBUG_SERVER") != "true" {
		if err := api.StartDebugServer(debugCfg); err != nil {
			log.Printf("⚠️ Debug server disabled: %v", err)
		}
	}

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		api.AllowedOrigins = strings.Split(v, ",")
		log.Printf("🌍 Extra origins: %v", api.AllowedOrigins)
	}

	var renderer api.FrameRendererInterface
	if os.Getenv("DISABLE_FRAME_RENDER") != "true" {
		renderer = render.NewFrameRenderer(int(simCfg.WorldWidth), int(simCfg.WorldHeight), render.NewCache())
	}

	server := api.NewServer(engine, api.ServerConfig{
		Renderer:       renderer,
		BroadcastRate:  serverCfg.BroadcastRate,
		StaticFilesDir: os.Getenv("STATIC_DIR"),
	})

	engine.Start()
	log.Println("✅ Game Engine started")

	go func() {
		addr := ":" + strconv.Itoa(serverCfg.Port)
		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Printf("⚠️ Server shutdown: %v", err)
	}
	engine.Stop()
	engine.StopEventLog()

	st := engine.GetState()
	log.Printf("🏁 Final: wave %d, score %d, kills %d", st.Wave, st.Score, st.Kills)
	log.Println("👋 Goodbye!")
}
