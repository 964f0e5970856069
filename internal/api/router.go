package api

import (
	"io"
	"net/http"

	"cyber-defense/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// EngineInterface is the slice of *game.Engine the HTTP and websocket
// layers use. Tests substitute a mock.
type EngineInterface interface {
	// GetState returns the current scoreboard
	GetState() game.GameState
	// GetSnapshot returns the latest lock-free snapshot (read-only, may be
	// recycled by the producer)
	GetSnapshot() *game.GameSnapshot
	// CopySnapshot deep-copies the latest snapshot into dst
	CopySnapshot(dst *game.GameSnapshot)
	// Stats returns the last frame's performance data
	Stats() game.FrameStats
	// Upgrades returns the catalog with current levels
	Upgrades() []game.UpgradeStatus
	// PurchaseUpgrade buys one level of an upgrade
	PurchaseUpgrade(id, source string) (game.UpgradeStatus, error)
	// RecentEvents returns the newest logged events, oldest first
	RecentEvents(n int) []game.Event
	// GetEventLogStats returns event log counters
	GetEventLogStats() game.EventLogStats
	// Restart begins a new run
	Restart()

	// Leaderboard returns the best n runs, best first
	Leaderboard(n int) []game.RankedRun
}

// FrameRendererInterface draws a snapshot as a PNG. Optional.
type FrameRendererInterface interface {
	RenderPNG(w io.Writer, snap *game.GameSnapshot) error
}

// RouterConfig holds the router's collaborators. Only Engine is required.
type RouterConfig struct {
	// Engine is the game engine (required)
	Engine EngineInterface

	// Renderer serves /api/frame.png. If nil the route answers 404.
	Renderer FrameRendererInterface

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is optional configuration for the rate limiter.
	// Only used if RateLimiter is nil. If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, uses the default local origins.
	CORSOrigins []string

	// StaticFilesDir is the directory the browser client is served from.
	// If empty, defaults to "./web".
	StaticFilesDir string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler functions for the router.
type routerHandlers struct {
	engine   EngineInterface
	renderer FrameRendererInterface
}

// NewRouter builds the chi router: middleware, /api routes and the static
// client. It opens no listener, so tests wrap it in httptest.NewServer.
// A limiter is created (with its sweeper goroutine) when cfg.RateLimiter is nil.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Logger, recover, metrics, then limits before CORS
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)

	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = append([]string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}, AllowedOrigins...)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	h := &routerHandlers{
		engine:   cfg.Engine,
		renderer: cfg.Renderer,
	}

	r.Route("/api", func(r chi.Router) {
		// Game state
		r.Get("/state", h.handleGetState)
		r.Get("/snapshot", h.handleGetSnapshot)
		r.Get("/stats", h.handleGetStats)
		r.Get("/events", h.handleGetEvents)
		r.Get("/wave/{n}", h.handleGetWave)
		r.Get("/frame.png", h.handleGetFrame)

		// Upgrades
		r.Get("/upgrades", h.handleGetUpgrades)
		r.Post("/upgrades/{id}", h.handlePurchaseUpgrade)

		// Run control
		r.Post("/restart", h.handleRestart)
		r.Get("/leaderboard", h.handleGetLeaderboard)
	})

	staticDir := cfg.StaticFilesDir
	if staticDir == "" {
		staticDir = "./web"
	}
	r.Handle("/play/*", http.StripPrefix("/play/", http.FileServer(http.Dir(staticDir))))
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/play/", http.StatusFound)
	})

	return r
}
