package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// ServerConfig holds the server's optional collaborators and timings.
type ServerConfig struct {
	// Renderer serves the debug frame endpoint (optional)
	Renderer FrameRendererInterface

	// BroadcastRate is the websocket snapshot interval
	BroadcastRate time.Duration

	// StaticFilesDir is where the browser client lives
	StaticFilesDir string
}

// Server is the HTTP API plus the websocket hub.
type Server struct {
	engine      EngineInterface
	cfg         ServerConfig
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// NewServer wires the router, rate limiter and websocket hub. Only the
// limiter's sweeper runs before Start.
func NewServer(engine EngineInterface, cfg ServerConfig) *Server {
	if cfg.BroadcastRate <= 0 {
		cfg.BroadcastRate = 100 * time.Millisecond // 10 updates per second
	}

	s := &Server{
		engine: engine,
		cfg:    cfg,
		wsHub:  NewWebSocketHub(engine),
	}

	// Shared by HTTP actions and websocket upgrade commands
	s.rateLimiter = NewIPRateLimiter(DefaultRateLimitConfig)
	s.wsHub.actions = s.rateLimiter

	s.router = NewRouter(RouterConfig{
		Engine:         engine,
		Renderer:       cfg.Renderer,
		RateLimiter:    s.rateLimiter,
		StaticFilesDir: cfg.StaticFilesDir,
	})

	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start runs the hub, the snapshot broadcaster and the listener. It blocks;
// a clean Stop returns nil.
func (s *Server) Start(addr string) error {
	go s.wsHub.Run()
	s.wsHub.StartBroadcastLoop(s.cfg.BroadcastRate)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	log.Printf("🌐 API server listening on %s", ln.Addr())
	log.Printf("🎮 Client: http://localhost%s/play/", addr)

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router returns the HTTP handler, for httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the websocket hub.
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Stop performs graceful shutdown of background workers and the listener.
func (s *Server) Stop(ctx context.Context) error {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	s.wsHub.Stop()
	return s.httpServer.Shutdown(ctx)
}
