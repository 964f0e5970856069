package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"cyber-defense/internal/game"

	"github.com/go-chi/chi/v5"
)

const (
	defaultEventLimit       = 50
	defaultLeaderboardLimit = 10
	maxWaveQuery            = 10000
)

// Handler methods for routerHandlers
// These are used by both the standalone router (for testing) and the full Server.

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.GetState())
}

func (h *routerHandlers) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	// Copy under the engine's read lock; the lock-free snapshot may be
	// recycled while we encode it
	var snap game.GameSnapshot
	h.engine.CopySnapshot(&snap)
	writeJSON(w, &snap)
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"frame":    h.engine.Stats(),
		"eventLog": h.engine.GetEventLogStats(),
	})
}

func (h *routerHandlers) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, defaultEventLimit, game.EventBufferSize)
	if !ok {
		return
	}
	writeJSON(w, h.engine.RecentEvents(limit))
}

func (h *routerHandlers) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, defaultLeaderboardLimit, game.LeaderboardSize)
	if !ok {
		return
	}
	writeJSON(w, h.engine.Leaderboard(limit))
}

// parseLimit reads ?limit=, clamped to ceiling. Writes a 400 and returns
// false when the value is not a positive integer.
func parseLimit(w http.ResponseWriter, r *http.Request, def, ceiling int) (int, bool) {
	limit := def
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return 0, false
		}
		limit = n
	}
	if limit > ceiling {
		limit = ceiling
	}
	return limit, true
}

func (h *routerHandlers) handleGetWave(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n < 1 || n > maxWaveQuery {
		writeError(w, "wave must be between 1 and 10000", http.StatusBadRequest)
		return
	}

	writeJSON(w, map[string]interface{}{
		"wave":  game.DescribeWave(n),
		"bonus": game.WaveCompletionBonus(n),
	})
}

func (h *routerHandlers) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	if h.renderer == nil {
		writeError(w, "frame rendering disabled", http.StatusNotFound)
		return
	}

	var snap game.GameSnapshot
	h.engine.CopySnapshot(&snap)

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	start := time.Now()
	if err := h.renderer.RenderPNG(w, &snap); err != nil {
		log.Printf("❌ Frame render failed: %v", err)
		return
	}
	RecordRender(time.Since(start))
}

func (h *routerHandlers) handleGetUpgrades(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"gold":     h.engine.GetState().Gold,
		"upgrades": h.engine.Upgrades(),
	})
}

func (h *routerHandlers) handlePurchaseUpgrade(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	source := "api:" + GetClientIP(r)

	st, err := h.engine.PurchaseUpgrade(id, source)
	if err != nil {
		RecordUpgradeRejected(upgradeErrorReason(err))
		writeError(w, err.Error(), upgradeErrorStatus(err))
		return
	}

	RecordUpgradePurchased(id)
	writeJSON(w, map[string]interface{}{
		"success": true,
		"upgrade": st,
		"gold":    h.engine.GetState().Gold,
	})
}

func (h *routerHandlers) handleRestart(w http.ResponseWriter, r *http.Request) {
	log.Printf("🔄 Restart requested from %s", GetClientIP(r))
	h.engine.Restart()
	writeJSON(w, h.engine.GetState())
}

func upgradeErrorStatus(err error) int {
	switch {
	case errors.Is(err, game.ErrUnknownUpgrade):
		return http.StatusNotFound
	case errors.Is(err, game.ErrInsufficientGold):
		return http.StatusPaymentRequired
	case errors.Is(err, game.ErrUpgradeLocked):
		return http.StatusForbidden
	case errors.Is(err, game.ErrMaxLevel), errors.Is(err, game.ErrGameOver):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func upgradeErrorReason(err error) string {
	switch {
	case errors.Is(err, game.ErrUnknownUpgrade):
		return "unknown"
	case errors.Is(err, game.ErrInsufficientGold):
		return "gold"
	case errors.Is(err, game.ErrMaxLevel):
		return "max_level"
	case errors.Is(err, game.ErrUpgradeLocked):
		return "locked"
	case errors.Is(err, game.ErrGameOver):
		return "game_over"
	default:
		return "other"
	}
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
