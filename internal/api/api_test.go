package api_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"cyber-defense/internal/api"
	"cyber-defense/internal/game"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// MockEngine implements api.EngineInterface for testing
type MockEngine struct {
	mu        sync.Mutex
	state     game.GameState
	levels    map[string]int
	events    []game.Event
	restarts  int
	purchases []string // sources
	board     []game.RankedRun
}

func NewMockEngine() *MockEngine {
	return &MockEngine{
		state:  game.GameState{RunID: "run-1", Wave: 3, Lives: 90, MaxLives: 100, Gold: 150, Level: 1},
		levels: make(map[string]int),
	}
}

func (m *MockEngine) GetState() game.GameState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *MockEngine) GetSnapshot() *game.GameSnapshot {
	snap := &game.GameSnapshot{}
	m.CopySnapshot(snap)
	return snap
}

func (m *MockEngine) CopySnapshot(dst *game.GameSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dst.Sequence = 7
	dst.Frame = m.state.Frame
	dst.Wave = m.state.Wave
	dst.Gold = m.state.Gold
	dst.Base = game.BaseSnapshot{X: 400, Y: 300, Radius: 55, Range: 165, Lives: m.state.Lives, MaxLives: m.state.MaxLives}
	dst.Enemies = append(dst.Enemies[:0], game.EnemySnapshot{X: 10, Y: 20, Health: 50, MaxHealth: 96, Size: 10, Color: "#00ff00", Type: game.EnemyNormal})
}

func (m *MockEngine) update(fn func(st *game.GameState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.state)
}

func (m *MockEngine) Purchases() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.purchases...)
}

func (m *MockEngine) Stats() game.FrameStats {
	return game.FrameStats{Frame: 42, Enemies: 1}
}

func (m *MockEngine) Upgrades() []game.UpgradeStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]game.UpgradeStatus, 0)
	for _, def := range game.DefaultUpgradeCatalog() {
		out = append(out, game.UpgradeStatus{UpgradeDef: def, Level: m.levels[def.ID]})
	}
	return out
}

func (m *MockEngine) PurchaseUpgrade(id, source string) (game.UpgradeStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.GameOver {
		return game.UpgradeStatus{}, game.ErrGameOver
	}
	for _, def := range game.DefaultUpgradeCatalog() {
		if def.ID != id {
			continue
		}
		if !def.UnlockedAt(m.state.Level) {
			return game.UpgradeStatus{}, fmt.Errorf("purchase %q: %w", id, game.ErrUpgradeLocked)
		}
		lvl := m.levels[id]
		if lvl >= def.MaxLevel {
			return game.UpgradeStatus{}, fmt.Errorf("purchase %q: %w", id, game.ErrMaxLevel)
		}
		cost := def.Cost(lvl)
		if m.state.Gold < cost {
			return game.UpgradeStatus{}, fmt.Errorf("purchase %q: %w", id, game.ErrInsufficientGold)
		}
		m.state.Gold -= cost
		m.levels[id] = lvl + 1
		m.purchases = append(m.purchases, source)
		return game.UpgradeStatus{UpgradeDef: def, Level: lvl + 1}, nil
	}
	return game.UpgradeStatus{}, fmt.Errorf("purchase %q: %w", id, game.ErrUnknownUpgrade)
}

func (m *MockEngine) RecentEvents(n int) []game.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > len(m.events) {
		n = len(m.events)
	}
	return m.events[len(m.events)-n:]
}

func (m *MockEngine) GetEventLogStats() game.EventLogStats {
	return game.EventLogStats{Total: 5, Running: true}
}

func (m *MockEngine) Restart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restarts++
	m.state.RunID = fmt.Sprintf("run-%d", m.restarts+1)
	m.state.GameOver = false
}

func (m *MockEngine) Leaderboard(n int) []game.RankedRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > len(m.board) {
		n = len(m.board)
	}
	return m.board[:n]
}

// MockRenderer implements api.FrameRendererInterface
type MockRenderer struct {
	frames int
}

func (r *MockRenderer) RenderPNG(w io.Writer, snap *game.GameSnapshot) error {
	r.frames++
	_, err := fmt.Fprintf(w, "png wave=%d", snap.Wave)
	return err
}

func newTestServer(t *testing.T, engine api.EngineInterface, renderer api.FrameRendererInterface) *httptest.Server {
	t.Helper()
	router := api.NewRouter(api.RouterConfig{
		Engine:   engine,
		Renderer: renderer,
		RateLimitConfig: &api.RateLimitConfig{
			RequestsPerSecond: 1000, // High limit for tests
			Burst:             1000,
			CleanupInterval:   time.Hour,
		},
		DisableLogging: true, // Quiet logs in tests
	})
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func post(t *testing.T, url string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&body)
	return resp.StatusCode, body
}

// ============================================================================
// API Endpoint Tests
// ============================================================================

func TestAPIGetState(t *testing.T) {
	ts := newTestServer(t, NewMockEngine(), nil)

	var st game.GameState
	if code := getJSON(t, ts.URL+"/api/state", &st); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if st.RunID != "run-1" || st.Wave != 3 || st.Gold != 150 {
		t.Errorf("Unexpected state %+v", st)
	}
}

func TestAPIGetSnapshot(t *testing.T) {
	ts := newTestServer(t, NewMockEngine(), nil)

	var snap game.GameSnapshot
	if code := getJSON(t, ts.URL+"/api/snapshot", &snap); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if snap.Sequence != 7 || len(snap.Enemies) != 1 || snap.Base.Lives != 90 {
		t.Errorf("Unexpected snapshot %+v", snap)
	}
}

func TestAPIGetStats(t *testing.T) {
	ts := newTestServer(t, NewMockEngine(), nil)

	var stats struct {
		Frame    game.FrameStats    `json:"frame"`
		EventLog game.EventLogStats `json:"eventLog"`
	}
	getJSON(t, ts.URL+"/api/stats", &stats)
	if stats.Frame.Frame != 42 || !stats.EventLog.Running {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestAPIGetWave(t *testing.T) {
	ts := newTestServer(t, NewMockEngine(), nil)

	tests := []struct {
		path       string
		wantStatus int
		wantBoss   bool
		wantBonus  int
	}{
		{"/api/wave/1", http.StatusOK, false, 60},
		{"/api/wave/5", http.StatusOK, true, 100},
		{"/api/wave/0", http.StatusBadRequest, false, 0},
		{"/api/wave/-3", http.StatusBadRequest, false, 0},
		{"/api/wave/abc", http.StatusBadRequest, false, 0},
		{"/api/wave/10001", http.StatusBadRequest, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var res struct {
				Wave  game.WaveDescriptor `json:"wave"`
				Bonus int                 `json:"bonus"`
			}
			code := getJSON(t, ts.URL+tt.path, &res)
			if code != tt.wantStatus {
				t.Fatalf("Expected %d, got %d", tt.wantStatus, code)
			}
			if code != http.StatusOK {
				return
			}
			if res.Wave.IsBossWave != tt.wantBoss || res.Bonus != tt.wantBonus {
				t.Errorf("Unexpected wave %+v bonus %d", res.Wave, res.Bonus)
			}
		})
	}
}

func TestAPIPurchaseUpgrade(t *testing.T) {
	engine := NewMockEngine()
	ts := newTestServer(t, engine, nil)

	code, body := post(t, ts.URL+"/api/upgrades/rapid_fire")
	if code != http.StatusOK || body["success"] != true {
		t.Fatalf("Expected success, got %d %v", code, body)
	}
	if p := engine.Purchases(); len(p) != 1 || !strings.HasPrefix(p[0], "api:") {
		t.Errorf("Purchase should carry an api source, got %v", p)
	}

	tests := []struct {
		name       string
		path       string
		setup      func()
		wantStatus int
	}{
		{"unknown upgrade", "/api/upgrades/laser_eyes", nil, http.StatusNotFound},
		{"locked at level 1", "/api/upgrades/precision_strike", nil, http.StatusForbidden},
		{"not enough gold", "/api/upgrades/armor_upgrade", func() { engine.update(func(st *game.GameState) { st.Gold = 10 }) }, http.StatusPaymentRequired},
		{"game over", "/api/upgrades/rapid_fire", func() { engine.update(func(st *game.GameState) { st.GameOver = true }) }, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			code, body := post(t, ts.URL+tt.path)
			if code != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, code)
			}
			if body["error"] == nil {
				t.Error("Error response should carry a message")
			}
		})
	}
}

func TestAPIPurchaseMaxLevel(t *testing.T) {
	engine := NewMockEngine()
	engine.state.Gold = 1 << 20
	engine.state.Level = 2
	ts := newTestServer(t, engine, nil)

	var def game.UpgradeDef
	for _, d := range game.DefaultUpgradeCatalog() {
		if d.ID == "life_steal" {
			def = d
		}
	}
	for i := 0; i < def.MaxLevel; i++ {
		if code, _ := post(t, ts.URL+"/api/upgrades/life_steal"); code != http.StatusOK {
			t.Fatalf("Level %d: expected 200, got %d", i+1, code)
		}
	}
	if code, _ := post(t, ts.URL+"/api/upgrades/life_steal"); code != http.StatusConflict {
		t.Errorf("Expected 409 past max level, got %d", code)
	}
}

func TestAPIGetUpgrades(t *testing.T) {
	ts := newTestServer(t, NewMockEngine(), nil)

	var res struct {
		Gold     int                  `json:"gold"`
		Upgrades []game.UpgradeStatus `json:"upgrades"`
	}
	getJSON(t, ts.URL+"/api/upgrades", &res)
	if res.Gold != 150 || len(res.Upgrades) != len(game.DefaultUpgradeCatalog()) {
		t.Errorf("Unexpected upgrades response %+v", res)
	}
}

func TestAPIGetEvents(t *testing.T) {
	engine := NewMockEngine()
	for i := 0; i < 5; i++ {
		engine.events = append(engine.events, game.Event{Type: game.EventTypeKill, Frame: uint64(i)})
	}
	ts := newTestServer(t, engine, nil)

	var events []game.Event
	getJSON(t, ts.URL+"/api/events?limit=2", &events)
	if len(events) != 2 || events[1].Frame != 4 {
		t.Errorf("Expected the 2 newest events, got %+v", events)
	}

	if code := getJSON(t, ts.URL+"/api/events?limit=zero", nil); code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a bad limit, got %d", code)
	}
}

func TestAPIRestart(t *testing.T) {
	engine := NewMockEngine()
	ts := newTestServer(t, engine, nil)

	code, body := post(t, ts.URL+"/api/restart")
	if code != http.StatusOK || body["runId"] != "run-2" {
		t.Errorf("Expected the new run in the response, got %d %v", code, body)
	}
}

func TestAPILeaderboard(t *testing.T) {
	engine := NewMockEngine()
	for i := 1; i <= 15; i++ {
		engine.board = append(engine.board, game.RankedRun{
			Rank:      i,
			RunRecord: game.RunRecord{RunID: fmt.Sprintf("run-%d", i), Score: 1000 - i},
		})
	}
	ts := newTestServer(t, engine, nil)

	tests := []struct {
		query string
		code  int
		want  int
	}{
		{"", http.StatusOK, 10},
		{"?limit=3", http.StatusOK, 3},
		{"?limit=500", http.StatusOK, 15},
		{"?limit=-1", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		var runs []game.RankedRun
		code := getJSON(t, ts.URL+"/api/leaderboard"+tt.query, &runs)
		if code != tt.code {
			t.Errorf("%q: expected %d, got %d", tt.query, tt.code, code)
			continue
		}
		if code == http.StatusOK && len(runs) != tt.want {
			t.Errorf("%q: expected %d runs, got %d", tt.query, tt.want, len(runs))
		}
	}

	var runs []game.RankedRun
	getJSON(t, ts.URL+"/api/leaderboard?limit=1", &runs)
	if len(runs) != 1 || runs[0].RunID != "run-1" || runs[0].Rank != 1 || runs[0].Score != 999 {
		t.Errorf("Expected flattened top run, got %+v", runs)
	}
}

func TestAPIFrame(t *testing.T) {
	engine := NewMockEngine()

	// Without a renderer the endpoint is off
	ts := newTestServer(t, engine, nil)
	if code := getJSON(t, ts.URL+"/api/frame.png", nil); code != http.StatusNotFound {
		t.Errorf("Expected 404 without a renderer, got %d", code)
	}

	r := &MockRenderer{}
	ts = newTestServer(t, engine, r)
	resp, err := http.Get(ts.URL + "/api/frame.png")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.Header.Get("Content-Type") != "image/png" {
		t.Errorf("Expected image/png, got %q", resp.Header.Get("Content-Type"))
	}
	if string(body) != "png wave=3" || r.frames != 1 {
		t.Errorf("Unexpected frame body %q", body)
	}
}

func TestAPIRateLimit(t *testing.T) {
	router := api.NewRouter(api.RouterConfig{
		Engine: NewMockEngine(),
		RateLimitConfig: &api.RateLimitConfig{
			RequestsPerSecond: 1,
			Burst:             2,
			CleanupInterval:   time.Hour,
		},
		DisableLogging: true,
	})
	ts := httptest.NewServer(router)
	defer ts.Close()

	limited := false
	for i := 0; i < 5; i++ {
		if code := getJSON(t, ts.URL+"/api/state", nil); code == http.StatusTooManyRequests {
			limited = true
		}
	}
	if !limited {
		t.Error("Expected requests past the burst to be rejected")
	}
}

func TestAPIActionLimit(t *testing.T) {
	router := api.NewRouter(api.RouterConfig{
		Engine: NewMockEngine(),
		RateLimitConfig: &api.RateLimitConfig{
			RequestsPerSecond: 1000,
			Burst:             1000,
			ActionsPerSecond:  0.001,
			ActionBurst:       1,
			CleanupInterval:   time.Hour,
		},
		DisableLogging: true,
	})
	ts := httptest.NewServer(router)
	defer ts.Close()

	if code, _ := post(t, ts.URL+"/api/restart"); code != http.StatusOK {
		t.Fatalf("First restart should pass, got %d", code)
	}
	if code, _ := post(t, ts.URL+"/api/upgrades/rapid_fire"); code != http.StatusTooManyRequests {
		t.Errorf("Second action should be limited, got %d", code)
	}
	if code := getJSON(t, ts.URL+"/api/state", nil); code != http.StatusOK {
		t.Errorf("Reads should still pass, got %d", code)
	}
}

// ============================================================================
// WebSocket Tests
// ============================================================================

func dialWS(t *testing.T, srv *api.Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://localhost:3000"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) api.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if kind != websocket.TextMessage {
		t.Fatalf("Expected a text reply, got type %d", kind)
	}
	var env api.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("Bad reply %q: %v", data, err)
	}
	return env
}

func TestWebSocketCommands(t *testing.T) {
	engine := NewMockEngine()
	srv := api.NewServer(engine, api.ServerConfig{})
	go srv.Hub().Run()
	defer srv.Hub().Stop()

	conn := dialWS(t, srv)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"t":"ping"}`))
	if env := readText(t, conn); env.T != "pong" {
		t.Errorf("Expected pong, got %q", env.T)
	}

	conn.WriteMessage(websocket.TextMessage, []byte(`{"t":"upgrade","d":{"id":"firepower_boost"}}`))
	if env := readText(t, conn); env.T != "upgrade_ok" {
		t.Errorf("Expected upgrade_ok, got %q %v", env.T, env.D)
	}
	if p := engine.Purchases(); len(p) != 1 || !strings.HasPrefix(p[0], "ws:") {
		t.Errorf("Purchase should carry a ws source, got %v", p)
	}

	conn.WriteMessage(websocket.TextMessage, []byte(`{"t":"upgrade","d":{"id":"nope"}}`))
	if env := readText(t, conn); env.T != "upgrade_failed" {
		t.Errorf("Expected upgrade_failed, got %q", env.T)
	}

	conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
	if env := readText(t, conn); env.T != "error" {
		t.Errorf("Expected error, got %q", env.T)
	}
}

func TestWebSocketSnapshotBroadcast(t *testing.T) {
	srv := api.NewServer(NewMockEngine(), api.ServerConfig{})
	hub := srv.Hub()
	go hub.Run()
	defer hub.Stop()

	conn := dialWS(t, srv)

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	frame, err := hub.EncodeSnapshot()
	if err != nil {
		t.Fatalf("EncodeSnapshot: %v", err)
	}
	hub.Broadcast(frame)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if kind != websocket.BinaryMessage {
		t.Fatalf("Snapshots should be binary, got type %d", kind)
	}

	var env struct {
		T string            `msgpack:"t"`
		D game.GameSnapshot `msgpack:"d"`
	}
	dec := msgpack.NewDecoder(strings.NewReader(string(data)))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&env); err != nil {
		t.Fatalf("msgpack decode: %v", err)
	}
	if env.T != "snapshot" || env.D.Sequence != 7 || len(env.D.Enemies) != 1 || env.D.Enemies[0].Color != "#00ff00" {
		t.Errorf("Unexpected snapshot frame %+v", env)
	}
}

func TestWebSocketRejectsOrigin(t *testing.T) {
	srv := api.NewServer(NewMockEngine(), api.ServerConfig{})
	go srv.Hub().Run()
	defer srv.Hub().Stop()

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"https://evil.example"}}
	if _, _, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Error("Foreign origin should be rejected")
	}
}

func TestIsAllowedOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost:5173", true},
		{"http://127.0.0.1:3000", true},
		{"http://localhost", true},
		{"https://kick.com", false},
		{"http://[::1]:8080", true},
		{"ftp://localhost", false},
		{"http://localhost.evil.example", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := api.IsAllowedOrigin(tt.origin); got != tt.want {
			t.Errorf("IsAllowedOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestDebugHandler(t *testing.T) {
	api.RecordFrame(game.FrameStats{Frame: 1, FrameMs: 0.5, Enemies: 3, Rejected: 2})
	api.UpdateEventLogStats(game.EventLogStats{Total: 10, Dropped: 1})

	ts := httptest.NewServer(api.DebugHandler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		"sim_frame_duration_seconds",
		`sim_entities{kind="enemy"} 3`,
		"sim_projectiles_rejected_total 2",
		"event_log_total 10",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("Metrics output missing %q", want)
		}
	}
}
