package api

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"cyber-defense/internal/game"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 500

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 10

	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 1024
	sendBufSize       = 16
	maxMessagesPerSec = 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// Use the centralized origin checker
		if IsAllowedOrigin(origin) {
			return true
		}

		// Log rejected origin for security monitoring
		log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
		RecordConnectionRejected("origin")
		return false
	},
}

// Envelope frames every websocket message. Snapshots go out as msgpack
// binary frames; replies to client commands are JSON text frames.
type Envelope struct {
	T string      `json:"t"`
	D interface{} `json:"d,omitempty"`
}

// clientMessage is a command sent by a browser client.
type clientMessage struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

type upgradeCommand struct {
	ID string `json:"id"`
}

// wsClient tracks a WebSocket connection with its source IP
type wsClient struct {
	hub  *WebSocketHub
	conn *websocket.Conn
	ip   string
	send chan []byte

	closed bool // send is closed; guarded by hub.mu

	msgCount   int
	msgResetAt time.Time
}

// WebSocketHub manages all WebSocket connections with DoS protection
type WebSocketHub struct {
	engine EngineInterface

	clients    map[*wsClient]struct{}
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan []byte
	mu         sync.RWMutex

	stopChan chan struct{}
	stopOnce sync.Once

	// Connection limiting per IP
	wsLimiter *ConnLimiter

	// Optional; throttles upgrade commands per IP
	actions *IPRateLimiter

	// Reused by the broadcast loop only
	snap game.GameSnapshot
	buf  bytes.Buffer
	enc  *msgpack.Encoder
}

// NewWebSocketHub creates a new hub with connection limiting
func NewWebSocketHub(engine EngineInterface) *WebSocketHub {
	h := &WebSocketHub{
		engine:     engine,
		clients:    make(map[*wsClient]struct{}),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan []byte, 4),
		stopChan:   make(chan struct{}),
		wsLimiter:  NewConnLimiter(MaxWSConnectionsPerIP),
	}
	h.enc = msgpack.NewEncoder(&h.buf)
	h.enc.SetCustomStructTag("json")
	h.enc.UseCompactInts(true)
	return h
}

// Run starts the hub
func (h *WebSocketHub) Run() {
	for {
		select {
		case <-h.stopChan:
			h.mu.Lock()
			for c := range h.clients {
				c.closed = true
				close(c.send)
				delete(h.clients, c)
				h.wsLimiter.Release(c.ip)
			}
			h.mu.Unlock()
			UpdateWSConnections(0)
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client connected from %s (%d total)", c.ip, count)
			UpdateWSConnections(count)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				// Release the connection slot for this IP
				h.wsLimiter.Release(c.ip)
				delete(h.clients, c)
				c.closed = true
				close(c.send)
			}
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client disconnected (%d remaining)", count)
			UpdateWSConnections(count)

		case message := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					// Slow client, drop this frame for it
				}
			}
			h.mu.RUnlock()
			IncrementWSMessages()
		}
	}
}

// Stop closes every client and ends Run.
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
}

// Broadcast queues a pre-encoded binary frame for all clients
func (h *WebSocketHub) Broadcast(frame []byte) {
	select {
	case h.broadcast <- frame:
	default:
		// Channel full, skip (backpressure)
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// EncodeSnapshot copies the latest snapshot and encodes it as a msgpack
// envelope. The returned slice is owned by the caller. Not safe for
// concurrent use; only the broadcast loop calls it.
func (h *WebSocketHub) EncodeSnapshot() ([]byte, error) {
	h.engine.CopySnapshot(&h.snap)

	h.buf.Reset()
	if err := h.enc.Encode(Envelope{T: "snapshot", D: &h.snap}); err != nil {
		return nil, err
	}
	out := make([]byte, h.buf.Len())
	copy(out, h.buf.Bytes())
	return out, nil
}

// StartBroadcastLoop pushes snapshots to clients every interval
func (h *WebSocketHub) StartBroadcastLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-h.stopChan:
				return
			case <-ticker.C:
			}

			UpdateEventLogStats(h.engine.GetEventLogStats())

			if h.ClientCount() == 0 {
				continue
			}

			frame, err := h.EncodeSnapshot()
			if err != nil {
				log.Printf("❌ Snapshot encode failed: %v", err)
				continue
			}
			h.Broadcast(frame)
		}
	}()
}

// HandleWebSocket handles incoming WebSocket connections with DoS protection
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Get client IP for rate limiting
	ip := GetClientIP(r)

	// Check total connection limit
	if total := h.ClientCount(); total >= MaxWSConnectionsTotal {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached (%d)", total)
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	// Check per-IP connection limit
	if !h.wsLimiter.Acquire(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.wsLimiter.Release(ip) // Release the slot we reserved
		return
	}

	c := &wsClient{
		hub:  h,
		conn: conn,
		ip:   ip,
		send: make(chan []byte, sendBufSize),
	}
	select {
	case h.register <- c:
	case <-h.stopChan:
		h.wsLimiter.Release(ip)
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopChan:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("⚠️ WebSocket error from %s: %v", c.ip, err)
			}
			return
		}

		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Printf("⚠️ WebSocket rate limit exceeded for %s, disconnecting", c.ip)
			RecordConnectionRejected("rate_limit")
			return
		}

		if reply := c.hub.handleCommand(c.ip, message); reply != nil {
			c.sendText(reply)
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// JSON replies start with '{'; msgpack maps never do
			kind := websocket.BinaryMessage
			if len(message) > 0 && message[0] == '{' {
				kind = websocket.TextMessage
			}
			if err := c.conn.WriteMessage(kind, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendText queues a reply without blocking. It reports false if the
// reply was dropped because the buffer is full or the hub has closed
// the client.
func (c *wsClient) sendText(msg []byte) bool {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// handleCommand runs a client command and returns the JSON reply.
func (h *WebSocketHub) handleCommand(ip string, raw []byte) []byte {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return encodeReply("error", map[string]string{"error": "invalid message"})
	}

	switch msg.T {
	case "ping":
		return encodeReply("pong", nil)

	case "state":
		return encodeReply("state", h.engine.GetState())

	case "upgrades":
		return encodeReply("upgrades", h.engine.Upgrades())

	case "leaderboard":
		return encodeReply("leaderboard", h.engine.Leaderboard(game.LeaderboardSize))

	case "upgrade":
		var cmd upgradeCommand
		if err := json.Unmarshal(msg.D, &cmd); err != nil || cmd.ID == "" {
			return encodeReply("error", map[string]string{"error": "upgrade needs an id"})
		}
		if h.actions != nil && !h.actions.AllowAction(ip) {
			RecordConnectionRejected("action_limit")
			return encodeReply("upgrade_failed", map[string]string{"id": cmd.ID, "error": "rate limited"})
		}
		st, err := h.engine.PurchaseUpgrade(cmd.ID, "ws:"+ip)
		if err != nil {
			RecordUpgradeRejected(upgradeErrorReason(err))
			return encodeReply("upgrade_failed", map[string]string{"id": cmd.ID, "error": err.Error()})
		}
		RecordUpgradePurchased(cmd.ID)
		return encodeReply("upgrade_ok", st)

	default:
		return encodeReply("error", map[string]string{"error": "unknown command " + msg.T})
	}
}

func encodeReply(t string, d interface{}) []byte {
	data, err := json.Marshal(Envelope{T: t, D: d})
	if err != nil {
		log.Printf("❌ Reply encode failed: %v", err)
		return nil
	}
	return data
}
