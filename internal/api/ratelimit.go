package api

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the per-IP token buckets.
// Reads (GET, HEAD) and actions (POST, websocket purchases) draw from
// separate buckets. Zero action settings fall back to the read settings.
type RateLimitConfig struct {
	RequestsPerSecond float64       // Read requests per second per IP
	Burst             int           // Read burst
	ActionsPerSecond  float64       // Purchases and restarts per second per IP
	ActionBurst       int           // Action burst
	CleanupInterval   time.Duration // Idle clients are dropped after twice this
}

// DefaultRateLimitConfig returns production-safe defaults
var DefaultRateLimitConfig = RateLimitConfig{
	RequestsPerSecond: 20, // the client polls state and stats
	Burst:             40,
	ActionsPerSecond:  4,
	ActionBurst:       8, // a quick run of upgrade clicks
	CleanupInterval:   5 * time.Minute,
}

type ipClient struct {
	read     *rate.Limiter
	action   *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps a read and an action bucket per client IP
type IPRateLimiter struct {
	mu      sync.Mutex
	clients map[string]*ipClient
	config  RateLimitConfig

	stopChan chan struct{}
	stopOnce sync.Once

	allowed  atomic.Uint64
	rejected atomic.Uint64
}

// NewIPRateLimiter creates a limiter and starts its idle-client sweeper
func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	if cfg.ActionsPerSecond <= 0 {
		cfg.ActionsPerSecond = cfg.RequestsPerSecond
	}
	if cfg.ActionBurst <= 0 {
		cfg.ActionBurst = cfg.Burst
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultRateLimitConfig.CleanupInterval
	}

	rl := &IPRateLimiter{
		clients:  make(map[string]*ipClient),
		config:   cfg,
		stopChan: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the sweeper
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopChan)
	})
}

func (rl *IPRateLimiter) client(ip string) *ipClient {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[ip]
	if !ok {
		c = &ipClient{
			read:   rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst),
			action: rate.NewLimiter(rate.Limit(rl.config.ActionsPerSecond), rl.config.ActionBurst),
		}
		rl.clients[ip] = c
	}
	c.lastSeen = time.Now()
	return c
}

func (rl *IPRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			rl.cleanup(time.Now())
		}
	}
}

func (rl *IPRateLimiter) cleanup(now time.Time) int {
	cutoff := now.Add(-2 * rl.config.CleanupInterval)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for ip, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, ip)
			removed++
		}
	}
	return removed
}

func (rl *IPRateLimiter) count(ok bool) bool {
	if ok {
		rl.allowed.Add(1)
	} else {
		rl.rejected.Add(1)
	}
	return ok
}

// Allow takes a token from the IP's read bucket
func (rl *IPRateLimiter) Allow(ip string) bool {
	return rl.count(rl.client(ip).read.Allow())
}

// AllowAction takes a token from the IP's action bucket
func (rl *IPRateLimiter) AllowAction(ip string) bool {
	return rl.count(rl.client(ip).action.Allow())
}

// Middleware rejects requests over the caller's bucket with 429
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := GetClientIP(r)

		allow, reason := rl.AllowAction, "action_limit"
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			allow, reason = rl.Allow, "rate_limit"
		}
		if !allow(ip) {
			RecordConnectionRejected(reason)
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetStats returns rate limiter statistics
func (rl *IPRateLimiter) GetStats() map[string]uint64 {
	rl.mu.Lock()
	clients := len(rl.clients)
	rl.mu.Unlock()

	return map[string]uint64{
		"allowed":  rl.allowed.Load(),
		"rejected": rl.rejected.Load(),
		"clients":  uint64(clients),
	}
}

// GetClientIP returns the caller's IP. Forwarding headers are only
// honoured when the direct peer is a loopback proxy.
func GetClientIP(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}

	if ip := net.ParseIP(peer); ip == nil || !ip.IsLoopback() {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	return peer
}

// ConnLimiter caps concurrent websocket connections per IP
type ConnLimiter struct {
	mu       sync.Mutex
	conns    map[string]int
	maxPerIP int
	rejected atomic.Uint64
}

// NewConnLimiter creates a limiter allowing maxPerIP open connections per IP
func NewConnLimiter(maxPerIP int) *ConnLimiter {
	return &ConnLimiter{
		conns:    make(map[string]int),
		maxPerIP: maxPerIP,
	}
}

// Acquire reserves a slot for ip. Every true result needs a Release.
func (cl *ConnLimiter) Acquire(ip string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.conns[ip] >= cl.maxPerIP {
		cl.rejected.Add(1)
		return false
	}
	cl.conns[ip]++
	return true
}

// Release frees a slot reserved by Acquire
func (cl *ConnLimiter) Release(ip string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	switch n := cl.conns[ip]; {
	case n > 1:
		cl.conns[ip] = n - 1
	case n == 1:
		delete(cl.conns, ip)
	}
}

// Count returns the open connections for ip
func (cl *ConnLimiter) Count(ip string) int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.conns[ip]
}

// Rejected returns how many connections were refused
func (cl *ConnLimiter) Rejected() uint64 {
	return cl.rejected.Load()
}

// AllowedOrigins lists extra browser origins beyond the loopback hosts
var AllowedOrigins = []string{}

var loopbackHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"::1":       true,
}

// IsAllowedOrigin accepts loopback origins on any port plus AllowedOrigins
func IsAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}

	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	if loopbackHosts[u.Hostname()] {
		return true
	}

	for _, allowed := range AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}
