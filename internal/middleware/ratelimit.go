// Package middleware holds the HTTP middleware guarding the service's
// routes.
package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimiter is a per-IP fixed-window request limiter. The service runs
// two instances: a general one in front of the whole mux and a tighter
// one on the frames endpoint, where every accepted request can fan out
// into OCR calls.
type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     int
	window    time.Duration
	allowlist map[string]struct{}
	logger    *slog.Logger
}

type bucket struct {
	remaining   int
	windowStart time.Time
}

// NewRateLimiter allows limit requests per window for each client IP.
// Allowlisted IPs bypass the limiter entirely.
func NewRateLimiter(limit int, window time.Duration, allowlist []string, logger *slog.Logger) *RateLimiter {
	allowed := make(map[string]struct{}, len(allowlist))
	for _, ip := range allowlist {
		if ip = strings.TrimSpace(ip); ip != "" {
			allowed[ip] = struct{}{}
		}
	}

	rl := &RateLimiter{
		buckets:   make(map[string]*bucket),
		limit:     limit,
		window:    window,
		allowlist: allowed,
		logger:    logger.With("component", "rate_limiter"),
	}

	go rl.evictLoop()

	return rl
}

// Allow consumes one request slot for the IP, opening a fresh window
// when the previous one has elapsed.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[ip]
	if !ok || now.Sub(b.windowStart) > rl.window {
		rl.buckets[ip] = &bucket{remaining: rl.limit - 1, windowStart: now}
		return true
	}

	if b.remaining > 0 {
		b.remaining--
		return true
	}
	return false
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if _, allowed := rl.allowlist[ip]; allowed {
			next.ServeHTTP(w, r)
			return
		}

		if !rl.Allow(ip) {
			rl.logger.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// evictLoop drops buckets idle for two full windows.
func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(rl.window * 2)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for ip, b := range rl.buckets {
			if now.Sub(b.windowStart) > rl.window*2 {
				delete(rl.buckets, ip)
			}
		}
		rl.mu.Unlock()
	}
}

func clientIP(r *http.Request) string {
	// X-Forwarded-For from a reverse proxy: "client, proxy1, proxy2"
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if host, _, err := net.SplitHostPort(first); err == nil {
			return host
		}
		return first
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
