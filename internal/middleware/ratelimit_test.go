package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAllowExhaustsWindowThenRefills(t *testing.T) {
	rl := NewRateLimiter(2, 20*time.Millisecond, nil, testLogger())

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))

	// Another IP has its own bucket.
	assert.True(t, rl.Allow("10.0.0.2"))

	time.Sleep(25 * time.Millisecond)
	assert.True(t, rl.Allow("10.0.0.1"))
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute, nil, testLogger())
	var served int
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served++
	}))

	for i, wantCode := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/v1/frames", nil)
		req.RemoteAddr = "10.0.0.1:4242"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, wantCode, rec.Code, "request %d", i)
	}

	assert.Equal(t, 1, served)
	req := httptest.NewRequest(http.MethodPost, "/v1/frames", nil)
	req.RemoteAddr = "10.0.0.1:4242"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestAllowlistedIPBypassesLimit(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute, []string{"10.0.0.9"}, testLogger())
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/frames", nil)
		req.RemoteAddr = "10.0.0.9:4242"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientIP(req))

	req.Header.Del("X-Forwarded-For")
	req.Header.Set("X-Real-IP", "203.0.113.8")
	assert.Equal(t, "203.0.113.8", clientIP(req))

	req.Header.Del("X-Real-IP")
	assert.Equal(t, "127.0.0.1", clientIP(req))
}
