package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, setupTestLogger())
	defer rl.Stop()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	ok, _ := rl.Allow("10.0.0.1")
	assert.True(t, ok)
	now = now.Add(20 * time.Second)
	ok, _ = rl.Allow("10.0.0.1")
	assert.True(t, ok)

	ok, wait := rl.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, 40*time.Second, wait)

	// другой ключ не затронут
	ok, _ = rl.Allow("10.0.0.2")
	assert.True(t, ok)

	// новое окно начинается через period после первого запроса
	now = now.Add(40 * time.Second)
	ok, _ = rl.Allow("10.0.0.1")
	assert.True(t, ok)
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute, setupTestLogger())
	defer rl.Stop()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("old")
	now = now.Add(3 * time.Minute)
	rl.Allow("fresh")
	rl.sweep()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.windows, "old")
	assert.Contains(t, rl.windows, "fresh")
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute, setupTestLogger())
	defer rl.Stop()
	rl.Stop()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(path, remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusNoContent, send("/api/v1/auth/login", "192.168.1.1:1000").Code)

	// тот же IP с другого порта
	now = now.Add(1500 * time.Millisecond)
	w := send("/api/v1/auth/login", "192.168.1.1:2000")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "59", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "too many attempts")

	// у регистрации свой лимит
	assert.Equal(t, http.StatusNoContent, send("/api/v1/auth/register", "192.168.1.1:3000").Code)
	assert.Equal(t, http.StatusNoContent, send("/api/v1/auth/login", "192.168.1.2:1000").Code)
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, 59, retryAfterSeconds(58500*time.Millisecond))
	assert.Equal(t, 60, retryAfterSeconds(time.Minute))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		headers map[string]string
		name    string
		remote  string
		want    string
	}{
		{name: "remote addr", remote: "10.1.1.1:5555", want: "10.1.1.1"},
		{name: "remote without port", remote: "10.1.1.1", want: "10.1.1.1"},
		{name: "forwarded for", remote: "10.1.1.1:5555", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, want: "203.0.113.7"},
		{name: "real ip", remote: "10.1.1.1:5555", headers: map[string]string{"X-Real-IP": "198.51.100.2"}, want: "198.51.100.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
