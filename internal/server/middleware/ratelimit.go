package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter ограничивает число попыток регистрации и входа.
// Окно фиксированное, счетчик ведется на пару (IP клиента, маршрут):
// перебор секретов через login не расходует лимит регистрации.
type RateLimiter struct {
	windows  map[string]*window
	logger   *slog.Logger
	done     chan struct{}
	now      func() time.Time
	limit    int
	period   time.Duration
	mu       sync.Mutex
	stopOnce sync.Once
}

type window struct {
	start time.Time
	used  int
}

// NewRateLimiter создает ограничитель: limit запросов за period на ключ
func NewRateLimiter(limit int, period time.Duration, logger *slog.Logger) *RateLimiter {
	rl := &RateLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
		logger:  logger,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.period * 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.sweep()
		case <-rl.done:
			return
		}
	}
}

// sweep удаляет окна, закончившиеся больше периода назад
func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, w := range rl.windows {
		if now.Sub(w.start) > rl.period*2 {
			delete(rl.windows, key)
		}
	}
}

// Stop останавливает фоновую очистку; повторный вызов безопасен
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// Allow учитывает запрос по ключу. Если лимит исчерпан, возвращает false
// и время до начала следующего окна.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	if !ok || now.Sub(w.start) >= rl.period {
		w = &window{start: now}
		rl.windows[key] = w
	}

	if w.used >= rl.limit {
		return false, w.start.Add(rl.period).Sub(now)
	}
	w.used++
	return true, 0
}

// Middleware отвечает 429 с Retry-After, когда клиент исчерпал лимит маршрута
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		allowed, wait := rl.Allow(ip + " " + r.URL.Path)
		if !allowed {
			rl.logger.WarnContext(r.Context(), "Rate limit exceeded",
				"ip", ip,
				"path", r.URL.Path,
				"request_id", RequestID(r.Context()),
				"retry_after", wait,
			)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
			writeError(w, "too many attempts, please try again later", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// retryAfterSeconds округляет ожидание вверх, минимум одна секунда
func retryAfterSeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}

// clientIP адрес клиента с учетом X-Forwarded-For и X-Real-IP от прокси
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	// порт у одного клиента меняется от соединения к соединению
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
