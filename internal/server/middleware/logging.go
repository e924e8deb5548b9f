package middleware

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader заголовок с идентификатором запроса
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLen = 64

// requestInfo общая для цепочки запись о запросе.
// Внутренние middleware дописывают в нее устройство, access log читает после ответа.
type requestInfo struct {
	id       string
	deviceID string
}

type requestInfoKey struct{}

func requestInfoFrom(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(*requestInfo)
	return info
}

// RequestID возвращает идентификатор текущего запроса
func RequestID(ctx context.Context) string {
	if info := requestInfoFrom(ctx); info != nil {
		return info.id
	}
	return ""
}

func noteDevice(ctx context.Context, deviceID string) {
	if info := requestInfoFrom(ctx); info != nil {
		info.deviceID = deviceID
	}
}

// statusRecorder запоминает статус и размер ответа
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap дает http.ResponseController доступ к исходному writer
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack нужен для websocket соединений /events
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// AccessLog присваивает запросу идентификатор и пишет строку лога после ответа.
// Пути из skipPaths получают идентификатор, но не логируются.
// Заголовки авторизации и тела запросов в лог не попадают.
func AccessLog(logger *slog.Logger, skipPaths ...string) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			info := &requestInfo{id: incomingRequestID(r)}
			w.Header().Set(RequestIDHeader, info.id)
			r = r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, info))

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if _, ok := skip[r.URL.Path]; ok {
				return
			}

			level := slog.LevelInfo
			switch {
			case rec.status >= 500:
				level = slog.LevelError
			case rec.status >= 400:
				level = slog.LevelWarn
			}

			attrs := []any{
				"request_id", info.id,
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"bytes_written", rec.written,
				"remote_addr", r.RemoteAddr,
			}
			if info.deviceID != "" {
				attrs = append(attrs, "device_id", info.deviceID)
			}
			if enc := r.Header.Get("Content-Encoding"); enc != "" {
				attrs = append(attrs, "content_encoding", enc)
			}
			logger.Log(r.Context(), level, "HTTP request", attrs...)
		})
	}
}

// incomingRequestID берет идентификатор клиента или создает новый
func incomingRequestID(r *http.Request) string {
	if id := r.Header.Get(RequestIDHeader); id != "" && len(id) <= maxRequestIDLen {
		return id
	}
	return uuid.NewString()
}
