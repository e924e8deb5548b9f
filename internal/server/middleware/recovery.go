package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recovery перехватывает панику обработчика и отвечает 500.
// Ставится внутри AccessLog, чтобы запрос попал в лог с идентификатором.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				attrs := []any{
					"panic", rec,
					"request_id", RequestID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				}
				if info := requestInfoFrom(r.Context()); info != nil && info.deviceID != "" {
					attrs = append(attrs, "device_id", info.deviceID)
				}
				logger.ErrorContext(r.Context(), "Panic recovered", attrs...)

				// детали клиенту не раскрываются
				writeError(w, "internal server error", http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
