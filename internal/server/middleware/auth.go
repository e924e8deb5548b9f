// Package middleware contains HTTP middleware of the sync server.
package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/internal/server/handlers"
	"github.com/iudanet/fieldsync/pkg/api"
)

// AuthMiddleware создает middleware для проверки JWT токена устройства
func AuthMiddleware(logger *slog.Logger, jwtConfig handlers.JWTConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем токен из заголовка Authorization
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.WarnContext(r.Context(), "Missing Authorization header", "path", r.URL.Path)
				writeError(w, "missing token", http.StatusUnauthorized)
				return
			}

			// Ожидаем формат: "Bearer <token>"
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				logger.WarnContext(r.Context(), "Invalid Authorization header format")
				writeError(w, "invalid token format", http.StatusUnauthorized)
				return
			}

			claims, err := handlers.ValidateAccessToken(jwtConfig, parts[1])
			if err != nil {
				logger.WarnContext(r.Context(), "Invalid access token", "error", err)
				writeError(w, "invalid token", http.StatusUnauthorized)
				return
			}

			noteDevice(r.Context(), claims.DeviceID)
			ctx := handlers.WithDevice(r.Context(), claims.DeviceID, claims.Role)
			logger.DebugContext(ctx, "Device authenticated", "device_id", claims.DeviceID, "role", claims.Role)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole пропускает только устройства с одной из ролей; ставится после AuthMiddleware
func RequireRole(logger *slog.Logger, roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := handlers.GetRole(r.Context())
			if !ok {
				writeError(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !slices.Contains(roles, role) {
				deviceID, _ := handlers.GetDeviceID(r.Context())
				logger.WarnContext(r.Context(), "Role not allowed",
					"device_id", deviceID,
					"role", role,
					"path", r.URL.Path)
				writeError(w, "role "+string(role)+" is not allowed here", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeError отвечает в формате api.ErrorResponse
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(errorBody(message, status))
}

func errorBody(message string, status int) []byte {
	resp := api.ErrorResponse{Error: http.StatusText(status), Message: message}
	data, err := json.Marshal(resp)
	if err != nil {
		return []byte(`{"error":"` + http.StatusText(status) + `"}`)
	}
	return data
}
