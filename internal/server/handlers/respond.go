package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/internal/server/storage"
	serversync "github.com/iudanet/fieldsync/internal/server/sync"
	"github.com/iudanet/fieldsync/pkg/api"
)

// sendJSON отправляет JSON ответ
func sendJSON(logger *slog.Logger, w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", slog.Any("error", err))
	}
}

// sendError отправляет JSON ответ с ошибкой
func sendError(logger *slog.Logger, w http.ResponseWriter, message string, statusCode int) {
	resp := api.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	}
	sendJSON(logger, w, resp, statusCode)
}

// statusFor сопоставляет ошибку сервиса с HTTP статусом
func statusFor(err error) int {
	switch {
	case errors.Is(err, serversync.ErrBatchTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case storage.IsNotFound(err):
		return http.StatusNotFound
	case models.IsStateError(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// sendServiceError отвечает ошибкой сервиса; внутренние ошибки логируются и скрываются от клиента
func sendServiceError(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(ctx, op+" failed", slog.Any("error", err))
		sendError(logger, w, "internal server error", status)
		return
	}
	logger.WarnContext(ctx, op+" rejected", slog.Int("status", status), slog.Any("error", err))
	sendError(logger, w, err.Error(), status)
}

// decodeJSON разбирает тело запроса, неизвестные поля отклоняются
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return models.NewValidationError("body", "invalid request body: "+err.Error())
	}
	return nil
}
