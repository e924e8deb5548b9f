package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/fieldsync/internal/crypto"
	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/internal/server/storage"
	"github.com/iudanet/fieldsync/internal/validation"
	"github.com/iudanet/fieldsync/pkg/api"
)

// EnrollmentKeys ключи регистрации по ролям
type EnrollmentKeys map[models.Role]string

// AuthHandler обрабатывает регистрацию и вход устройств
type AuthHandler struct {
	logger     *slog.Logger
	devices    storage.DeviceStorage
	enrollment EnrollmentKeys
	jwtConfig  JWTConfig
	now        func() time.Time
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, devices storage.DeviceStorage, enrollment EnrollmentKeys, jwtConfig JWTConfig) *AuthHandler {
	return &AuthHandler{
		logger:     logger,
		devices:    devices,
		enrollment: enrollment,
		jwtConfig:  jwtConfig,
		now:        time.Now,
	}
}

// Register обрабатывает POST /api/v1/auth/register
// Регистрация нового устройства по ключу регистрации роли
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode register request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateDeviceID(req.DeviceID); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateSecret(req.Secret); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	// Пустой ключ в конфигурации закрывает регистрацию для роли
	expected := h.enrollment[role]
	if expected == "" || !crypto.EqualConstantTime(expected, req.EnrollmentKey) {
		h.logger.WarnContext(ctx, "registration rejected: invalid enrollment key",
			slog.String("device_id", req.DeviceID),
			slog.String("role", string(role)))
		sendError(h.logger, w, "invalid enrollment key", http.StatusForbidden)
		return
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate salt", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}
	hash, err := crypto.HashSecret(req.Secret, req.DeviceID, salt)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to hash secret", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	device := &models.Device{
		ID:         req.DeviceID,
		Role:       role,
		SecretHash: hash,
		SecretSalt: salt,
		CreatedAt:  h.now(),
	}

	if err := h.devices.CreateDevice(ctx, device); err != nil {
		if errors.Is(err, storage.ErrDeviceAlreadyExists) {
			h.logger.WarnContext(ctx, "device already exists", slog.String("device_id", req.DeviceID))
			sendError(h.logger, w, "device already registered", http.StatusConflict)
			return
		}
		h.logger.ErrorContext(ctx, "failed to create device", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "device registered successfully",
		slog.String("device_id", device.ID),
		slog.String("role", string(role)))

	sendJSON(h.logger, w, api.RegisterResponse{DeviceID: device.ID, Role: string(role)}, http.StatusCreated)
}

// Login обрабатывает POST /api/v1/auth/login
// Аутентификация устройства по секрету
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode login request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := validation.ValidateDeviceID(req.DeviceID); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Secret == "" {
		sendError(h.logger, w, "secret is required", http.StatusBadRequest)
		return
	}

	device, err := h.devices.GetDevice(ctx, req.DeviceID)
	if err != nil {
		if errors.Is(err, storage.ErrDeviceNotFound) {
			h.logger.WarnContext(ctx, "login failed: device not found", slog.String("device_id", req.DeviceID))
			sendError(h.logger, w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get device", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := crypto.VerifySecret(req.Secret, device.ID, device.SecretSalt, device.SecretHash); err != nil {
		h.logger.WarnContext(ctx, "login failed: invalid secret", slog.String("device_id", req.DeviceID))
		sendError(h.logger, w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	accessToken, expiresIn, err := GenerateAccessToken(h.jwtConfig, device.ID, device.Role)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate access token", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.devices.UpdateLastSeen(ctx, device.ID, h.now()); err != nil {
		// Не критичная ошибка, логируем но не прерываем
		h.logger.WarnContext(ctx, "failed to update last seen", slog.Any("error", err))
	}

	h.logger.InfoContext(ctx, "device logged in successfully",
		slog.String("device_id", device.ID),
		slog.String("role", string(device.Role)))

	sendJSON(h.logger, w, api.TokenResponse{
		AccessToken: accessToken,
		Role:        string(device.Role),
		ExpiresIn:   expiresIn,
	}, http.StatusOK)
}
