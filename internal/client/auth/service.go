// Package auth manages device enrollment and access tokens on the client.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/fieldsync/internal/client/storage"
	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/internal/validation"
	"github.com/iudanet/fieldsync/pkg/api"
)

// ErrNotEnrolled устройство еще не зарегистрировано на сервере
var ErrNotEnrolled = errors.New("device is not enrolled, run 'fieldsync enroll' first")

// API методы сервера, нужные для аутентификации
type API interface {
	Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error)
	Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error)
}

// Service регистрирует устройство и выдает действующий access token.
// Секрет устройства хранится локально, поэтому истекший токен обновляется повторным логином.
type Service struct {
	api     API
	storage storage.AuthStorage
	logger  *slog.Logger
	now     func() time.Time
	mu      sync.Mutex
}

// NewService создает сервис аутентификации
func NewService(apiClient API, authStorage storage.AuthStorage, logger *slog.Logger) *Service {
	return &Service{
		api:     apiClient,
		storage: authStorage,
		logger:  logger,
		now:     time.Now,
	}
}

// Enroll регистрирует устройство с ключом регистрации роли и сразу выполняет вход
func (s *Service) Enroll(ctx context.Context, deviceID string, role models.Role, enrollmentKey, secret string) (*storage.AuthData, error) {
	if err := validation.ValidateDeviceID(deviceID); err != nil {
		return nil, fmt.Errorf("invalid device id: %w", err)
	}
	if err := validation.ValidateSecret(secret); err != nil {
		return nil, fmt.Errorf("invalid secret: %w", err)
	}
	if _, err := models.ParseRole(string(role)); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.api.Register(ctx, api.RegisterRequest{
		DeviceID:      deviceID,
		Role:          string(role),
		EnrollmentKey: enrollmentKey,
		Secret:        secret,
	}); err != nil {
		return nil, fmt.Errorf("enrollment failed: %w", err)
	}

	auth := &storage.AuthData{DeviceID: deviceID, Role: role, Secret: secret}
	if err := s.login(ctx, auth); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Device enrolled", "device_id", deviceID, "role", role)
	return auth, nil
}

// Login выполняет вход с сохраненными учетными данными
func (s *Service) Login(ctx context.Context) (*storage.AuthData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	auth, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.login(ctx, auth); err != nil {
		return nil, err
	}
	return auth, nil
}

// EnsureToken возвращает действующий токен, при необходимости выполняя повторный вход
func (s *Service) EnsureToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	auth, err := s.current(ctx)
	if err != nil {
		return "", err
	}
	if auth.TokenValid(s.now()) {
		return auth.AccessToken, nil
	}

	s.logger.DebugContext(ctx, "Access token expired, logging in again", "device_id", auth.DeviceID)
	if err := s.login(ctx, auth); err != nil {
		return "", err
	}
	return auth.AccessToken, nil
}

// Invalidate забывает токен, отвергнутый сервером; следующий EnsureToken выполнит вход
func (s *Service) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	auth, err := s.current(ctx)
	if err != nil {
		return err
	}
	auth.AccessToken = ""
	auth.ExpiresAt = 0
	return s.storage.SaveAuth(ctx, auth)
}

// Current возвращает сохраненные учетные данные
func (s *Service) Current(ctx context.Context) (*storage.AuthData, error) {
	return s.current(ctx)
}

// Logout удаляет учетные данные устройства
func (s *Service) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.DeleteAuth(ctx); err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return ErrNotEnrolled
		}
		return fmt.Errorf("failed to delete auth data: %w", err)
	}
	return nil
}

func (s *Service) current(ctx context.Context) (*storage.AuthData, error) {
	auth, err := s.storage.GetAuth(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrAuthNotFound) {
			return nil, ErrNotEnrolled
		}
		return nil, fmt.Errorf("failed to read auth data: %w", err)
	}
	return auth, nil
}

// login получает новый токен и сохраняет его вместе с учетными данными
func (s *Service) login(ctx context.Context, auth *storage.AuthData) error {
	resp, err := s.api.Login(ctx, api.LoginRequest{DeviceID: auth.DeviceID, Secret: auth.Secret})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if resp.Role != "" {
		role, err := models.ParseRole(resp.Role)
		if err != nil {
			return fmt.Errorf("server returned unknown role: %w", err)
		}
		auth.Role = role
	}
	auth.AccessToken = resp.AccessToken
	auth.ExpiresAt = s.now().Add(time.Duration(resp.ExpiresIn) * time.Second).Unix()

	if err := s.storage.SaveAuth(ctx, auth); err != nil {
		return fmt.Errorf("failed to save auth data: %w", err)
	}
	return nil
}
