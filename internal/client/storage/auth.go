package storage

import (
	"context"
	"time"

	"github.com/iudanet/fieldsync/internal/models"
)

// AuthStorage хранит учетные данные устройства и текущий токен доступа
type AuthStorage interface {
	// SaveAuth stores authentication data, replacing the previous record
	SaveAuth(ctx context.Context, auth *AuthData) error

	// GetAuth retrieves stored authentication data.
	// Returns ErrAuthNotFound if the device has not enrolled yet.
	GetAuth(ctx context.Context) (*AuthData, error)

	// DeleteAuth removes stored authentication data
	DeleteAuth(ctx context.Context) error

	// IsAuthenticated reports whether an unexpired access token is stored
	IsAuthenticated(ctx context.Context) (bool, error)
}

// AuthData учетные данные устройства.
// Secret нужен для повторного логина, когда истекает access token.
type AuthData struct {
	DeviceID    string      `json:"device_id"`
	Role        models.Role `json:"role"`
	Secret      string      `json:"secret"`
	AccessToken string      `json:"access_token,omitempty"`
	ExpiresAt   int64       `json:"expires_at,omitempty"` // unix seconds
}

// TokenValid reports whether the access token is present and not expired at now.
// A small skew margin avoids sending a token that expires in flight.
func (a *AuthData) TokenValid(now time.Time) bool {
	if a.AccessToken == "" {
		return false
	}
	return now.Add(tokenSkew).Unix() < a.ExpiresAt
}

const tokenSkew = 10 * time.Second
