package handlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iudanet/fieldsync/internal/models"
)

const (
	tokenIssuer = "fieldsync"
	tokenLeeway = 5 * time.Second
)

// DeviceClaims содержимое access token: устройство и его роль
type DeviceClaims struct {
	DeviceID string      `json:"device_id"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// JWTConfig ключ подписи и время жизни токенов
type JWTConfig struct {
	Secret         []byte
	AccessTokenTTL time.Duration
}

// GenerateAccessToken выпускает токен HS256 и возвращает его вместе со сроком жизни в секундах
func GenerateAccessToken(cfg JWTConfig, deviceID string, role models.Role) (string, int64, error) {
	issuedAt := time.Now()

	claims := DeviceClaims{
		DeviceID: deviceID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   deviceID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(cfg.AccessTokenTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, int64(cfg.AccessTokenTTL / time.Second), nil
}

// ValidateAccessToken проверяет подпись, срок и издателя токена.
// Токен без устройства или с неизвестной ролью отвергается.
func ValidateAccessToken(cfg JWTConfig, raw string) (*DeviceClaims, error) {
	claims := &DeviceClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return cfg.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(tokenLeeway),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims.DeviceID == "" || claims.Subject != claims.DeviceID {
		return nil, errors.New("token has no device id")
	}
	if _, err := models.ParseRole(string(claims.Role)); err != nil {
		return nil, fmt.Errorf("token has invalid role: %w", err)
	}
	return claims, nil
}
