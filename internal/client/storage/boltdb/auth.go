package boltdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/fieldsync/internal/client/storage"
	"github.com/iudanet/fieldsync/internal/models"
)

// Учетные данные и токен лежат отдельно: токен меняется при каждом входе,
// секрет устройства только при enroll.
var (
	keyDevice = []byte("device")
	keyToken  = []byte("token")
)

type deviceRecord struct {
	DeviceID string      `json:"device_id"`
	Role     models.Role `json:"role"`
	Secret   string      `json:"secret"`
}

type tokenRecord struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

// SaveAuth сохраняет учетные данные устройства; пустой токен удаляет сохраненный
func (s *Storage) SaveAuth(ctx context.Context, auth *storage.AuthData) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketAuth)
		if err != nil {
			return err
		}

		device := deviceRecord{DeviceID: auth.DeviceID, Role: auth.Role, Secret: auth.Secret}
		if err := putJSON(b, keyDevice, device); err != nil {
			return fmt.Errorf("device credentials: %w", err)
		}

		if auth.AccessToken == "" {
			return b.Delete(keyToken)
		}
		token := tokenRecord{AccessToken: auth.AccessToken, ExpiresAt: auth.ExpiresAt}
		if err := putJSON(b, keyToken, token); err != nil {
			return fmt.Errorf("access token: %w", err)
		}
		return nil
	})
}

// GetAuth возвращает ErrAuthNotFound, пока устройство не зарегистрировано
func (s *Storage) GetAuth(ctx context.Context) (*storage.AuthData, error) {
	var auth *storage.AuthData

	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketAuth)
		if err != nil {
			return err
		}

		raw := b.Get(keyDevice)
		if raw == nil {
			return storage.ErrAuthNotFound
		}
		var device deviceRecord
		if err := json.Unmarshal(raw, &device); err != nil {
			return fmt.Errorf("failed to decode device credentials: %w", err)
		}
		auth = &storage.AuthData{DeviceID: device.DeviceID, Role: device.Role, Secret: device.Secret}

		if raw := b.Get(keyToken); raw != nil {
			var token tokenRecord
			if err := json.Unmarshal(raw, &token); err != nil {
				return fmt.Errorf("failed to decode access token: %w", err)
			}
			auth.AccessToken = token.AccessToken
			auth.ExpiresAt = token.ExpiresAt
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return auth, nil
}

// DeleteAuth забывает устройство вместе с токеном
func (s *Storage) DeleteAuth(ctx context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketAuth)
		if err != nil {
			return err
		}
		if b.Get(keyDevice) == nil {
			return storage.ErrAuthNotFound
		}
		for _, key := range [][]byte{keyDevice, keyToken} {
			if err := b.Delete(key); err != nil {
				return fmt.Errorf("failed to delete auth data: %w", err)
			}
		}
		return nil
	})
}

// IsAuthenticated сообщает, есть ли непросроченный токен
func (s *Storage) IsAuthenticated(ctx context.Context) (bool, error) {
	auth, err := s.GetAuth(ctx)
	switch {
	case errors.Is(err, storage.ErrAuthNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return auth.TokenValid(s.now()), nil
}
