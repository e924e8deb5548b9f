package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/internal/server/storage"
)

// CreateDevice registers a new device
func (s *Storage) CreateDevice(ctx context.Context, device *models.Device) error {
	query := `
		INSERT INTO devices (id, role, secret_hash, secret_salt, created_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		device.ID,
		string(device.Role),
		device.SecretHash,
		device.SecretSalt,
		timeToInt(device.CreatedAt),
		nullTimeToInt(device.LastSeenAt),
	)

	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDeviceAlreadyExists
		}
		return fmt.Errorf("failed to insert device: %w", err)
	}

	return nil
}

// GetDevice retrieves device by ID
func (s *Storage) GetDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	query := `
		SELECT id, role, secret_hash, secret_salt, created_at, last_seen_at
		FROM devices
		WHERE id = ?
	`

	device := &models.Device{}
	var role string
	var createdAt int64
	var lastSeen sql.NullInt64

	err := s.db.QueryRowContext(ctx, query, deviceID).Scan(
		&device.ID,
		&role,
		&device.SecretHash,
		&device.SecretSalt,
		&createdAt,
		&lastSeen,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	device.Role = models.Role(role)
	device.CreatedAt = intToTime(createdAt)
	device.LastSeenAt = nullIntToTime(lastSeen)

	return device, nil
}

// UpdateLastSeen updates the last successful login timestamp
func (s *Storage) UpdateLastSeen(ctx context.Context, deviceID string, at time.Time) error {
	query := `UPDATE devices SET last_seen_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, timeToInt(at), deviceID)
	if err != nil {
		return fmt.Errorf("failed to update last seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrDeviceNotFound
	}

	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
