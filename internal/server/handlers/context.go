package handlers

import (
	"context"

	"github.com/iudanet/fieldsync/internal/models"
)

// contextKey тип для ключей контекста
type contextKey string

const (
	// DeviceIDKey ключ для хранения device_id в контексте
	DeviceIDKey contextKey = "device_id"
	// RoleKey ключ для хранения роли устройства в контексте
	RoleKey contextKey = "role"
)

// WithDevice кладет аутентифицированное устройство в контекст
func WithDevice(ctx context.Context, deviceID string, role models.Role) context.Context {
	ctx = context.WithValue(ctx, DeviceIDKey, deviceID)
	return context.WithValue(ctx, RoleKey, role)
}

// GetDeviceID извлекает device_id из контекста запроса
func GetDeviceID(ctx context.Context) (string, bool) {
	deviceID, ok := ctx.Value(DeviceIDKey).(string)
	return deviceID, ok && deviceID != ""
}

// GetRole извлекает роль устройства из контекста запроса
func GetRole(ctx context.Context) (models.Role, bool) {
	role, ok := ctx.Value(RoleKey).(models.Role)
	return role, ok
}
