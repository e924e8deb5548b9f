package validation

import (
	"fmt"
	"regexp"
)

// DeviceIDPattern определяет допустимый формат идентификатора устройства
// Латинские буквы, цифры, дефис, нижнее подчеркивание, точка
// Длина: 3-64 символа
var DeviceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,64}$`)

// BatchIDPattern определяет формат клиентского идентификатора батча
var BatchIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

const (
	// MinDeviceIDLen минимальная длина device id
	MinDeviceIDLen = 3
	// MaxDeviceIDLen максимальная длина device id
	MaxDeviceIDLen = 64
	// MinSecretLen минимальная длина секрета устройства
	MinSecretLen = 16
)

// ValidateDeviceID проверяет, что идентификатор устройства соответствует требованиям
func ValidateDeviceID(deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("device id cannot be empty")
	}

	if len(deviceID) < MinDeviceIDLen {
		return fmt.Errorf("device id must be at least %d characters long", MinDeviceIDLen)
	}

	if len(deviceID) > MaxDeviceIDLen {
		return fmt.Errorf("device id must not exceed %d characters", MaxDeviceIDLen)
	}

	if !DeviceIDPattern.MatchString(deviceID) {
		return fmt.Errorf("device id can only contain letters, numbers, dots, dashes and underscores")
	}

	return nil
}

// ValidateSecret проверяет минимальные требования к секрету устройства
func ValidateSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("secret cannot be empty")
	}

	if len(secret) < MinSecretLen {
		return fmt.Errorf("secret must be at least %d characters long", MinSecretLen)
	}

	return nil
}

// ValidateBatchID проверяет клиентский идентификатор батча.
// Пустой идентификатор допустим: сервер сгенерирует его сам.
func ValidateBatchID(batchID string) error {
	if batchID == "" {
		return nil
	}
	if !BatchIDPattern.MatchString(batchID) {
		return fmt.Errorf("batch id can only contain letters, numbers, dashes and underscores (max 64)")
	}
	return nil
}
