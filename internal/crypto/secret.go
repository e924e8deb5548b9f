// Package crypto хеширует и проверяет секреты устройств.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// ErrInvalidSecret секрет не совпадает с сохраненным хешем
var ErrInvalidSecret = errors.New("invalid secret")

// Params параметры Argon2id
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

// DefaultParams 64 MiB памяти, одна итерация
var DefaultParams = Params{Time: 1, Memory: 64 * 1024, Threads: 4, KeyLen: 32}

const (
	SaltSize   = 16
	SecretSize = 24
)

func randomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// NewSalt возвращает случайную соль в base64
func NewSalt() (string, error) {
	salt, err := randomBytes(SaltSize)
	if err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(salt), nil
}

// GenerateSecret генерирует секрет устройства для --generate-secret
func GenerateSecret() (string, error) {
	buf, err := randomBytes(SecretSize)
	if err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashSecret считает hex(argon2id(secret)) с параметрами по умолчанию.
// Идентификатор устройства входит в соль: одинаковые секреты разных устройств
// дают разные хеши.
func HashSecret(secret, deviceID, salt string) (string, error) {
	return DefaultParams.Hash(secret, deviceID, salt)
}

// Hash то же, что HashSecret, с явными параметрами
func (p Params) Hash(secret, deviceID, salt string) (string, error) {
	switch {
	case secret == "":
		return "", errors.New("secret cannot be empty")
	case deviceID == "":
		return "", errors.New("device id cannot be empty")
	}

	raw, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return "", fmt.Errorf("failed to decode salt: %w", err)
	}
	if len(raw) != SaltSize {
		return "", fmt.Errorf("salt must be %d bytes, got %d", SaltSize, len(raw))
	}

	key := argon2.IDKey([]byte(secret), append(raw, deviceID...), p.Time, p.Memory, p.Threads, p.KeyLen)
	return hex.EncodeToString(key), nil
}

// VerifySecret возвращает ErrInvalidSecret, если секрет не подходит
func VerifySecret(secret, deviceID, salt, hash string) error {
	if hash == "" {
		return errors.New("stored hash is empty")
	}
	computed, err := HashSecret(secret, deviceID, salt)
	if err != nil {
		return err
	}
	if !EqualConstantTime(computed, hash) {
		return ErrInvalidSecret
	}
	return nil
}

// EqualConstantTime сравнивает ключи регистрации без утечки по времени
func EqualConstantTime(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
