package models

import "time"

// Role роль устройства, определяет доступные операции синхронизации
type Role string

const (
	// RoleDevice полевое устройство: push, pull, загрузка медиа
	RoleDevice Role = "device"
	// RoleOperator оператор: pull, просмотр и разрешение конфликтов
	RoleOperator Role = "operator"
)

// ParseRole converts a raw string into a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleDevice, RoleOperator:
		return r, nil
	default:
		return "", NewValidationError("role", "unknown role "+s)
	}
}

// Device представляет зарегистрированное устройство
type Device struct {
	CreatedAt  time.Time  `json:"created_at"`   // время регистрации
	LastSeenAt *time.Time `json:"last_seen_at"` // время последнего входа
	ID         string     `json:"id"`           // идентификатор устройства (задается клиентом)
	Role       Role       `json:"role"`         // роль устройства
	SecretHash string     `json:"secret_hash"`  // argon2id хеш секрета устройства (hex)
	SecretSalt string     `json:"secret_salt"`  // соль для хеша (base64)
}

// UploadStatus статус сессии загрузки медиа на сервере
type UploadStatus string

const (
	UploadStatusOpen      UploadStatus = "open"
	UploadStatusCompleted UploadStatus = "completed"
)

// UploadSession серверная сессия чанковой загрузки
type UploadSession struct {
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	ID          string       `json:"id"`
	DeviceID    string       `json:"device_id"`
	EntityID    string       `json:"entity_id"`
	ContentType string       `json:"content_type"`
	Status      UploadStatus `json:"status"`
	Reference   string       `json:"reference,omitempty"`
	Size        int64        `json:"size"`
	ChunkSize   int64        `json:"chunk_size"`
	Received    int64        `json:"received"` // количество полученных байт
}

// ChunkCount количество чанков, ожидаемых для объявленного размера
func (s *UploadSession) ChunkCount() int {
	if s.ChunkSize <= 0 || s.Size <= 0 {
		return 0
	}
	return int((s.Size + s.ChunkSize - 1) / s.ChunkSize)
}
