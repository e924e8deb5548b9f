package models

import "time"

// OutboxStatus статус записи в клиентском outbox
type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	OutboxStatusSyncing OutboxStatus = "syncing"
	OutboxStatusSynced  OutboxStatus = "synced"
	OutboxStatusFailed  OutboxStatus = "failed"
)

// Retryable reports whether an entry in this status is picked up by the next push.
func (s OutboxStatus) Retryable() bool {
	return s == OutboxStatusPending || s == OutboxStatusFailed
}

// OutboxEntry локальная мутация, ожидающая отправки на сервер
type OutboxEntry struct {
	Timestamp   time.Time    `json:"timestamp"`
	Ref         EntityRef    `json:"entity"`
	Operation   Operation    `json:"operation"`
	Payload     string       `json:"payload"`
	Status      OutboxStatus `json:"status"`
	LastError   string       `json:"last_error,omitempty"`
	ID          uint64       `json:"id"`
	BaseVersion int64        `json:"base_version"`
	RetryCount  int          `json:"retry_count"`
}

// ToDelta превращает запись outbox в дельту для батча
func (e *OutboxEntry) ToDelta() Delta {
	return Delta{
		Ref:         e.Ref,
		Operation:   e.Operation,
		BaseVersion: e.BaseVersion,
		Payload:     e.Payload,
		Timestamp:   e.Timestamp,
	}
}

// LocalEntity локальная копия сущности на устройстве
type LocalEntity struct {
	UpdatedAt time.Time `json:"updated_at"`
	Ref       EntityRef `json:"entity"`
	Payload   string    `json:"payload"`
	Version   int64     `json:"version"` // последняя подтвержденная сервером версия
	Deleted   bool      `json:"deleted"` // локально удалена, удаление еще не подтверждено
}

// Mutation пользовательское изменение сущности на устройстве
type Mutation struct {
	Ref       EntityRef
	Operation Operation
	Payload   string
	At        time.Time
}

// MediaStatus статус локальной загрузки медиа
type MediaStatus string

const (
	MediaStatusPending  MediaStatus = "pending"
	MediaStatusFailed   MediaStatus = "failed"
	MediaStatusUploaded MediaStatus = "uploaded"
)

// MediaUpload локальная очередь загрузки крупного файла (фото)
type MediaUpload struct {
	CreatedAt   time.Time   `json:"created_at"`
	ID          string      `json:"id"`
	Ref         EntityRef   `json:"entity"`
	FilePath    string      `json:"file_path"`
	ContentType string      `json:"content_type"`
	Status      MediaStatus `json:"status"`
	Reference   string      `json:"reference,omitempty"`
	LastError   string      `json:"last_error,omitempty"`
	RetryCount  int         `json:"retry_count"`
}
