package api

import "time"

// InitUploadRequest запрос на открытие сессии загрузки
type InitUploadRequest struct {
	EntityID    string `json:"entity_id"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// InitUploadResponse открытая сессия загрузки
type InitUploadResponse struct {
	UploadID  string `json:"upload_id"`
	ChunkSize int64  `json:"chunk_size"`
}

// CompleteUploadResponse ссылка на собранный файл
type CompleteUploadResponse struct {
	Reference string `json:"reference"` // media://...
}

// Event событие синхронизации в потоке /events
type Event struct {
	At            time.Time `json:"at"`
	Type          string    `json:"type"`
	BatchID       string    `json:"batch_id,omitempty"`
	ConflictID    string    `json:"conflict_id,omitempty"`
	DeviceID      string    `json:"device_id"`
	EntityType    string    `json:"entity_type,omitempty"`
	EntityID      string    `json:"entity_id,omitempty"`
	Status        string    `json:"status,omitempty"`
	ResolvedBy    string    `json:"resolved_by,omitempty"`
	AppliedCount  int       `json:"applied_count,omitempty"`
	ConflictCount int       `json:"conflict_count,omitempty"`
	Version       int64     `json:"version,omitempty"`
}
