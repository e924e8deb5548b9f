package api

import "time"

// Delta одна мутация сущности в батче
type Delta struct {
	Timestamp   time.Time `json:"timestamp"`
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	Operation   string    `json:"operation"`
	Payload     string    `json:"payload"`
	BaseVersion int64     `json:"base_version"`
}

// BatchRequest представляет запрос на отправку батча изменений
type BatchRequest struct {
	BatchID  string  `json:"batch_id,omitempty"` // клиентский id для идемпотентного повтора
	DeviceID string  `json:"device_id"`
	Deltas   []Delta `json:"deltas"`
}

// AppliedVersion версия, порожденная принятой дельтой
type AppliedVersion struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Version    int64  `json:"version"`
}

// Conflict представление конфликта в API
type Conflict struct {
	DetectedAt      time.Time  `json:"detected_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	ResolvedPayload *string    `json:"resolved_payload,omitempty"`
	ID              string     `json:"id"`
	BatchID         string     `json:"batch_id"`
	DeviceID        string     `json:"device_id"`
	EntityType      string     `json:"entity_type"`
	EntityID        string     `json:"entity_id"`
	Operation       string     `json:"operation"`
	ClientPayload   string     `json:"client_payload"`
	ServerPayload   string     `json:"server_payload"`
	Status          string     `json:"status"`
	ResolvedBy      string     `json:"resolved_by,omitempty"`
	ClientVersion   int64      `json:"client_version"`
	ServerVersion   int64      `json:"server_version"`
}

// BatchResponse результат обработки батча
type BatchResponse struct {
	BatchID       string           `json:"batch_id"`
	Status        string           `json:"status"`
	Applied       []AppliedVersion `json:"applied"`
	Conflicts     []Conflict       `json:"conflicts"`
	AppliedCount  int              `json:"applied_count"`
	ConflictCount int              `json:"conflict_count"`
	Replayed      bool             `json:"replayed"`
}

// Change одно изменение в ленте
type Change struct {
	Timestamp  time.Time `json:"timestamp"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Operation  string    `json:"operation"`
	Payload    string    `json:"payload"`
	DeviceID   string    `json:"device_id"`
	Version    int64     `json:"version"`
}

// ChangesResponse страница ленты изменений
type ChangesResponse struct {
	Changes         []Change `json:"changes"`
	ServerTimestamp int64    `json:"server_timestamp"` // порядковый номер последнего изменения страницы
	HasMore         bool     `json:"has_more"`
}

// ConflictsResponse список конфликтов
type ConflictsResponse struct {
	Conflicts []Conflict `json:"conflicts"`
}

// ResolveRequest запрос на разрешение конфликта
type ResolveRequest struct {
	MergedPayload *string `json:"merged_payload,omitempty"`
	Strategy      string  `json:"strategy"` // client_wins|server_wins|manual_merge
}
