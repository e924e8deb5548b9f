package models

// Типизированные представления полезной нагрузки сущностей.
// Ядро синхронизации работает с payload как с непрозрачной строкой,
// эти структуры используются только валидаторами домена и CLI.

// Project представляет проект (объект работ)
type Project struct {
	ID     string `json:"id"`               // ID идентификатор проекта
	Name   string `json:"name"`             // Name название проекта
	Client string `json:"client,omitempty"` // Client заказчик
}

// Zone представляет зону внутри проекта
type Zone struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
}

// Installation представляет установленное оборудование в зоне
type Installation struct {
	ID     string `json:"id"`
	ZoneID string `json:"zone_id"`
	Kind   string `json:"kind"`
	Serial string `json:"serial,omitempty"`
}

// Photo представляет фотографию; бинарные данные хранятся отдельно,
// в payload только ссылка на объект в blob storage.
type Photo struct {
	ID             string `json:"id"`
	InstallationID string `json:"installation_id,omitempty"`
	Caption        string `json:"caption,omitempty"`
	MediaRef       string `json:"media_ref,omitempty"` // MediaRef ссылка вида media://...
}

// Measurement представляет единичное измерение
type Measurement struct {
	Value          *float64 `json:"value"`
	ID             string   `json:"id"`
	InstallationID string   `json:"installation_id,omitempty"`
	Unit           string   `json:"unit,omitempty"`
}

// MediaRefScheme префикс ссылок на загруженные медиа
const MediaRefScheme = "media://"
