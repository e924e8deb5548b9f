package models

import "time"

// LedgerEntry авторитетное состояние сущности на сервере
type LedgerEntry struct {
	UpdatedAt time.Time `json:"updated_at"` // UpdatedAt время последней записи
	Ref       EntityRef `json:"entity"`     // Ref ссылка на сущность
	DeviceID  string    `json:"device_id"`  // DeviceID устройство, записавшее последнюю версию
	Operation Operation `json:"operation"`  // Operation последняя примененная операция
	Payload   string    `json:"payload"`    // Payload последнее принятое состояние
	Version   int64     `json:"version"`    // Version текущая версия (0 - никогда не записывалась)
	Seq       int64     `json:"seq"`        // Seq серверный порядковый номер изменения
}

// Change одно изменение в ленте для pull
type Change struct {
	Timestamp time.Time `json:"timestamp"`
	Ref       EntityRef `json:"entity"`
	DeviceID  string    `json:"device_id"`
	Operation Operation `json:"operation"`
	Payload   string    `json:"payload"`
	Version   int64     `json:"version"`
	Seq       int64     `json:"seq"`
}

// ChangeFromLedger превращает запись леджера в изменение ленты
func ChangeFromLedger(e *LedgerEntry) Change {
	return Change{
		Timestamp: e.UpdatedAt,
		Ref:       e.Ref,
		DeviceID:  e.DeviceID,
		Operation: e.Operation,
		Payload:   e.Payload,
		Version:   e.Version,
		Seq:       e.Seq,
	}
}

// ChangePage одна страница ленты изменений
type ChangePage struct {
	Changes         []Change
	ServerTimestamp int64
	HasMore         bool
}
