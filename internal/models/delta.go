package models

import (
	"time"
)

// Delta представляет одну предложенную клиентом мутацию сущности.
// Delta неизменяема: процессор только читает ее поля.
type Delta struct {
	Timestamp   time.Time `json:"timestamp"`    // Timestamp клиентское время изменения
	Ref         EntityRef `json:"entity"`       // Ref ссылка на сущность
	Operation   Operation `json:"operation"`    // Operation create/update/delete
	Payload     string    `json:"payload"`      // Payload полное сериализованное состояние сущности
	BaseVersion int64     `json:"base_version"` // BaseVersion версия, которую клиент считал текущей
}

// Validate checks the delta shape before any processing happens.
func (d Delta) Validate() error {
	if err := d.Ref.Validate(); err != nil {
		return err
	}
	if !d.Operation.Valid() {
		return NewValidationError("operation", "unknown operation "+string(d.Operation))
	}
	if d.BaseVersion < 0 {
		return NewValidationError("base_version", "base version cannot be negative")
	}
	return nil
}

// AppliedDelta delta, принятая процессором, вместе с версией, которую она породила
type AppliedDelta struct {
	Delta
	NewVersion int64 `json:"new_version"`
}
