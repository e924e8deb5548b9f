package models

import (
	"fmt"
	"strings"
)

// EntityType тип синхронизируемой сущности (закрытое перечисление)
type EntityType string

const (
	EntityTypeProject      EntityType = "project"
	EntityTypeZone         EntityType = "zone"
	EntityTypeInstallation EntityType = "installation"
	EntityTypePhoto        EntityType = "photo"
	EntityTypeMeasurement  EntityType = "measurement"
)

// EntityTypes возвращает все известные типы сущностей в стабильном порядке
func EntityTypes() []EntityType {
	return []EntityType{
		EntityTypeProject,
		EntityTypeZone,
		EntityTypeInstallation,
		EntityTypePhoto,
		EntityTypeMeasurement,
	}
}

// ParseEntityType converts a raw string into a known EntityType.
// Returns ErrUnknownEntityType for anything outside the enumeration.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(strings.TrimSpace(s))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEntityType, s)
	}
	return t, nil
}

// Valid проверяет, что тип входит в перечисление
func (t EntityType) Valid() bool {
	switch t {
	case EntityTypeProject, EntityTypeZone, EntityTypeInstallation, EntityTypePhoto, EntityTypeMeasurement:
		return true
	default:
		return false
	}
}

func (t EntityType) String() string {
	return string(t)
}

// EntityRef identifies what is being synchronized: (entity type, entity id).
type EntityRef struct {
	Type EntityType `json:"entity_type"`
	ID   string     `json:"entity_id"`
}

// NewEntityRef creates a validated entity reference.
// Unknown types and empty ids are rejected.
func NewEntityRef(entityType, id string) (EntityRef, error) {
	t, err := ParseEntityType(entityType)
	if err != nil {
		return EntityRef{}, NewValidationError("entity_type", err.Error())
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return EntityRef{}, NewValidationError("entity_id", "entity id cannot be empty")
	}
	return EntityRef{Type: t, ID: id}, nil
}

// Validate проверяет уже собранную ссылку (например, после JSON декодирования)
func (r EntityRef) Validate() error {
	if !r.Type.Valid() {
		return NewValidationError("entity_type", fmt.Sprintf("%s: %q", ErrUnknownEntityType, r.Type))
	}
	if strings.TrimSpace(r.ID) == "" {
		return NewValidationError("entity_id", "entity id cannot be empty")
	}
	return nil
}

// Key возвращает строковый ключ "type/id", используемый в локальном хранилище
func (r EntityRef) Key() string {
	return string(r.Type) + "/" + r.ID
}

func (r EntityRef) String() string {
	return r.Key()
}

// Operation тип мутации сущности
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// ParseOperation converts a raw string into a known Operation.
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.TrimSpace(s))
	if !op.Valid() {
		return "", NewValidationError("operation", fmt.Sprintf("unknown operation %q", s))
	}
	return op, nil
}

// Valid проверяет, что операция известна
func (o Operation) Valid() bool {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete:
		return true
	default:
		return false
	}
}
