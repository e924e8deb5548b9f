// Package domain holds per-entity-type payload rules consulted before a batch is processed.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iudanet/fieldsync/internal/models"
)

// Validator проверяет payload одного типа сущности
type Validator interface {
	Validate(op models.Operation, payload string) error
}

// ValidatorFunc адаптер функции к Validator
type ValidatorFunc func(op models.Operation, payload string) error

// Validate implements Validator
func (f ValidatorFunc) Validate(op models.Operation, payload string) error {
	return f(op, payload)
}

// Registry набор валидаторов по типам сущностей
type Registry struct {
	validators map[models.EntityType]Validator
}

// NewRegistry создает пустой реестр: любой payload принимается
func NewRegistry() *Registry {
	return &Registry{validators: make(map[models.EntityType]Validator)}
}

// DefaultRegistry реестр с правилами полевых сущностей
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, t := range models.EntityTypes() {
		r.Register(t, ValidatorFunc(requireObject))
	}
	r.Register(models.EntityTypePhoto, ValidatorFunc(validatePhoto))
	r.Register(models.EntityTypeMeasurement, ValidatorFunc(validateMeasurement))
	return r
}

// Register заменяет валидатор типа сущности
func (r *Registry) Register(t models.EntityType, v Validator) {
	r.validators[t] = v
}

// Validate проверяет payload дельты. Ошибки оборачивают models.ErrValidation.
func (r *Registry) Validate(d models.Delta) error {
	v, ok := r.validators[d.Ref.Type]
	if !ok {
		return nil
	}
	if err := v.Validate(d.Operation, d.Payload); err != nil {
		return models.NewValidationError("payload", fmt.Sprintf("%s: %v", d.Ref, err))
	}
	return nil
}

// requireObject payload не-удаления должен быть JSON объектом
func requireObject(op models.Operation, payload string) error {
	if op == models.OperationDelete {
		return nil
	}
	_, err := decodeObject(payload)
	return err
}

func decodeObject(payload string) (map[string]json.RawMessage, error) {
	trimmed := strings.TrimSpace(payload)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, fmt.Errorf("payload must be a JSON object")
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	return obj, nil
}

func validatePhoto(op models.Operation, payload string) error {
	if op == models.OperationDelete {
		return nil
	}
	var photo models.Photo
	if err := decodeInto(payload, &photo); err != nil {
		return err
	}
	if photo.MediaRef != "" && !strings.HasPrefix(photo.MediaRef, models.MediaRefScheme) {
		return fmt.Errorf("media_ref must use the %s scheme", models.MediaRefScheme)
	}
	return nil
}

func validateMeasurement(op models.Operation, payload string) error {
	if op == models.OperationDelete {
		return nil
	}
	var m models.Measurement
	if err := decodeInto(payload, &m); err != nil {
		return err
	}
	if m.Value == nil {
		return fmt.Errorf("measurement requires a numeric value")
	}
	return nil
}

func decodeInto(payload string, v any) error {
	if _, err := decodeObject(payload); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}
