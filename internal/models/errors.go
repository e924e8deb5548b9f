package models

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	// ErrValidation is the parent of every input validation failure
	ErrValidation = errors.New("validation failed")

	// ErrUnknownEntityType indicates an entity type outside the closed enumeration
	ErrUnknownEntityType = fmt.Errorf("%w: unknown entity type", ErrValidation)

	// ErrBatchAlreadyProcessed indicates an attempt to mutate a batch in a terminal status
	ErrBatchAlreadyProcessed = errors.New("batch already processed")

	// ErrConflictAlreadyResolved indicates a second resolution attempt
	ErrConflictAlreadyResolved = errors.New("conflict already resolved")

	// ErrMergedPayloadRequired indicates manual_merge without a merged payload
	ErrMergedPayloadRequired = fmt.Errorf("%w: merged payload is required for manual_merge", ErrValidation)

	// ErrUnknownStrategy indicates an unsupported resolution strategy
	ErrUnknownStrategy = fmt.Errorf("%w: unknown resolution strategy", ErrValidation)

	// ErrUploadCompleted сессия загрузки уже завершена
	ErrUploadCompleted = errors.New("upload already completed")

	// ErrUploadIncomplete получены не все чанки или размер не совпадает с объявленным
	ErrUploadIncomplete = errors.New("upload incomplete")
)

// ValidationError описывает ошибку валидации конкретного поля.
// errors.Is(err, ErrValidation) возвращает true для любой ValidationError.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError создает ошибку валидации поля
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is позволяет сопоставлять ошибку с ErrValidation через errors.Is
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// IsStateError reports whether err is an invalid-state error (HTTP 409 semantics).
func IsStateError(err error) bool {
	return errors.Is(err, ErrConflictAlreadyResolved) ||
		errors.Is(err, ErrBatchAlreadyProcessed) ||
		errors.Is(err, ErrUploadCompleted) ||
		errors.Is(err, ErrUploadIncomplete)
}
