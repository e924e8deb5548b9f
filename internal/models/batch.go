package models

import (
	"fmt"
	"time"
)

// BatchStatus статус обработки батча
type BatchStatus string

const (
	BatchStatusPending         BatchStatus = "pending"
	BatchStatusCompleted       BatchStatus = "completed"
	BatchStatusPartialConflict BatchStatus = "partial_conflict"
	BatchStatusFailed          BatchStatus = "failed"
)

// Terminal reports whether the status is final.
func (s BatchStatus) Terminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusPartialConflict || s == BatchStatusFailed
}

// Batch is one device's submission together with its outcomes.
// A batch leaves pending exactly once, via Complete; after that it is frozen.
type Batch struct {
	SubmittedAt time.Time      `json:"submitted_at"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
	ID          string         `json:"id"`
	DeviceID    string         `json:"device_id"`
	Status      BatchStatus    `json:"status"`
	Applied     []AppliedDelta `json:"applied"`
	Conflicts   []*Conflict    `json:"conflicts"`
}

// NewBatch создает новый батч в статусе pending
func NewBatch(id, deviceID string, submittedAt time.Time) *Batch {
	return &Batch{
		ID:          id,
		DeviceID:    deviceID,
		SubmittedAt: submittedAt,
		Status:      BatchStatusPending,
		Applied:     []AppliedDelta{},
		Conflicts:   []*Conflict{},
	}
}

// AddApplied appends an accepted delta. Rejected once the batch is terminal.
func (b *Batch) AddApplied(d Delta, newVersion int64) error {
	if b.Status.Terminal() {
		return fmt.Errorf("add delta to batch %s: %w", b.ID, ErrBatchAlreadyProcessed)
	}
	b.Applied = append(b.Applied, AppliedDelta{Delta: d, NewVersion: newVersion})
	return nil
}

// AddConflict appends a detected conflict. Rejected once the batch is terminal.
func (b *Batch) AddConflict(c *Conflict) error {
	if b.Status.Terminal() {
		return fmt.Errorf("add conflict to batch %s: %w", b.ID, ErrBatchAlreadyProcessed)
	}
	c.BatchID = b.ID
	b.Conflicts = append(b.Conflicts, c)
	return nil
}

// Complete классифицирует батч и переводит его в терминальный статус.
// Пустой батч считается completed.
func (b *Batch) Complete(at time.Time) error {
	if b.Status.Terminal() {
		return fmt.Errorf("complete batch %s: %w", b.ID, ErrBatchAlreadyProcessed)
	}

	switch {
	case len(b.Conflicts) == 0:
		b.Status = BatchStatusCompleted
	case len(b.Applied) == 0:
		b.Status = BatchStatusFailed
	default:
		b.Status = BatchStatusPartialConflict
	}

	processedAt := at
	b.ProcessedAt = &processedAt
	return nil
}

// FindConflict ищет конфликт внутри батча по ID
func (b *Batch) FindConflict(conflictID string) (*Conflict, bool) {
	for _, c := range b.Conflicts {
		if c.ID == conflictID {
			return c, true
		}
	}
	return nil, false
}

// AppliedCount количество примененных дельт
func (b *Batch) AppliedCount() int {
	return len(b.Applied)
}

// ConflictCount количество конфликтов
func (b *Batch) ConflictCount() int {
	return len(b.Conflicts)
}
