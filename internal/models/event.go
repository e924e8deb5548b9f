package models

import "time"

// EventKind дискриминатор события синхронизации
type EventKind string

const (
	EventBatchProcessed   EventKind = "batch_processed"
	EventConflictDetected EventKind = "conflict_detected"
	EventConflictResolved EventKind = "conflict_resolved"
)

// Event is a closed sum type over sync events.
// Only the types in this file implement it; consumers switch on the concrete type.
type Event interface {
	Kind() EventKind
	OccurredAt() time.Time
	isEvent()
}

// BatchProcessed emitted after a batch and its ledger writes are committed.
type BatchProcessed struct {
	At            time.Time
	BatchID       string
	DeviceID      string
	Status        BatchStatus
	AppliedCount  int
	ConflictCount int
}

// ConflictDetected emitted once per conflict produced by a batch.
type ConflictDetected struct {
	At         time.Time
	ConflictID string
	BatchID    string
	DeviceID   string
	Ref        EntityRef
}

// ConflictResolved emitted after a resolution is committed.
type ConflictResolved struct {
	At         time.Time
	ConflictID string
	BatchID    string
	DeviceID   string
	ResolvedBy string
	Ref        EntityRef
	Status     ConflictStatus
	Version    int64 // новая версия в леджере, 0 если леджер не менялся
}

func (BatchProcessed) Kind() EventKind   { return EventBatchProcessed }
func (ConflictDetected) Kind() EventKind { return EventConflictDetected }
func (ConflictResolved) Kind() EventKind { return EventConflictResolved }

func (e BatchProcessed) OccurredAt() time.Time   { return e.At }
func (e ConflictDetected) OccurredAt() time.Time { return e.At }
func (e ConflictResolved) OccurredAt() time.Time { return e.At }

func (BatchProcessed) isEvent()   {}
func (ConflictDetected) isEvent() {}
func (ConflictResolved) isEvent() {}
