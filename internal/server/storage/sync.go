package storage

import (
	"context"

	"github.com/iudanet/fieldsync/internal/models"
)

// Ledger is the per-entity version ledger.
type Ledger interface {
	// GetCurrentVersion returns the entity's current version, 0 if never written
	GetCurrentVersion(ctx context.Context, ref models.EntityRef) (int64, error)

	// GetCurrentPayload returns the last accepted payload, "" if never written
	GetCurrentPayload(ctx context.Context, ref models.EntityRef) (string, error)

	// SetVersion unconditionally overwrites the ledger row for ref.
	// Stamps the modification time and assigns the next change sequence number.
	SetVersion(ctx context.Context, ref models.EntityRef, version int64, payload, deviceID string, op models.Operation) error
}

// BatchStore persists batches and their conflicts.
type BatchStore interface {
	// SaveBatch inserts a processed batch with its applied deltas and conflicts
	SaveBatch(ctx context.Context, batch *models.Batch) error

	// GetBatch retrieves a batch with applied deltas and conflicts
	// Returns ErrBatchNotFound if batch doesn't exist
	GetBatch(ctx context.Context, batchID string) (*models.Batch, error)

	// GetBatchByConflictID retrieves the batch owning the conflict
	// Returns ErrConflictNotFound if no batch owns it
	GetBatchByConflictID(ctx context.Context, conflictID string) (*models.Batch, error)

	// UpdateConflict stores resolution fields of a conflict
	// Returns ErrConflictNotFound if conflict doesn't exist
	UpdateConflict(ctx context.Context, conflict *models.Conflict) error
}

// Tx is the transaction-scoped view used by the batch processor and the resolver.
type Tx interface {
	Ledger
	BatchStore
}

// ConflictFilter фильтр списка конфликтов. Пустые поля не ограничивают выборку.
type ConflictFilter struct {
	DeviceID string
	Status   models.ConflictStatus
	Limit    int
}

// SyncStorage defines interface for sync state persistence
type SyncStorage interface {
	// WithinTx runs fn inside one storage transaction.
	// Any error returned by fn rolls back every write made through tx.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	// GetBatch retrieves a batch outside of a transaction
	GetBatch(ctx context.Context, batchID string) (*models.Batch, error)

	// ListConflicts returns conflicts ordered by detection time
	ListConflicts(ctx context.Context, filter ConflictFilter) ([]*models.Conflict, error)

	// GetLedgerEntry returns the ledger row for ref
	// Returns nil, nil if the entity was never written
	GetLedgerEntry(ctx context.Context, ref models.EntityRef) (*models.LedgerEntry, error)

	// GetChangesSince returns ledger rows with seq > since ordered by seq, at most limit rows.
	// hasMore is true when further rows exist.
	GetChangesSince(ctx context.Context, since int64, limit int) (entries []*models.LedgerEntry, hasMore bool, err error)

	// CurrentSeq returns the highest assigned change sequence number, 0 if none
	CurrentSeq(ctx context.Context) (int64, error)
}
