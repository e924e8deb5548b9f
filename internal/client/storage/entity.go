package storage

import (
	"context"

	"github.com/iudanet/fieldsync/internal/models"
)

// EntityStorage локальные копии сущностей и outbox.
//
// Пользовательские изменения проходят только через RecordMutation,
// изменения с сервера только через ApplyRemote/RemoveRemote: последние
// никогда не создают записей в outbox.
type EntityStorage interface {
	// RecordMutation atomically updates the local entity and enqueues an outbox entry.
	// A pending or failed entry of the same entity is coalesced: its operation and
	// payload are replaced while the original base version is kept.
	RecordMutation(ctx context.Context, m models.Mutation) (*models.OutboxEntry, error)

	// ApplyRemote upserts server state without touching the outbox.
	// Returns false when the change is older than the local copy.
	ApplyRemote(ctx context.Context, change models.Change) (bool, error)

	// RemoveRemote applies a server-side delete without touching the outbox.
	RemoveRemote(ctx context.Context, ref models.EntityRef, version int64) error

	// ConfirmVersion records a version accepted by the server for a delta built on base.
	// Other queued entries of the entity with the same base are rebased onto version.
	ConfirmVersion(ctx context.Context, ref models.EntityRef, base, version int64) error

	// GetEntity returns the local copy or ErrEntityNotFound
	GetEntity(ctx context.Context, ref models.EntityRef) (*models.LocalEntity, error)

	// ListEntities returns non-deleted entities; an empty type lists all types
	ListEntities(ctx context.Context, entityType models.EntityType) ([]*models.LocalEntity, error)

	// PendingOutbox returns pending and failed entries, oldest first, at most limit (0 = all)
	PendingOutbox(ctx context.Context, limit int) ([]*models.OutboxEntry, error)

	// ListOutbox returns every outbox entry, oldest first
	ListOutbox(ctx context.Context) ([]*models.OutboxEntry, error)

	// MarkSyncing moves entries to syncing before a push
	MarkSyncing(ctx context.Context, ids []uint64) error

	// MarkSynced removes entries accepted by the server
	MarkSynced(ctx context.Context, ids []uint64) error

	// MarkFailed returns entries to the retry queue with the error recorded
	MarkFailed(ctx context.Context, ids []uint64, reason string) error

	// ResetSyncing returns entries left in syncing by an interrupted cycle to failed
	ResetSyncing(ctx context.Context) (int, error)
}
