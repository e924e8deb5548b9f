package storage

import (
	"context"

	"github.com/iudanet/fieldsync/internal/models"
)

// ConflictStorage локальный список конфликтов, полученных при отправке батчей
type ConflictStorage interface {
	// SaveConflicts stores conflicts returned by a push. An entity without newer
	// local edits is rolled back to the server state recorded in the conflict.
	SaveConflicts(ctx context.Context, conflicts []*models.Conflict) error

	// ListConflicts returns stored conflicts ordered by detection time
	ListConflicts(ctx context.Context) ([]*models.Conflict, error)

	// DeleteConflict removes a conflict; ErrConflictNotFound if absent
	DeleteConflict(ctx context.Context, id string) error
}
