package storage

import (
	"context"
	"time"
)

// MetadataStorage хранит состояние синхронизации устройства
type MetadataStorage interface {
	// SavePullCheckpoint saves the server change sequence reached by the last applied pull page
	SavePullCheckpoint(ctx context.Context, seq int64) error

	// GetPullCheckpoint retrieves the pull checkpoint.
	// Returns 0 if no pull has completed yet
	GetPullCheckpoint(ctx context.Context) (int64, error)

	// SaveLastSyncAt records the finish time of the last cycle without errors
	SaveLastSyncAt(ctx context.Context, at time.Time) error

	// GetLastSyncAt returns the zero time if no cycle has succeeded yet
	GetLastSyncAt(ctx context.Context) (time.Time, error)
}
