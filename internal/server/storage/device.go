package storage

import (
	"context"
	"time"

	"github.com/iudanet/fieldsync/internal/models"
)

// DeviceStorage defines interface for device registration persistence
type DeviceStorage interface {
	// CreateDevice registers a new device
	// Returns ErrDeviceAlreadyExists if device id is taken
	CreateDevice(ctx context.Context, device *models.Device) error

	// GetDevice retrieves device by ID
	// Returns ErrDeviceNotFound if device doesn't exist
	GetDevice(ctx context.Context, deviceID string) (*models.Device, error)

	// UpdateLastSeen updates the last successful login timestamp
	// Returns ErrDeviceNotFound if device doesn't exist
	UpdateLastSeen(ctx context.Context, deviceID string, at time.Time) error
}

// UploadStorage defines interface for media upload session persistence
type UploadStorage interface {
	// CreateUpload stores a new open upload session
	CreateUpload(ctx context.Context, session *models.UploadSession) error

	// GetUpload retrieves an upload session with Received filled from stored chunks
	// Returns ErrUploadNotFound if session doesn't exist
	GetUpload(ctx context.Context, uploadID string) (*models.UploadSession, error)

	// SaveChunk records a received chunk; re-sending an index replaces its size
	SaveChunk(ctx context.Context, uploadID string, index int, size int64) error

	// ListChunks returns received chunk sizes keyed by index
	ListChunks(ctx context.Context, uploadID string) (map[int]int64, error)

	// CompleteUpload marks the session completed with the final reference
	// Returns ErrUploadNotFound if session doesn't exist
	CompleteUpload(ctx context.Context, uploadID, reference string, at time.Time) error
}
