package storage

import (
	"context"

	"github.com/iudanet/fieldsync/internal/models"
)

// MediaStorage очередь загрузки медиа файлов
type MediaStorage interface {
	// QueueMedia adds a file to the upload queue
	QueueMedia(ctx context.Context, upload *models.MediaUpload) error

	// PendingMedia returns pending and failed uploads, oldest first
	PendingMedia(ctx context.Context) ([]*models.MediaUpload, error)

	// ListMedia returns every queued upload, oldest first
	ListMedia(ctx context.Context) ([]*models.MediaUpload, error)

	// MarkMediaUploaded records the server reference of a finished upload
	MarkMediaUploaded(ctx context.Context, id, reference string) error

	// MarkMediaFailed records a failed attempt
	MarkMediaFailed(ctx context.Context, id, reason string) error
}
