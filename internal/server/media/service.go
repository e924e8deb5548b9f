// Package media implements chunked media uploads on top of a blob store.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/internal/server/blob"
	"github.com/iudanet/fieldsync/internal/server/storage"
)

// Значения по умолчанию
const (
	DefaultChunkSize   = 1 << 20
	DefaultMaxSize     = 64 << 20
	defaultContentType = "application/octet-stream"
)

// Service manages upload sessions and their chunks.
type Service struct {
	store     storage.UploadStorage
	blobs     blob.Store
	logger    *slog.Logger
	now       func() time.Time
	chunkSize int64
	maxSize   int64
}

// NewService creates a media upload service; non-positive limits fall back to defaults
func NewService(store storage.UploadStorage, blobs blob.Store, logger *slog.Logger, chunkSize, maxSize int64) *Service {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Service{
		store:     store,
		blobs:     blobs,
		logger:    logger,
		now:       time.Now,
		chunkSize: chunkSize,
		maxSize:   maxSize,
	}
}

// StagingKey ключ чанка во временной области
func StagingKey(uploadID string, index int) string {
	return fmt.Sprintf("staging/%s/%d", uploadID, index)
}

// ObjectKey ключ собранного объекта
func ObjectKey(entityID, uploadID string) string {
	return "media/" + entityID + "/" + uploadID
}

// InitUpload opens a new upload session for a photo entity.
func (s *Service) InitUpload(ctx context.Context, deviceID, entityID, contentType string, size int64) (*models.UploadSession, error) {
	if _, err := models.NewEntityRef(string(models.EntityTypePhoto), entityID); err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, models.NewValidationError("size", "size must be positive")
	}
	if size > s.maxSize {
		return nil, models.NewValidationError("size", fmt.Sprintf("size exceeds limit of %d bytes", s.maxSize))
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	session := &models.UploadSession{
		ID:          uuid.New().String(),
		DeviceID:    deviceID,
		EntityID:    entityID,
		ContentType: contentType,
		Status:      models.UploadStatusOpen,
		Size:        size,
		ChunkSize:   s.chunkSize,
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateUpload(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create upload: %w", err)
	}

	s.logger.InfoContext(ctx, "Upload started",
		"upload_id", session.ID,
		"device_id", deviceID,
		"entity_id", entityID,
		"size", size)

	return session, nil
}

// session загружает сессию и проверяет, что она принадлежит устройству
func (s *Service) session(ctx context.Context, deviceID, uploadID string) (*models.UploadSession, error) {
	session, err := s.store.GetUpload(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	// чужая сессия для устройства не существует
	if session.DeviceID != deviceID {
		return nil, storage.ErrUploadNotFound
	}
	return session, nil
}

// expectedChunkSize размер чанка с данным индексом; последний может быть короче
func expectedChunkSize(session *models.UploadSession, index int) int64 {
	start := int64(index) * session.ChunkSize
	return min(session.ChunkSize, session.Size-start)
}

// StoreChunk writes one chunk. Re-sending an index replaces it.
func (s *Service) StoreChunk(ctx context.Context, deviceID, uploadID string, index int, r io.Reader) error {
	session, err := s.session(ctx, deviceID, uploadID)
	if err != nil {
		return err
	}
	if session.Status == models.UploadStatusCompleted {
		return models.ErrUploadCompleted
	}
	if index < 0 || index >= session.ChunkCount() {
		return models.NewValidationError("index", fmt.Sprintf("chunk index must be in [0, %d)", session.ChunkCount()))
	}

	want := expectedChunkSize(session, index)
	data, err := io.ReadAll(io.LimitReader(r, want+1))
	if err != nil {
		return fmt.Errorf("failed to read chunk: %w", err)
	}
	if int64(len(data)) != want {
		return models.NewValidationError("chunk", fmt.Sprintf("chunk %d must be %d bytes, got %d", index, want, len(data)))
	}

	if err := s.blobs.Put(ctx, StagingKey(uploadID, index), bytes.NewReader(data), want); err != nil {
		return fmt.Errorf("failed to store chunk: %w", err)
	}
	if err := s.store.SaveChunk(ctx, uploadID, index, want); err != nil {
		return err
	}
	return nil
}

// Complete verifies all chunks arrived, assembles the object and returns its media reference.
// Completing an already completed upload returns the stored reference.
func (s *Service) Complete(ctx context.Context, deviceID, uploadID string) (string, error) {
	session, err := s.session(ctx, deviceID, uploadID)
	if err != nil {
		return "", err
	}
	if session.Status == models.UploadStatusCompleted {
		return session.Reference, nil
	}

	chunks, err := s.store.ListChunks(ctx, uploadID)
	if err != nil {
		return "", err
	}

	count := session.ChunkCount()
	keys := make([]string, 0, count)
	for i := range count {
		if _, ok := chunks[i]; !ok {
			return "", fmt.Errorf("%w: chunk %d missing", models.ErrUploadIncomplete, i)
		}
		keys = append(keys, StagingKey(uploadID, i))
	}
	if session.Received != session.Size {
		return "", fmt.Errorf("%w: received %d of %d bytes", models.ErrUploadIncomplete, session.Received, session.Size)
	}

	objectKey := ObjectKey(session.EntityID, uploadID)
	if err := s.blobs.Compose(ctx, objectKey, keys); err != nil {
		return "", fmt.Errorf("failed to assemble upload: %w", err)
	}

	reference := models.MediaRefScheme + objectKey
	if err := s.store.CompleteUpload(ctx, uploadID, reference, s.now()); err != nil {
		return "", err
	}

	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "Failed to remove staged chunk", "key", key, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "Upload completed",
		"upload_id", uploadID,
		"device_id", deviceID,
		"reference", reference)

	return reference, nil
}
