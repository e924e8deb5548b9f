// Package data exposes local entity editing on the device. Every edit goes
// through the outbox; remote changes never pass through this package.
package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/fieldsync/internal/client/storage"
	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/internal/server/domain"
)

// Store локальное хранилище, используемое сервисом
type Store interface {
	storage.EntityStorage
	storage.ConflictStorage
	storage.MediaStorage
}

// Service операции пользователя над локальными данными
type Service interface {
	Put(ctx context.Context, ref models.EntityRef, payload string) (*models.OutboxEntry, error)
	Delete(ctx context.Context, ref models.EntityRef) (*models.OutboxEntry, error)
	Get(ctx context.Context, ref models.EntityRef) (*models.LocalEntity, error)
	List(ctx context.Context, entityType models.EntityType) ([]*models.LocalEntity, error)
	Outbox(ctx context.Context) ([]*models.OutboxEntry, error)

	AttachMedia(ctx context.Context, ref models.EntityRef, filePath, contentType string) (*models.MediaUpload, error)
	Media(ctx context.Context) ([]*models.MediaUpload, error)

	Conflicts(ctx context.Context) ([]*models.Conflict, error)
	DismissConflict(ctx context.Context, id string) error
}

type service struct {
	store     Store
	validator *domain.Registry
	now       func() time.Time
}

// NewService creates a new data service
func NewService(store Store) Service {
	return &service{
		store:     store,
		validator: domain.DefaultRegistry(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Put создает сущность или обновляет существующую.
// Поле id в payload должно совпадать с id сущности; если его нет, оно добавляется.
func (s *service) Put(ctx context.Context, ref models.EntityRef, payload string) (*models.OutboxEntry, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	normalized, err := withID(ref, payload)
	if err != nil {
		return nil, err
	}

	op := models.OperationCreate
	local, err := s.store.GetEntity(ctx, ref)
	switch {
	case err == nil && !local.Deleted:
		op = models.OperationUpdate
	case err == nil, errors.Is(err, storage.ErrEntityNotFound):
	default:
		return nil, fmt.Errorf("failed to load entity: %w", err)
	}

	if err := s.validator.Validate(models.Delta{Ref: ref, Operation: op, Payload: normalized}); err != nil {
		return nil, err
	}

	entry, err := s.store.RecordMutation(ctx, models.Mutation{Ref: ref, Operation: op, Payload: normalized, At: s.now()})
	if err != nil {
		return nil, fmt.Errorf("failed to record %s: %w", ref, err)
	}
	return entry, nil
}

// withID проверяет, что payload - JSON объект, и согласует его поле id со ссылкой
func withID(ref models.EntityRef, payload string) (string, error) {
	trimmed := strings.TrimSpace(payload)
	if !strings.HasPrefix(trimmed, "{") {
		return "", models.NewValidationError("payload", "payload must be a JSON object")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return "", models.NewValidationError("payload", fmt.Sprintf("payload must be a JSON object: %v", err))
	}

	if raw, ok := fields["id"]; ok {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil || id != ref.ID {
			return "", models.NewValidationError("payload", fmt.Sprintf("payload id does not match %s", ref))
		}
		return trimmed, nil
	}

	id, err := json.Marshal(ref.ID)
	if err != nil {
		return "", err
	}
	fields["id"] = id
	out, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}
	return string(out), nil
}

// Delete удаляет сущность локально и ставит удаление в очередь
func (s *service) Delete(ctx context.Context, ref models.EntityRef) (*models.OutboxEntry, error) {
	if _, err := s.Get(ctx, ref); err != nil {
		return nil, err
	}
	entry, err := s.store.RecordMutation(ctx, models.Mutation{Ref: ref, Operation: models.OperationDelete, At: s.now()})
	if err != nil {
		return nil, fmt.Errorf("failed to record %s: %w", ref, err)
	}
	return entry, nil
}

// Get возвращает локальную копию; удаленные сущности считаются отсутствующими
func (s *service) Get(ctx context.Context, ref models.EntityRef) (*models.LocalEntity, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	local, err := s.store.GetEntity(ctx, ref)
	if err != nil {
		return nil, err
	}
	if local.Deleted {
		return nil, storage.ErrEntityNotFound
	}
	return local, nil
}

// List возвращает живые сущности типа; пустой тип - все сущности
func (s *service) List(ctx context.Context, entityType models.EntityType) ([]*models.LocalEntity, error) {
	if entityType != "" && !entityType.Valid() {
		return nil, models.NewValidationError("entity_type", fmt.Sprintf("%s: %q", models.ErrUnknownEntityType, entityType))
	}
	return s.store.ListEntities(ctx, entityType)
}

// Outbox возвращает неподтвержденные сервером изменения
func (s *service) Outbox(ctx context.Context) ([]*models.OutboxEntry, error) {
	return s.store.ListOutbox(ctx)
}

// AttachMedia ставит файл фотографии в очередь загрузки.
// Ссылка media_ref попадет в payload фото после загрузки.
func (s *service) AttachMedia(ctx context.Context, ref models.EntityRef, filePath, contentType string) (*models.MediaUpload, error) {
	if ref.Type != models.EntityTypePhoto {
		return nil, models.NewValidationError("entity_type", "media can only be attached to a photo")
	}
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("invalid media path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("media file is not accessible: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, models.NewValidationError("file", fmt.Sprintf("%s is not a regular file", abs))
	}

	if contentType == "" {
		contentType, err = detectContentType(abs)
		if err != nil {
			return nil, err
		}
	}

	upload := &models.MediaUpload{
		ID:          uuid.New().String(),
		Ref:         ref,
		FilePath:    abs,
		ContentType: contentType,
		CreatedAt:   s.now(),
	}
	if err := s.store.QueueMedia(ctx, upload); err != nil {
		return nil, err
	}
	return upload, nil
}

// detectContentType определяет тип по расширению, затем по первым байтам
func detectContentType(path string) (string, error) {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open media file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && n == 0 {
		return "application/octet-stream", nil
	}
	return http.DetectContentType(head[:n]), nil
}

// Media возвращает очередь загрузок
func (s *service) Media(ctx context.Context) ([]*models.MediaUpload, error) {
	return s.store.ListMedia(ctx)
}

// Conflicts возвращает конфликты, полученные этим устройством
func (s *service) Conflicts(ctx context.Context) ([]*models.Conflict, error) {
	return s.store.ListConflicts(ctx)
}

// DismissConflict убирает конфликт из локального списка
func (s *service) DismissConflict(ctx context.Context, id string) error {
	return s.store.DeleteConflict(ctx, id)
}
