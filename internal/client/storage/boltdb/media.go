package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/iudanet/fieldsync/internal/client/storage"
	"github.com/iudanet/fieldsync/internal/models"
)

// QueueMedia ставит файл в очередь загрузки
func (s *Storage) QueueMedia(ctx context.Context, upload *models.MediaUpload) error {
	if upload.ID == "" {
		return models.NewValidationError("id", "media upload id cannot be empty")
	}
	if err := upload.Ref.Validate(); err != nil {
		return err
	}
	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = s.now()
	}
	if upload.Status == "" {
		upload.Status = models.MediaStatusPending
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketMedia)
		if err != nil {
			return err
		}
		return putJSON(b, []byte(upload.ID), upload)
	})
	if err != nil {
		return fmt.Errorf("failed to queue media: %w", err)
	}
	return nil
}

// PendingMedia возвращает загрузки, ожидающие отправки
func (s *Storage) PendingMedia(ctx context.Context) ([]*models.MediaUpload, error) {
	all, err := s.ListMedia(ctx)
	if err != nil {
		return nil, err
	}
	pending := all[:0]
	for _, u := range all {
		if u.Status == models.MediaStatusPending || u.Status == models.MediaStatusFailed {
			pending = append(pending, u)
		}
	}
	return pending, nil
}

// ListMedia возвращает всю очередь загрузок
func (s *Storage) ListMedia(ctx context.Context) ([]*models.MediaUpload, error) {
	var result []*models.MediaUpload
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketMedia)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			var u models.MediaUpload
			if err := json.Unmarshal(v, &u); err != nil {
				return fmt.Errorf("failed to unmarshal media upload %s: %w", k, err)
			}
			result = append(result, &u)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// MarkMediaUploaded сохраняет ссылку на загруженный файл
func (s *Storage) MarkMediaUploaded(ctx context.Context, id, reference string) error {
	return s.updateMedia(id, func(u *models.MediaUpload) {
		u.Status = models.MediaStatusUploaded
		u.Reference = reference
		u.LastError = ""
	})
}

// MarkMediaFailed фиксирует неудачную попытку загрузки
func (s *Storage) MarkMediaFailed(ctx context.Context, id, reason string) error {
	return s.updateMedia(id, func(u *models.MediaUpload) {
		u.Status = models.MediaStatusFailed
		u.RetryCount++
		u.LastError = reason
	})
}

func (s *Storage) updateMedia(id string, fn func(u *models.MediaUpload)) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketMedia)
		if err != nil {
			return err
		}
		raw := b.Get([]byte(id))
		if raw == nil {
			return storage.ErrMediaNotFound
		}
		var u models.MediaUpload
		if err := json.Unmarshal(raw, &u); err != nil {
			return fmt.Errorf("failed to unmarshal media upload %s: %w", id, err)
		}
		fn(&u)
		return putJSON(b, []byte(id), &u)
	})
}
