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

// SaveConflicts сохраняет конфликты, полученные в ответ на батч.
// Локальная копия без новых изменений откатывается к состоянию сервера;
// отклоненная версия пользователя остается в записи конфликта.
func (s *Storage) SaveConflicts(ctx context.Context, conflicts []*models.Conflict) error {
	if len(conflicts) == 0 {
		return nil
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketConflicts)
		if err != nil {
			return err
		}
		entities, err := bucket(tx, bucketEntities)
		if err != nil {
			return err
		}
		outbox, err := bucket(tx, bucketOutbox)
		if err != nil {
			return err
		}

		for _, c := range conflicts {
			if err := putJSON(b, []byte(c.ID), c); err != nil {
				return err
			}

			queued, err := hasQueued(outbox, c.Ref)
			if err != nil {
				return err
			}
			if queued {
				continue
			}
			local, err := getEntity(entities, c.Ref)
			if err != nil {
				return err
			}
			if local != nil && local.Version > c.ServerVersion {
				continue
			}
			if c.ServerVersion == 0 {
				// на сервере сущности нет
				if err := entities.Delete([]byte(c.Ref.Key())); err != nil {
					return err
				}
				continue
			}
			restored := &models.LocalEntity{
				Ref:       c.Ref,
				Payload:   c.ServerPayload,
				Version:   c.ServerVersion,
				Deleted:   c.ServerPayload == "",
				UpdatedAt: s.now(),
			}
			if err := putJSON(entities, []byte(c.Ref.Key()), restored); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save conflicts: %w", err)
	}
	return nil
}

// ListConflicts возвращает локальные конфликты по времени обнаружения
func (s *Storage) ListConflicts(ctx context.Context) ([]*models.Conflict, error) {
	var result []*models.Conflict
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketConflicts)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			var c models.Conflict
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("failed to unmarshal conflict %s: %w", k, err)
			}
			result = append(result, &c)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].DetectedAt.Before(result[j].DetectedAt)
	})
	return result, nil
}

// DeleteConflict удаляет конфликт из локального списка
func (s *Storage) DeleteConflict(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketConflicts)
		if err != nil {
			return err
		}
		if b.Get([]byte(id)) == nil {
			return storage.ErrConflictNotFound
		}
		if err := b.Delete([]byte(id)); err != nil {
			return fmt.Errorf("failed to delete conflict: %w", err)
		}
		return nil
	})
}
