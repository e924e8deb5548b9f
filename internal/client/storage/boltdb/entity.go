package boltdb

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/fieldsync/internal/client/storage"
	"github.com/iudanet/fieldsync/internal/models"
)

// RecordMutation сохраняет пользовательское изменение и ставит его в outbox в одной транзакции
func (s *Storage) RecordMutation(ctx context.Context, m models.Mutation) (*models.OutboxEntry, error) {
	if err := m.Ref.Validate(); err != nil {
		return nil, err
	}
	if !m.Operation.Valid() {
		return nil, models.NewValidationError("operation", fmt.Sprintf("unknown operation %q", m.Operation))
	}
	at := m.At
	if at.IsZero() {
		at = s.now()
	}

	var result *models.OutboxEntry
	err := s.db.Update(func(tx *bbolt.Tx) error {
		entities, err := bucket(tx, bucketEntities)
		if err != nil {
			return err
		}
		outbox, err := bucket(tx, bucketOutbox)
		if err != nil {
			return err
		}

		local, err := getEntity(entities, m.Ref)
		if err != nil {
			return err
		}
		if local == nil {
			local = &models.LocalEntity{Ref: m.Ref}
		}
		base := local.Version

		local.UpdatedAt = at
		if m.Operation == models.OperationDelete {
			local.Deleted = true
			local.Payload = ""
		} else {
			local.Deleted = false
			local.Payload = m.Payload
		}
		if err := putJSON(entities, []byte(m.Ref.Key()), local); err != nil {
			return err
		}

		existing, err := findOutbox(outbox, func(e *models.OutboxEntry) bool {
			return e.Ref == m.Ref && e.Status.Retryable()
		})
		if err != nil {
			return err
		}

		if existing != nil {
			// coalescing: базовая версия остается от первой мутации,
			// правка еще не отправленного создания остается созданием
			if existing.Operation != models.OperationCreate || m.Operation != models.OperationUpdate {
				existing.Operation = m.Operation
			}
			existing.Payload = m.Payload
			existing.Timestamp = at
			existing.Status = models.OutboxStatusPending
			existing.LastError = ""
			result = existing
		} else {
			id, err := outbox.NextSequence()
			if err != nil {
				return fmt.Errorf("failed to allocate outbox id: %w", err)
			}
			result = &models.OutboxEntry{
				ID:          id,
				Ref:         m.Ref,
				Operation:   m.Operation,
				Payload:     m.Payload,
				BaseVersion: base,
				Timestamp:   at,
				Status:      models.OutboxStatusPending,
			}
		}

		return putJSON(outbox, itob(result.ID), result)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record mutation: %w", err)
	}

	return result, nil
}

// ApplyRemote применяет изменение с сервера, не создавая записей outbox.
// Если у сущности есть неотправленные локальные изменения, локальный payload сохраняется
// и обновляется только подтвержденная версия: конфликт обнаружит сервер.
func (s *Storage) ApplyRemote(ctx context.Context, change models.Change) (bool, error) {
	applied := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		entities, err := bucket(tx, bucketEntities)
		if err != nil {
			return err
		}
		outbox, err := bucket(tx, bucketOutbox)
		if err != nil {
			return err
		}

		local, err := getEntity(entities, change.Ref)
		if err != nil {
			return err
		}
		if local != nil && change.Version < local.Version {
			return nil
		}

		queued, err := hasQueued(outbox, change.Ref)
		if err != nil {
			return err
		}

		if local == nil {
			local = &models.LocalEntity{Ref: change.Ref}
		}
		local.Version = change.Version
		local.UpdatedAt = change.Timestamp
		if !queued {
			local.Payload = change.Payload
			local.Deleted = false
		}

		applied = true
		return putJSON(entities, []byte(change.Ref.Key()), local)
	})
	if err != nil {
		return false, fmt.Errorf("failed to apply remote change for %s: %w", change.Ref, err)
	}
	return applied, nil
}

// RemoveRemote применяет удаление с сервера. Запись остается как tombstone с версией,
// чтобы следующее локальное изменение строилось на актуальной базе.
func (s *Storage) RemoveRemote(ctx context.Context, ref models.EntityRef, version int64) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		entities, err := bucket(tx, bucketEntities)
		if err != nil {
			return err
		}
		outbox, err := bucket(tx, bucketOutbox)
		if err != nil {
			return err
		}

		local, err := getEntity(entities, ref)
		if err != nil {
			return err
		}
		if local != nil && version < local.Version {
			return nil
		}

		queued, err := hasQueued(outbox, ref)
		if err != nil {
			return err
		}

		if local == nil {
			local = &models.LocalEntity{Ref: ref}
		}
		local.Version = version
		local.UpdatedAt = s.now()
		if !queued {
			local.Payload = ""
			local.Deleted = true
		}
		return putJSON(entities, []byte(ref.Key()), local)
	})
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", ref, err)
	}
	return nil
}

// ConfirmVersion фиксирует версию, принятую сервером
func (s *Storage) ConfirmVersion(ctx context.Context, ref models.EntityRef, base, version int64) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		entities, err := bucket(tx, bucketEntities)
		if err != nil {
			return err
		}
		outbox, err := bucket(tx, bucketOutbox)
		if err != nil {
			return err
		}

		local, err := getEntity(entities, ref)
		if err != nil {
			return err
		}
		if local != nil && version > local.Version {
			local.Version = version
			if err := putJSON(entities, []byte(ref.Key()), local); err != nil {
				return err
			}
		}

		// изменения, сделанные во время отправки, перестраиваются на новую версию
		return forEachOutbox(outbox, func(e *models.OutboxEntry) error {
			if e.Ref != ref || !e.Status.Retryable() || e.BaseVersion != base {
				return nil
			}
			e.BaseVersion = version
			return putJSON(outbox, itob(e.ID), e)
		})
	})
	if err != nil {
		return fmt.Errorf("failed to confirm version of %s: %w", ref, err)
	}
	return nil
}

// GetEntity возвращает локальную копию сущности
func (s *Storage) GetEntity(ctx context.Context, ref models.EntityRef) (*models.LocalEntity, error) {
	var local *models.LocalEntity
	err := s.db.View(func(tx *bbolt.Tx) error {
		entities, err := bucket(tx, bucketEntities)
		if err != nil {
			return err
		}
		local, err = getEntity(entities, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	if local == nil {
		return nil, storage.ErrEntityNotFound
	}
	return local, nil
}

// ListEntities возвращает неудаленные сущности, отсортированные по ключу
func (s *Storage) ListEntities(ctx context.Context, entityType models.EntityType) ([]*models.LocalEntity, error) {
	var result []*models.LocalEntity
	err := s.db.View(func(tx *bbolt.Tx) error {
		entities, err := bucket(tx, bucketEntities)
		if err != nil {
			return err
		}

		// ключи имеют вид "type/id", фильтр по типу = обход по префиксу
		var prefix []byte
		if entityType != "" {
			prefix = []byte(string(entityType) + "/")
		}
		c := entities.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if err := collectEntity(v, &result); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	return result, nil
}

// PendingOutbox возвращает записи для следующей отправки
func (s *Storage) PendingOutbox(ctx context.Context, limit int) ([]*models.OutboxEntry, error) {
	var result []*models.OutboxEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		outbox, err := bucket(tx, bucketOutbox)
		if err != nil {
			return err
		}
		return forEachOutbox(outbox, func(e *models.OutboxEntry) error {
			if limit > 0 && len(result) >= limit {
				return errStopIteration
			}
			if e.Status.Retryable() {
				result = append(result, e)
			}
			return nil
		})
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return nil, fmt.Errorf("failed to read outbox: %w", err)
	}
	return result, nil
}

// ListOutbox возвращает все записи outbox
func (s *Storage) ListOutbox(ctx context.Context) ([]*models.OutboxEntry, error) {
	var result []*models.OutboxEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		outbox, err := bucket(tx, bucketOutbox)
		if err != nil {
			return err
		}
		return forEachOutbox(outbox, func(e *models.OutboxEntry) error {
			result = append(result, e)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read outbox: %w", err)
	}
	return result, nil
}

// MarkSyncing переводит записи в статус syncing
func (s *Storage) MarkSyncing(ctx context.Context, ids []uint64) error {
	return s.updateOutbox(ids, func(e *models.OutboxEntry) {
		e.Status = models.OutboxStatusSyncing
	})
}

// MarkSynced удаляет записи, принятые сервером
func (s *Storage) MarkSynced(ctx context.Context, ids []uint64) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		outbox, err := bucket(tx, bucketOutbox)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := outbox.Delete(itob(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to mark outbox entries synced: %w", err)
	}
	return nil
}

// MarkFailed возвращает записи в очередь повторной отправки
func (s *Storage) MarkFailed(ctx context.Context, ids []uint64, reason string) error {
	return s.updateOutbox(ids, func(e *models.OutboxEntry) {
		e.Status = models.OutboxStatusFailed
		e.RetryCount++
		e.LastError = reason
	})
}

// ResetSyncing переводит зависшие в syncing записи в failed
func (s *Storage) ResetSyncing(ctx context.Context) (int, error) {
	count := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		outbox, err := bucket(tx, bucketOutbox)
		if err != nil {
			return err
		}
		return forEachOutbox(outbox, func(e *models.OutboxEntry) error {
			if e.Status != models.OutboxStatusSyncing {
				return nil
			}
			e.Status = models.OutboxStatusFailed
			e.LastError = "sync cycle interrupted"
			count++
			return putJSON(outbox, itob(e.ID), e)
		})
	})
	if err != nil {
		return 0, fmt.Errorf("failed to reset syncing entries: %w", err)
	}
	return count, nil
}

func (s *Storage) updateOutbox(ids []uint64, fn func(e *models.OutboxEntry)) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		outbox, err := bucket(tx, bucketOutbox)
		if err != nil {
			return err
		}
		for _, id := range ids {
			key := itob(id)
			raw := outbox.Get(key)
			if raw == nil {
				continue
			}
			var e models.OutboxEntry
			if err := json.Unmarshal(raw, &e); err != nil {
				return fmt.Errorf("failed to unmarshal outbox entry %d: %w", id, err)
			}
			fn(&e)
			if err := putJSON(outbox, key, &e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update outbox: %w", err)
	}
	return nil
}

var errStopIteration = errors.New("stop iteration")

func getEntity(b *bbolt.Bucket, ref models.EntityRef) (*models.LocalEntity, error) {
	raw := b.Get([]byte(ref.Key()))
	if raw == nil {
		return nil, nil
	}
	var local models.LocalEntity
	if err := json.Unmarshal(raw, &local); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity %s: %w", ref, err)
	}
	return &local, nil
}

func collectEntity(raw []byte, out *[]*models.LocalEntity) error {
	var local models.LocalEntity
	if err := json.Unmarshal(raw, &local); err != nil {
		return fmt.Errorf("failed to unmarshal entity: %w", err)
	}
	if !local.Deleted {
		*out = append(*out, &local)
	}
	return nil
}

// forEachOutbox обходит outbox в порядке id (ключи big-endian).
// Записи читаются заранее, поэтому fn может менять bucket.
func forEachOutbox(b *bbolt.Bucket, fn func(e *models.OutboxEntry) error) error {
	var entries []*models.OutboxEntry
	err := b.ForEach(func(k, v []byte) error {
		var e models.OutboxEntry
		if err := json.Unmarshal(v, &e); err != nil {
			return fmt.Errorf("failed to unmarshal outbox entry %d: %w", binary.BigEndian.Uint64(k), err)
		}
		entries = append(entries, &e)
		return nil
	})
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func findOutbox(b *bbolt.Bucket, match func(e *models.OutboxEntry) bool) (*models.OutboxEntry, error) {
	var found *models.OutboxEntry
	err := forEachOutbox(b, func(e *models.OutboxEntry) error {
		if match(e) {
			found = e
			return errStopIteration
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return nil, err
	}
	return found, nil
}

// hasQueued проверяет, есть ли у сущности неподтвержденные локальные изменения
func hasQueued(b *bbolt.Bucket, ref models.EntityRef) (bool, error) {
	e, err := findOutbox(b, func(e *models.OutboxEntry) bool { return e.Ref == ref })
	return e != nil, err
}

func putJSON(b *bbolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := b.Put(key, data); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}
