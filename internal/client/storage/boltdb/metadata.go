package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	keyPullCheckpoint = []byte("pull_checkpoint")
	keyLastSyncAt     = []byte("last_sync_at")
)

// SavePullCheckpoint сохраняет server_timestamp последней примененной страницы pull
func (s *Storage) SavePullCheckpoint(ctx context.Context, seq int64) error {
	if err := s.putInt(keyPullCheckpoint, seq); err != nil {
		return fmt.Errorf("failed to save pull checkpoint: %w", err)
	}
	return nil
}

// GetPullCheckpoint возвращает контрольную точку pull; 0 до первой синхронизации
func (s *Storage) GetPullCheckpoint(ctx context.Context) (int64, error) {
	seq, err := s.getInt(keyPullCheckpoint)
	if err != nil {
		return 0, fmt.Errorf("failed to get pull checkpoint: %w", err)
	}
	return seq, nil
}

// SaveLastSyncAt запоминает время последнего цикла без ошибок
func (s *Storage) SaveLastSyncAt(ctx context.Context, at time.Time) error {
	if err := s.putInt(keyLastSyncAt, at.UnixNano()); err != nil {
		return fmt.Errorf("failed to save last sync time: %w", err)
	}
	return nil
}

// GetLastSyncAt возвращает нулевое время, если успешного цикла еще не было
func (s *Storage) GetLastSyncAt(ctx context.Context) (time.Time, error) {
	nanos, err := s.getInt(keyLastSyncAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last sync time: %w", err)
	}
	if nanos == 0 {
		return time.Time{}, nil
	}
	return time.Unix(0, nanos).UTC(), nil
}

func (s *Storage) putInt(key []byte, v int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketMetadata)
		if err != nil {
			return err
		}
		return b.Put(key, itob(uint64(v)))
	})
}

func (s *Storage) getInt(key []byte) (int64, error) {
	var v int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketMetadata)
		if err != nil {
			return err
		}
		if raw := b.Get(key); raw != nil {
			v = int64(binary.BigEndian.Uint64(raw))
		}
		return nil
	})
	return v, err
}

// itob кодирует число в big-endian, чтобы ключи bbolt сортировались по порядку
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
