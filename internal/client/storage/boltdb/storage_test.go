package boltdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
	bolterrors "go.etcd.io/bbolt/errors"
)

// newTestStorage создает хранилище во временной директории теста
func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func missingBuckets(t *testing.T, store *Storage) []string {
	t.Helper()
	var missing []string
	require.NoError(t, store.db.View(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if tx.Bucket(name) == nil {
				missing = append(missing, string(name))
			}
		}
		return nil
	}))
	return missing
}

func TestNew_CreatesBuckets(t *testing.T) {
	store := newTestStorage(t)
	assert.Empty(t, missingBuckets(t, store))
}

func TestNew_Errors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		store, err := New(context.Background(), filepath.Join(t.TempDir(), "missing", "client.db"))
		assert.Error(t, err)
		assert.Nil(t, store)
	})

	t.Run("file held by another client", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "client.db")
		first, err := New(context.Background(), path)
		require.NoError(t, err)
		defer func() { _ = first.Close() }()

		_, err = New(context.Background(), path)
		assert.ErrorIs(t, err, bolterrors.ErrTimeout)
	})
}

func TestClose_Twice(t *testing.T) {
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)

	assert.NoError(t, store.Close())
	assert.Nil(t, store.db)
	assert.NoError(t, store.Close())
}

func TestInitBuckets_RestoresDropped(t *testing.T) {
	store := newTestStorage(t)

	require.NoError(t, store.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketOutbox); err != nil {
			return err
		}
		return tx.DeleteBucket(bucketMedia)
	}))
	assert.ElementsMatch(t, []string{"outbox", "media"}, missingBuckets(t, store))

	require.NoError(t, store.initBuckets())
	assert.Empty(t, missingBuckets(t, store))
}
