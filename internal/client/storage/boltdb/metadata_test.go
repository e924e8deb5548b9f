package boltdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func TestPullCheckpoint(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	// до первой синхронизации контрольная точка равна 0
	seq, err := store.GetPullCheckpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	require.NoError(t, store.SavePullCheckpoint(ctx, 1234))
	require.NoError(t, store.SavePullCheckpoint(ctx, 1240))

	seq, err = store.GetPullCheckpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1240), seq)
}

func TestLastSyncAt(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	at, err := store.GetLastSyncAt(ctx)
	require.NoError(t, err)
	assert.True(t, at.IsZero())

	finished := time.Date(2026, 10, 16, 9, 30, 0, 123, time.UTC)
	require.NoError(t, store.SaveLastSyncAt(ctx, finished))

	at, err = store.GetLastSyncAt(ctx)
	require.NoError(t, err)
	assert.True(t, finished.Equal(at))

	// контрольная точка pull хранится отдельно
	seq, err := store.GetPullCheckpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)
}

func TestMetadata_BucketMissing(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	err := store.db.Update(func(tx *bbolt.Tx) error {
		return tx.DeleteBucket(bucketMetadata)
	})
	require.NoError(t, err)

	_, err = store.GetPullCheckpoint(ctx)
	assert.ErrorContains(t, err, "metadata bucket not found")

	err = store.SavePullCheckpoint(ctx, 42)
	assert.ErrorContains(t, err, "metadata bucket not found")

	_, err = store.GetLastSyncAt(ctx)
	assert.ErrorContains(t, err, "metadata bucket not found")
}
