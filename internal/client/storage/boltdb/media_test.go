package boltdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/fieldsync/internal/client/storage"
	"github.com/iudanet/fieldsync/internal/models"
)

func TestMediaQueue(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)
	photo := models.EntityRef{Type: models.EntityTypePhoto, ID: "ph1"}
	now := time.Now().UTC()

	require.NoError(t, store.QueueMedia(ctx, &models.MediaUpload{ID: "m2", Ref: photo, FilePath: "/tmp/b.jpg", CreatedAt: now.Add(time.Second)}))
	require.NoError(t, store.QueueMedia(ctx, &models.MediaUpload{ID: "m1", Ref: photo, FilePath: "/tmp/a.jpg", CreatedAt: now}))

	pending, err := store.PendingMedia(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "m1", pending[0].ID)
	assert.Equal(t, models.MediaStatusPending, pending[0].Status)

	require.NoError(t, store.MarkMediaFailed(ctx, "m1", "connection refused"))
	require.NoError(t, store.MarkMediaUploaded(ctx, "m2", "media://media/ph1/u2"))

	pending, err = store.PendingMedia(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "m1", pending[0].ID)
	assert.Equal(t, models.MediaStatusFailed, pending[0].Status)
	assert.Equal(t, 1, pending[0].RetryCount)
	assert.Equal(t, "connection refused", pending[0].LastError)

	all, err := store.ListMedia(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "media://media/ph1/u2", all[1].Reference)

	assert.ErrorIs(t, store.MarkMediaFailed(ctx, "missing", "x"), storage.ErrMediaNotFound)
}

func TestQueueMedia_Validation(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)

	err := store.QueueMedia(ctx, &models.MediaUpload{Ref: models.EntityRef{Type: models.EntityTypePhoto, ID: "ph1"}})
	assert.ErrorIs(t, err, models.ErrValidation)

	err = store.QueueMedia(ctx, &models.MediaUpload{ID: "m1", Ref: models.EntityRef{Type: "video", ID: "v"}})
	assert.ErrorIs(t, err, models.ErrValidation)
}
