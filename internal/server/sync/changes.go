package sync

import (
	"context"
	"fmt"

	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/internal/server/storage"
)

// Лимиты страницы ленты изменений по умолчанию
const (
	DefaultPageSize = 500
	MaxPageSize     = 1000
)

// ChangeFeed pages through ledger changes after a checkpoint.
type ChangeFeed struct {
	store       storage.SyncStorage
	defaultSize int
	maxSize     int
}

// NewChangeFeed creates a change feed; non-positive sizes fall back to defaults
func NewChangeFeed(store storage.SyncStorage, defaultSize, maxSize int) *ChangeFeed {
	if maxSize <= 0 {
		maxSize = MaxPageSize
	}
	if defaultSize <= 0 || defaultSize > maxSize {
		defaultSize = min(DefaultPageSize, maxSize)
	}
	return &ChangeFeed{store: store, defaultSize: defaultSize, maxSize: maxSize}
}

// Changes returns one page of changes with seq > since.
// ServerTimestamp is the seq of the last change in the page; an empty page keeps since,
// or rewinds to the server's current seq when since is ahead of it.
func (f *ChangeFeed) Changes(ctx context.Context, since int64, limit int) (*models.ChangePage, error) {
	if since < 0 {
		return nil, models.NewValidationError("since", "since cannot be negative")
	}
	if limit <= 0 {
		limit = f.defaultSize
	}
	if limit > f.maxSize {
		limit = f.maxSize
	}

	entries, hasMore, err := f.store.GetChangesSince(ctx, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read changes: %w", err)
	}

	page := &models.ChangePage{
		Changes:         make([]models.Change, 0, len(entries)),
		ServerTimestamp: since,
		HasMore:         hasMore,
	}
	for _, e := range entries {
		page.Changes = append(page.Changes, models.ChangeFromLedger(e))
		page.ServerTimestamp = e.Seq
	}

	if len(entries) == 0 {
		current, err := f.store.CurrentSeq(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read current sequence: %w", err)
		}
		if since > current {
			page.ServerTimestamp = current
		}
	}

	return page, nil
}
