package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/internal/server/storage"
)

// ResolveRequest входные данные разрешения конфликта
type ResolveRequest struct {
	MergedPayload *string // обязателен для manual_merge
	ConflictID    string
	Strategy      models.Strategy
	ResolvedBy    string // устройство/оператор, разрешающий конфликт
}

// ResolveResult результат разрешения
type ResolveResult struct {
	Conflict *models.Conflict
	Version  int64 // новая версия леджера, 0 если леджер не менялся
}

// Resolver terminates conflicts and advances the ledger when the strategy requires it.
type Resolver struct {
	store     storage.SyncStorage
	publisher Publisher
	validator PayloadValidator
	logger    *slog.Logger
	now       func() time.Time
}

// ResolverOption настраивает Resolver
type ResolverOption func(*Resolver)

// WithMergeValidator проверяет payload manual_merge теми же правилами, что и дельты батча
func WithMergeValidator(v PayloadValidator) ResolverOption {
	return func(r *Resolver) { r.validator = v }
}

// NewResolver creates a conflict resolver
func NewResolver(store storage.SyncStorage, logger *slog.Logger, publisher Publisher, opts ...ResolverOption) *Resolver {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	r := &Resolver{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve applies the strategy to one conflict.
// client_wins and manual_merge write current+1 attributed to the batch's device;
// server_wins leaves the ledger untouched.
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) (*ResolveResult, error) {
	if req.ConflictID == "" {
		return nil, models.NewValidationError("conflict_id", "conflict id cannot be empty")
	}

	var (
		result *ResolveResult
		batch  *models.Batch
	)
	err := r.store.WithinTx(ctx, func(tx storage.Tx) error {
		var err error
		batch, err = tx.GetBatchByConflictID(ctx, req.ConflictID)
		if err != nil {
			return err
		}

		conflict, ok := batch.FindConflict(req.ConflictID)
		if !ok {
			return fmt.Errorf("conflict %s in batch %s: %w", req.ConflictID, batch.ID, storage.ErrConflictNotFound)
		}

		if err := r.validateMerge(conflict, req); err != nil {
			return err
		}

		payload, err := conflict.Resolve(req.Strategy, req.MergedPayload, req.ResolvedBy, r.now())
		if err != nil {
			return err
		}

		var version int64
		if req.Strategy.AdvancesLedger() {
			current, err := tx.GetCurrentVersion(ctx, conflict.Ref)
			if err != nil {
				return err
			}
			version = current + 1
			op := conflict.ResolutionOperation(req.Strategy)
			if err := tx.SetVersion(ctx, conflict.Ref, version, payload, batch.DeviceID, op); err != nil {
				return err
			}
		}

		if err := tx.UpdateConflict(ctx, conflict); err != nil {
			return err
		}

		result = &ResolveResult{Conflict: conflict, Version: version}
		return nil
	})
	if err != nil {
		r.logger.WarnContext(ctx, "Conflict resolution failed",
			"conflict_id", req.ConflictID,
			"strategy", req.Strategy,
			"error", err)
		return nil, err
	}

	r.publisher.Publish(ctx, models.ConflictResolved{
		At:         r.now(),
		ConflictID: result.Conflict.ID,
		BatchID:    batch.ID,
		DeviceID:   batch.DeviceID,
		ResolvedBy: req.ResolvedBy,
		Ref:        result.Conflict.Ref,
		Status:     result.Conflict.Status,
		Version:    result.Version,
	})

	r.logger.InfoContext(ctx, "Conflict resolved",
		"conflict_id", req.ConflictID,
		"batch_id", batch.ID,
		"strategy", req.Strategy,
		"resolved_by", req.ResolvedBy,
		"version", result.Version)

	return result, nil
}

// validateMerge пропускает объединенный payload через правила типа сущности
// до записи в леджер; остальные стратегии пишут уже проверенные payload
func (r *Resolver) validateMerge(c *models.Conflict, req ResolveRequest) error {
	if r.validator == nil || req.Strategy != models.StrategyManualMerge || req.MergedPayload == nil || c.Resolved() {
		return nil
	}
	return r.validator.Validate(models.Delta{
		Ref:       c.Ref,
		Operation: c.ResolutionOperation(req.Strategy),
		Payload:   *req.MergedPayload,
	})
}

// List returns conflicts matching the filter
func (r *Resolver) List(ctx context.Context, filter storage.ConflictFilter) ([]*models.Conflict, error) {
	conflicts, err := r.store.ListConflicts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	return conflicts, nil
}
