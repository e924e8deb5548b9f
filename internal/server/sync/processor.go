// Package sync implements the server side of batch synchronization:
// optimistic-concurrency batch processing, conflict resolution and the change feed.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/internal/server/storage"
	"github.com/iudanet/fieldsync/internal/validation"
)

// ErrBatchTooLarge батч превышает настроенный максимум дельт
var ErrBatchTooLarge = fmt.Errorf("%w: batch too large", models.ErrValidation)

// DefaultMaxBatchSize максимальное количество дельт в батче по умолчанию
const DefaultMaxBatchSize = 500

// PayloadValidator проверяет payload дельты до обработки батча
type PayloadValidator interface {
	Validate(d models.Delta) error
}

// Publisher получает события после коммита
type Publisher interface {
	Publish(ctx context.Context, event models.Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, models.Event) {}

// BatchRequest входные данные обработки батча
type BatchRequest struct {
	BatchID  string // пустой - сервер сгенерирует
	DeviceID string
	Deltas   []models.Delta
}

// BatchResult результат обработки батча
type BatchResult struct {
	Batch    *models.Batch
	Replayed bool // батч с этим id уже был обработан, возвращен сохраненный результат
}

// Processor classifies each delta of a batch against the ledger.
type Processor struct {
	store        storage.SyncStorage
	validator    PayloadValidator
	publisher    Publisher
	logger       *slog.Logger
	now          func() time.Time
	newID        func() string
	maxBatchSize int
}

// ProcessorOption настраивает Processor
type ProcessorOption func(*Processor)

// WithValidator задает валидатор payload
func WithValidator(v PayloadValidator) ProcessorOption {
	return func(p *Processor) { p.validator = v }
}

// WithPublisher задает получателя событий
func WithPublisher(pub Publisher) ProcessorOption {
	return func(p *Processor) { p.publisher = pub }
}

// WithMaxBatchSize задает максимальный размер батча
func WithMaxBatchSize(n int) ProcessorOption {
	return func(p *Processor) { p.maxBatchSize = n }
}

// WithClock подменяет источник времени
func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) { p.now = now }
}

// NewProcessor creates a batch processor
func NewProcessor(store storage.SyncStorage, logger *slog.Logger, opts ...ProcessorOption) *Processor {
	p := &Processor{
		store:        store,
		publisher:    nopPublisher{},
		logger:       logger,
		now:          time.Now,
		newID:        func() string { return uuid.New().String() },
		maxBatchSize: DefaultMaxBatchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessBatch validates the request, classifies every delta and persists the batch.
// Ledger writes and batch persistence commit together; a storage error rolls both back.
func (p *Processor) ProcessBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	if err := p.validate(req); err != nil {
		return nil, err
	}

	batchID := req.BatchID
	if batchID == "" {
		batchID = p.newID()
	}

	var result *BatchResult
	err := p.store.WithinTx(ctx, func(tx storage.Tx) error {
		if req.BatchID != "" {
			existing, err := tx.GetBatch(ctx, req.BatchID)
			switch {
			case err == nil:
				if existing.DeviceID != req.DeviceID {
					return models.NewValidationError("batch_id", "batch id already used by another device")
				}
				result = &BatchResult{Batch: existing, Replayed: true}
				return nil
			case !errors.Is(err, storage.ErrBatchNotFound):
				return fmt.Errorf("failed to check batch %s: %w", req.BatchID, err)
			}
		}

		batch, err := p.apply(ctx, tx, batchID, req)
		if err != nil {
			return err
		}
		if err := tx.SaveBatch(ctx, batch); err != nil {
			return fmt.Errorf("failed to save batch: %w", err)
		}
		result = &BatchResult{Batch: batch}
		return nil
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "Batch processing failed",
			"batch_id", batchID,
			"device_id", req.DeviceID,
			"error", err)
		return nil, err
	}

	if result.Replayed {
		p.logger.InfoContext(ctx, "Batch replayed",
			"batch_id", batchID,
			"device_id", req.DeviceID,
			"status", result.Batch.Status)
		return result, nil
	}

	p.publishBatch(ctx, result.Batch)

	p.logger.InfoContext(ctx, "Batch processed",
		"batch_id", result.Batch.ID,
		"device_id", req.DeviceID,
		"status", result.Batch.Status,
		"applied", result.Batch.AppliedCount(),
		"conflicts", result.Batch.ConflictCount())

	return result, nil
}

// apply выполняет сравнение версий для каждой дельты по порядку
func (p *Processor) apply(ctx context.Context, tx storage.Tx, batchID string, req BatchRequest) (*models.Batch, error) {
	now := p.now()
	batch := models.NewBatch(batchID, req.DeviceID, now)

	for i, d := range req.Deltas {
		current, err := tx.GetCurrentVersion(ctx, d.Ref)
		if err != nil {
			return nil, fmt.Errorf("delta %d: %w", i, err)
		}

		if d.BaseVersion == current {
			next := current + 1
			if err := tx.SetVersion(ctx, d.Ref, next, d.Payload, req.DeviceID, d.Operation); err != nil {
				return nil, fmt.Errorf("delta %d: %w", i, err)
			}
			if err := batch.AddApplied(d, next); err != nil {
				return nil, err
			}
			continue
		}

		serverPayload, err := tx.GetCurrentPayload(ctx, d.Ref)
		if err != nil {
			return nil, fmt.Errorf("delta %d: %w", i, err)
		}
		conflict := models.NewConflict(p.newID(), req.DeviceID, d, serverPayload, current, now)
		if err := batch.AddConflict(conflict); err != nil {
			return nil, err
		}

		p.logger.DebugContext(ctx, "Version mismatch",
			"batch_id", batchID,
			"entity", d.Ref.String(),
			"base_version", d.BaseVersion,
			"current_version", current)
	}

	if err := batch.Complete(p.now()); err != nil {
		return nil, err
	}
	return batch, nil
}

func (p *Processor) validate(req BatchRequest) error {
	if req.DeviceID == "" {
		return models.NewValidationError("device_id", "device id cannot be empty")
	}
	if err := validation.ValidateBatchID(req.BatchID); err != nil {
		return models.NewValidationError("batch_id", err.Error())
	}
	if p.maxBatchSize > 0 && len(req.Deltas) > p.maxBatchSize {
		return fmt.Errorf("%w: %d deltas, max %d", ErrBatchTooLarge, len(req.Deltas), p.maxBatchSize)
	}

	for i, d := range req.Deltas {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("delta %d: %w", i, err)
		}
		if p.validator != nil {
			if err := p.validator.Validate(d); err != nil {
				return fmt.Errorf("delta %d: %w", i, err)
			}
		}
	}
	return nil
}

func (p *Processor) publishBatch(ctx context.Context, b *models.Batch) {
	at := p.now()
	p.publisher.Publish(ctx, models.BatchProcessed{
		At:            at,
		BatchID:       b.ID,
		DeviceID:      b.DeviceID,
		Status:        b.Status,
		AppliedCount:  b.AppliedCount(),
		ConflictCount: b.ConflictCount(),
	})
	for _, c := range b.Conflicts {
		p.publisher.Publish(ctx, models.ConflictDetected{
			At:         at,
			ConflictID: c.ID,
			BatchID:    b.ID,
			DeviceID:   b.DeviceID,
			Ref:        c.Ref,
		})
	}
}
