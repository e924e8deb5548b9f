// Package sync drives the client side of synchronization: outbox push,
// media upload, change pull and the periodic scheduler.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	clientapi "github.com/iudanet/fieldsync/internal/client/api"
	"github.com/iudanet/fieldsync/internal/client/storage"
	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/pkg/api"
)

//go:generate moq -out apiclient_mock_test.go . APIClient TokenSource

// APIClient операции сервера, используемые циклом синхронизации
type APIClient interface {
	Health(ctx context.Context) (*api.HealthResponse, error)
	SubmitBatch(ctx context.Context, accessToken string, req api.BatchRequest) (*api.BatchResponse, error)
	GetChanges(ctx context.Context, accessToken string, since int64, limit int) (*api.ChangesResponse, error)
	InitUpload(ctx context.Context, accessToken string, req api.InitUploadRequest) (*api.InitUploadResponse, error)
	PutChunk(ctx context.Context, accessToken, uploadID string, index int, data []byte) error
	CompleteUpload(ctx context.Context, accessToken, uploadID string) (*api.CompleteUploadResponse, error)
}

// TokenSource выдает access token и сбрасывает отвергнутый сервером
type TokenSource interface {
	EnsureToken(ctx context.Context) (string, error)
	Invalidate(ctx context.Context) error
}

// Store локальное хранилище, с которым работает цикл
type Store interface {
	storage.EntityStorage
	storage.ConflictStorage
	storage.MediaStorage
	storage.MetadataStorage
}

// Default engine limits
const (
	DefaultBatchSize        = 100
	DefaultPullPageSize     = 500
	DefaultMediaConcurrency = 2
)

// Config настройки цикла синхронизации
type Config struct {
	DeviceID         string
	BatchSize        int
	PullPageSize     int
	MediaConcurrency int
	PhaseTimeout     time.Duration // 0 - без отдельного дедлайна на фазу
}

// batchNamespace пространство имен для детерминированных id батчей
var batchNamespace = uuid.MustParse("6f1c7f0e-3d5a-4c43-9a57-0f4f3b2c9e11")

// Engine выполняет циклы push → media → pull для одного устройства.
// Циклы никогда не выполняются параллельно.
type Engine struct {
	api     APIClient
	tokens  TokenSource
	store   Store
	logger  *slog.Logger
	now     func() time.Time
	cfg     Config
	mu      gosync.Mutex
	running bool
}

// NewEngine создает движок синхронизации
func NewEngine(apiClient APIClient, tokens TokenSource, store Store, cfg Config, logger *slog.Logger) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.PullPageSize <= 0 {
		cfg.PullPageSize = DefaultPullPageSize
	}
	if cfg.MediaConcurrency <= 0 {
		cfg.MediaConcurrency = DefaultMediaConcurrency
	}
	return &Engine{
		api:    apiClient,
		tokens: tokens,
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		cfg:    cfg,
	}
}

// Online проверяет доступность сервера
func (e *Engine) Online(ctx context.Context) error {
	if _, err := e.api.Health(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrOffline, err)
	}
	return nil
}

// RunCycle выполняет один цикл синхронизации.
// Если цикл уже идет, сразу возвращает ErrCycleInProgress.
// Ошибки фаз не прерывают цикл и собираются в CycleResult.Errors.
func (e *Engine) RunCycle(ctx context.Context) (*CycleResult, error) {
	if !e.acquire() {
		return nil, ErrCycleInProgress
	}
	defer e.release()

	res := &CycleResult{StartedAt: e.now()}

	token, err := e.tokens.EnsureToken(ctx)
	if err != nil {
		res.addError(PhaseAuth, err)
		res.FinishedAt = e.now()
		e.logger.WarnContext(ctx, "Sync cycle skipped: no access token", "error", err)
		return res, nil
	}

	e.runPhase(ctx, res, PhasePush, func(ctx context.Context) error { return e.push(ctx, token, res) })
	e.runPhase(ctx, res, PhaseMedia, func(ctx context.Context) error { return e.pushMedia(ctx, token, res) })
	e.runPhase(ctx, res, PhasePull, func(ctx context.Context) error { return e.pull(ctx, token, res) })

	res.FinishedAt = e.now()
	if res.Err() == nil {
		if err := e.store.SaveLastSyncAt(ctx, res.FinishedAt); err != nil {
			e.logger.WarnContext(ctx, "Failed to save last sync time", "error", err)
		}
	}
	e.logger.InfoContext(ctx, "Sync cycle finished",
		"pushed", res.Pushed,
		"applied", res.Applied,
		"conflicts", res.Conflicts,
		"media_uploaded", res.MediaUploaded,
		"pulled", res.Pulled,
		"errors", len(res.Errors),
		"duration", res.Duration())

	return res, nil
}

func (e *Engine) acquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return false
	}
	e.running = true
	return true
}

func (e *Engine) release() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

// runPhase выполняет фазу с отдельным дедлайном и записывает ее ошибку в результат
func (e *Engine) runPhase(ctx context.Context, res *CycleResult, phase Phase, fn func(ctx context.Context) error) {
	phaseCtx := ctx
	if e.cfg.PhaseTimeout > 0 {
		var cancel context.CancelFunc
		phaseCtx, cancel = context.WithTimeout(ctx, e.cfg.PhaseTimeout)
		defer cancel()
	}

	if err := fn(phaseCtx); err != nil {
		if clientapi.IsUnauthorized(err) {
			if invErr := e.tokens.Invalidate(ctx); invErr != nil {
				e.logger.WarnContext(ctx, "Failed to invalidate access token", "error", invErr)
			}
		}
		e.logger.WarnContext(ctx, "Sync phase failed", "phase", phase, "error", err)
		res.addError(phase, err)
	}
}

// push отправляет накопленные записи outbox одним батчем
func (e *Engine) push(ctx context.Context, token string, res *CycleResult) error {
	reset, err := e.store.ResetSyncing(ctx)
	if err != nil {
		return err
	}
	if reset > 0 {
		e.logger.InfoContext(ctx, "Recovered outbox entries from an interrupted cycle", "count", reset)
	}

	entries, err := e.store.PendingOutbox(ctx, e.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	ids := make([]uint64, 0, len(entries))
	deltas := make([]api.Delta, 0, len(entries))
	bases := make(map[models.EntityRef]int64, len(entries))
	chain := make(map[models.EntityRef]int64, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ID)
		delta := entry.ToDelta()
		// правка, сделанная поверх еще не подтвержденной, строится на версии,
		// которую получит предыдущая дельта той же сущности в этом батче
		if prev, ok := chain[entry.Ref]; ok {
			delta.BaseVersion = prev + 1
		} else {
			bases[entry.Ref] = entry.BaseVersion
		}
		chain[entry.Ref] = delta.BaseVersion
		deltas = append(deltas, api.DeltaFromModel(delta))
	}

	if err := e.store.MarkSyncing(ctx, ids); err != nil {
		return err
	}

	req := api.BatchRequest{
		BatchID:  batchID(e.cfg.DeviceID, entries),
		DeviceID: e.cfg.DeviceID,
		Deltas:   deltas,
	}
	resp, err := e.api.SubmitBatch(ctx, token, req)
	if err != nil {
		// контекст фазы мог истечь, статус записей фиксируем в любом случае
		if markErr := e.store.MarkFailed(context.WithoutCancel(ctx), ids, err.Error()); markErr != nil {
			e.logger.ErrorContext(ctx, "Failed to mark outbox entries failed", "error", markErr)
		}
		return err
	}

	if err := e.store.MarkSynced(ctx, ids); err != nil {
		return err
	}

	// одна сущность может получить несколько версий, подтверждается последняя
	confirmed := make(map[models.EntityRef]int64, len(resp.Applied))
	order := make([]models.EntityRef, 0, len(resp.Applied))
	for _, applied := range resp.Applied {
		ref, err := models.NewEntityRef(applied.EntityType, applied.EntityID)
		if err != nil {
			return fmt.Errorf("server returned invalid applied entity: %w", err)
		}
		v, seen := confirmed[ref]
		if !seen {
			order = append(order, ref)
		}
		if !seen || applied.Version > v {
			confirmed[ref] = applied.Version
		}
	}
	for _, ref := range order {
		if err := e.store.ConfirmVersion(ctx, ref, bases[ref], confirmed[ref]); err != nil {
			return err
		}
	}

	conflicts := make([]*models.Conflict, 0, len(resp.Conflicts))
	for _, c := range resp.Conflicts {
		conflict, err := c.ToModel()
		if err != nil {
			return fmt.Errorf("server returned invalid conflict: %w", err)
		}
		conflicts = append(conflicts, conflict)
	}
	if err := e.store.SaveConflicts(ctx, conflicts); err != nil {
		return err
	}

	res.Pushed = len(entries)
	res.Applied = resp.AppliedCount
	res.Conflicts = resp.ConflictCount

	e.logger.InfoContext(ctx, "Batch pushed",
		"batch_id", resp.BatchID,
		"status", resp.Status,
		"applied", resp.AppliedCount,
		"conflicts", resp.ConflictCount,
		"replayed", resp.Replayed)
	return nil
}

// batchID строит id батча из содержимого записей: повтор той же отправки
// после обрыва связи получает тот же id и сервер вернет сохраненный результат.
func batchID(deviceID string, entries []*models.OutboxEntry) string {
	h := make([]byte, 0, 64*len(entries))
	h = append(h, deviceID...)
	for _, e := range entries {
		h = append(h, 0)
		h = strconv.AppendUint(h, e.ID, 10)
		h = append(h, 0)
		h = append(h, e.Operation...)
		h = append(h, 0)
		h = strconv.AppendInt(h, e.BaseVersion, 10)
		h = append(h, 0)
		h = append(h, e.Payload...)
	}
	return uuid.NewSHA1(batchNamespace, h).String()
}

// pushMedia загружает очередь медиа с ограниченной параллельностью
func (e *Engine) pushMedia(ctx context.Context, token string, res *CycleResult) error {
	pending, err := e.store.PendingMedia(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	var (
		g        errgroup.Group
		mu       gosync.Mutex
		failures []error
		uploaded int
	)
	g.SetLimit(e.cfg.MediaConcurrency)

	for _, upload := range pending {
		g.Go(func() error {
			err := e.uploadMedia(ctx, token, upload)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, fmt.Errorf("upload %s: %w", upload.ID, err))
				return nil
			}
			uploaded++
			return nil
		})
	}
	_ = g.Wait()

	res.MediaUploaded = uploaded
	return errors.Join(failures...)
}

// uploadMedia загружает один файл по частям и записывает ссылку в сущность фото
func (e *Engine) uploadMedia(ctx context.Context, token string, upload *models.MediaUpload) (err error) {
	defer func() {
		if err == nil {
			return
		}
		if markErr := e.store.MarkMediaFailed(context.WithoutCancel(ctx), upload.ID, err.Error()); markErr != nil {
			e.logger.ErrorContext(ctx, "Failed to mark media upload failed", "upload", upload.ID, "error", markErr)
		}
	}()

	file, err := os.Open(upload.FilePath)
	if err != nil {
		return fmt.Errorf("failed to open media file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat media file: %w", err)
	}

	session, err := e.api.InitUpload(ctx, token, api.InitUploadRequest{
		EntityID:    upload.Ref.ID,
		ContentType: upload.ContentType,
		Size:        info.Size(),
	})
	if err != nil {
		return err
	}
	if session.ChunkSize <= 0 {
		return fmt.Errorf("server returned invalid chunk size %d", session.ChunkSize)
	}

	buf := make([]byte, session.ChunkSize)
	for index := 0; ; index++ {
		n, readErr := io.ReadFull(file, buf)
		if n > 0 {
			if err := e.api.PutChunk(ctx, token, session.UploadID, index, buf[:n]); err != nil {
				return err
			}
		}
		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			break
		}
		if readErr != nil {
			return fmt.Errorf("failed to read media file: %w", readErr)
		}
	}

	done, err := e.api.CompleteUpload(ctx, token, session.UploadID)
	if err != nil {
		return err
	}

	if err := e.attachReference(ctx, upload.Ref, done.Reference); err != nil {
		return err
	}
	if err := e.store.MarkMediaUploaded(ctx, upload.ID, done.Reference); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "Media uploaded", "entity_id", upload.Ref.ID, "reference", done.Reference)
	return nil
}

// attachReference записывает media_ref в payload фото как обычную пользовательскую мутацию
func (e *Engine) attachReference(ctx context.Context, ref models.EntityRef, reference string) error {
	fields := map[string]any{"id": ref.ID}
	op := models.OperationCreate

	local, err := e.store.GetEntity(ctx, ref)
	switch {
	case err == nil && !local.Deleted:
		op = models.OperationUpdate
		if local.Payload != "" {
			if err := json.Unmarshal([]byte(local.Payload), &fields); err != nil {
				return fmt.Errorf("photo payload is not a JSON object: %w", err)
			}
		}
	case err == nil, errors.Is(err, storage.ErrEntityNotFound):
	default:
		return err
	}
	fields["media_ref"] = reference

	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode photo payload: %w", err)
	}
	_, err = e.store.RecordMutation(ctx, models.Mutation{Ref: ref, Operation: op, Payload: string(payload), At: e.now()})
	return err
}

// pull забирает изменения после контрольной точки постранично.
// Контрольная точка сдвигается только после применения всей страницы.
func (e *Engine) pull(ctx context.Context, token string, res *CycleResult) error {
	since, err := e.store.GetPullCheckpoint(ctx)
	if err != nil {
		return err
	}

	for {
		page, err := e.api.GetChanges(ctx, token, since, e.cfg.PullPageSize)
		if err != nil {
			return err
		}

		changes := make([]models.Change, 0, len(page.Changes))
		for _, c := range page.Changes {
			change, err := c.ToModel()
			if err != nil {
				return fmt.Errorf("server returned invalid change: %w", err)
			}
			changes = append(changes, change)
		}
		for _, change := range changes {
			if err := e.applyChange(ctx, change); err != nil {
				return err
			}
			res.Pulled++
		}

		if page.ServerTimestamp != since {
			if err := e.store.SavePullCheckpoint(ctx, page.ServerTimestamp); err != nil {
				return err
			}
			since = page.ServerTimestamp
		}

		if !page.HasMore || len(page.Changes) == 0 {
			return nil
		}
	}
}

// applyChange применяет изменение с сервера через путь записи без outbox
func (e *Engine) applyChange(ctx context.Context, change models.Change) error {
	if change.Operation == models.OperationDelete {
		return e.store.RemoveRemote(ctx, change.Ref, change.Version)
	}
	_, err := e.store.ApplyRemote(ctx, change)
	return err
}
