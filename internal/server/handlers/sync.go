package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/internal/server/storage"
	serversync "github.com/iudanet/fieldsync/internal/server/sync"
	"github.com/iudanet/fieldsync/pkg/api"
)

//go:generate moq -out sync_mock_test.go . BatchProcessor ConflictResolver ChangeSource

// BatchProcessor обрабатывает батчи дельт
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, req serversync.BatchRequest) (*serversync.BatchResult, error)
}

// ConflictResolver разрешает и перечисляет конфликты
type ConflictResolver interface {
	Resolve(ctx context.Context, req serversync.ResolveRequest) (*serversync.ResolveResult, error)
	List(ctx context.Context, filter storage.ConflictFilter) ([]*models.Conflict, error)
}

// ChangeSource отдает страницы ленты изменений
type ChangeSource interface {
	Changes(ctx context.Context, since int64, limit int) (*models.ChangePage, error)
}

// SyncHandler handles synchronization requests
type SyncHandler struct {
	logger    *slog.Logger
	processor BatchProcessor
	resolver  ConflictResolver
	changes   ChangeSource
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(logger *slog.Logger, processor BatchProcessor, resolver ConflictResolver, changes ChangeSource) *SyncHandler {
	return &SyncHandler{
		logger:    logger,
		processor: processor,
		resolver:  resolver,
		changes:   changes,
	}
}

// SubmitBatch обрабатывает POST /api/v1/sync/batches
func (h *SyncHandler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	deviceID, ok := GetDeviceID(ctx)
	if !ok {
		h.logger.ErrorContext(ctx, "Device ID not found in context")
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.BatchRequest
	if err := decodeJSON(r, &req); err != nil {
		sendServiceError(ctx, h.logger, w, "Submit batch", err)
		return
	}

	// Батч можно отправить только от имени своего устройства
	if req.DeviceID != deviceID {
		h.logger.WarnContext(ctx, "Batch device mismatch",
			"token_device_id", deviceID,
			"batch_device_id", req.DeviceID)
		sendError(h.logger, w, "device_id does not match the authenticated device", http.StatusForbidden)
		return
	}

	deltas := make([]models.Delta, 0, len(req.Deltas))
	for i, d := range req.Deltas {
		delta, err := d.ToModel()
		if err != nil {
			sendServiceError(ctx, h.logger, w, "Submit batch", fmt.Errorf("delta %d: %w", i, err))
			return
		}
		deltas = append(deltas, delta)
	}

	result, err := h.processor.ProcessBatch(ctx, serversync.BatchRequest{
		BatchID:  req.BatchID,
		DeviceID: deviceID,
		Deltas:   deltas,
	})
	if err != nil {
		sendServiceError(ctx, h.logger, w, "Submit batch", err)
		return
	}

	sendJSON(h.logger, w, api.BatchResponseFromModel(result.Batch, result.Replayed), http.StatusOK)
}

// GetChanges обрабатывает GET /api/v1/sync/changes?since=N&limit=M
func (h *SyncHandler) GetChanges(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	since, err := queryInt(r, "since")
	if err != nil {
		sendServiceError(ctx, h.logger, w, "Get changes", err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		sendServiceError(ctx, h.logger, w, "Get changes", err)
		return
	}

	page, err := h.changes.Changes(ctx, since, int(limit))
	if err != nil {
		sendServiceError(ctx, h.logger, w, "Get changes", err)
		return
	}

	resp := api.ChangesResponse{
		Changes:         make([]api.Change, 0, len(page.Changes)),
		ServerTimestamp: page.ServerTimestamp,
		HasMore:         page.HasMore,
	}
	for _, c := range page.Changes {
		resp.Changes = append(resp.Changes, api.ChangeFromModel(c))
	}

	h.logger.DebugContext(ctx, "Changes served",
		"since", since,
		"count", len(resp.Changes),
		"server_timestamp", resp.ServerTimestamp)

	sendJSON(h.logger, w, resp, http.StatusOK)
}

// ListConflicts обрабатывает GET /api/v1/sync/conflicts?device_id=&status=&limit=
// Устройство видит только свои конфликты, оператор - любые.
func (h *SyncHandler) ListConflicts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	deviceID, _ := GetDeviceID(ctx)
	role, _ := GetRole(ctx)

	filter := storage.ConflictFilter{DeviceID: r.URL.Query().Get("device_id")}
	if role != models.RoleOperator {
		if filter.DeviceID != "" && filter.DeviceID != deviceID {
			sendError(h.logger, w, "devices can only list their own conflicts", http.StatusForbidden)
			return
		}
		filter.DeviceID = deviceID
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := models.ParseConflictStatus(raw)
		if err != nil {
			sendServiceError(ctx, h.logger, w, "List conflicts", err)
			return
		}
		filter.Status = status
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		sendServiceError(ctx, h.logger, w, "List conflicts", err)
		return
	}
	filter.Limit = int(limit)

	conflicts, err := h.resolver.List(ctx, filter)
	if err != nil {
		sendServiceError(ctx, h.logger, w, "List conflicts", err)
		return
	}

	resp := api.ConflictsResponse{Conflicts: make([]api.Conflict, 0, len(conflicts))}
	for _, c := range conflicts {
		resp.Conflicts = append(resp.Conflicts, api.ConflictFromModel(c))
	}
	sendJSON(h.logger, w, resp, http.StatusOK)
}

// ResolveConflict обрабатывает POST /api/v1/sync/conflicts/{id}/resolve
func (h *SyncHandler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	deviceID, ok := GetDeviceID(ctx)
	if !ok {
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.ResolveRequest
	if err := decodeJSON(r, &req); err != nil {
		sendServiceError(ctx, h.logger, w, "Resolve conflict", err)
		return
	}
	strategy, err := models.ParseStrategy(req.Strategy)
	if err != nil {
		sendServiceError(ctx, h.logger, w, "Resolve conflict", err)
		return
	}

	_, err = h.resolver.Resolve(ctx, serversync.ResolveRequest{
		ConflictID:    r.PathValue("id"),
		Strategy:      strategy,
		MergedPayload: req.MergedPayload,
		ResolvedBy:    deviceID,
	})
	if err != nil {
		sendServiceError(ctx, h.logger, w, "Resolve conflict", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// queryInt разбирает неотрицательный целый параметр запроса; отсутствующий параметр равен 0
func queryInt(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, models.NewValidationError(name, "must be a non-negative integer")
	}
	return v, nil
}
