package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/internal/server/storage"
	"github.com/iudanet/fieldsync/internal/server/storage/sqlite"
	serversync "github.com/iudanet/fieldsync/internal/server/sync"
	"github.com/iudanet/fieldsync/pkg/api"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError, // Only show errors in tests
	}
	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}

func authed(req *http.Request, deviceID string, role models.Role) *http.Request {
	return req.WithContext(WithDevice(req.Context(), deviceID, role))
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

// setupRealSyncHandler собирает handler поверх настоящего процессора и SQLite
func setupRealSyncHandler(t *testing.T) *SyncHandler {
	t.Helper()
	db, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := setupTestLogger()
	return NewSyncHandler(logger,
		serversync.NewProcessor(db, logger, serversync.WithMaxBatchSize(2)),
		serversync.NewResolver(db, logger, nil),
		serversync.NewChangeFeed(db, 0, 0),
	)
}

func submitBatch(t *testing.T, h *SyncHandler, deviceID string, req api.BatchRequest) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/sync/batches", jsonBody(t, req))
	r = authed(r, deviceID, models.RoleDevice)
	w := httptest.NewRecorder()
	h.SubmitBatch(w, r)
	return w
}

func zoneDelta(id string, base int64, payload string) api.Delta {
	return api.Delta{
		EntityType:  "zone",
		EntityID:    id,
		Operation:   "update",
		BaseVersion: base,
		Payload:     payload,
		Timestamp:   time.Now().UTC(),
	}
}

func TestSyncHandler_EndToEnd(t *testing.T) {
	h := setupRealSyncHandler(t)

	// устройство A создает зону
	w := submitBatch(t, h, "device-a", api.BatchRequest{DeviceID: "device-a", Deltas: []api.Delta{zoneDelta("z1", 0, "v1")}})
	require.Equal(t, http.StatusOK, w.Code)
	var first api.BatchResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&first))
	assert.Equal(t, "completed", first.Status)
	require.Len(t, first.Applied, 1)
	assert.Equal(t, int64(1), first.Applied[0].Version)

	// устройство B отправляет устаревшую версию
	w = submitBatch(t, h, "device-b", api.BatchRequest{DeviceID: "device-b", Deltas: []api.Delta{zoneDelta("z1", 0, "v2")}})
	require.Equal(t, http.StatusOK, w.Code)
	var second api.BatchResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&second))
	assert.Equal(t, "failed", second.Status)
	require.Len(t, second.Conflicts, 1)
	conflict := second.Conflicts[0]
	assert.Equal(t, int64(1), conflict.ServerVersion)
	assert.Equal(t, "v1", conflict.ServerPayload)

	// устройство видит только свои конфликты
	r := authed(httptest.NewRequest(http.MethodGet, "/api/v1/sync/conflicts?status=unresolved", nil), "device-b", models.RoleDevice)
	w = httptest.NewRecorder()
	h.ListConflicts(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	var listed api.ConflictsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&listed))
	require.Len(t, listed.Conflicts, 1)
	assert.Equal(t, conflict.ID, listed.Conflicts[0].ID)

	// оператор выбирает вариант клиента
	r = httptest.NewRequest(http.MethodPost, "/api/v1/sync/conflicts/"+conflict.ID+"/resolve",
		jsonBody(t, api.ResolveRequest{Strategy: "client_wins"}))
	r.SetPathValue("id", conflict.ID)
	r = authed(r, "ops-01", models.RoleOperator)
	w = httptest.NewRecorder()
	h.ResolveConflict(w, r)
	require.Equal(t, http.StatusNoContent, w.Code)

	// повторное разрешение - 409
	r = httptest.NewRequest(http.MethodPost, "/api/v1/sync/conflicts/"+conflict.ID+"/resolve",
		jsonBody(t, api.ResolveRequest{Strategy: "server_wins"}))
	r.SetPathValue("id", conflict.ID)
	r = authed(r, "ops-01", models.RoleOperator)
	w = httptest.NewRecorder()
	h.ResolveConflict(w, r)
	assert.Equal(t, http.StatusConflict, w.Code)

	// лента изменений содержит итоговое состояние
	r = authed(httptest.NewRequest(http.MethodGet, "/api/v1/sync/changes?since=1", nil), "device-a", models.RoleDevice)
	w = httptest.NewRecorder()
	h.GetChanges(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	var changes api.ChangesResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&changes))
	require.Len(t, changes.Changes, 1)
	assert.Equal(t, int64(2), changes.Changes[0].Version)
	assert.Equal(t, "v2", changes.Changes[0].Payload)
	assert.Equal(t, "device-b", changes.Changes[0].DeviceID)
	assert.Equal(t, int64(2), changes.ServerTimestamp)
	assert.False(t, changes.HasMore)
}

func TestSyncHandler_SubmitBatch_Errors(t *testing.T) {
	h := setupRealSyncHandler(t)

	tests := []struct {
		name     string
		deviceID string
		req      api.BatchRequest
		wantCode int
	}{
		{
			name:     "device mismatch",
			deviceID: "device-a",
			req:      api.BatchRequest{DeviceID: "device-b", Deltas: []api.Delta{zoneDelta("z1", 0, "v1")}},
			wantCode: http.StatusForbidden,
		},
		{
			name:     "unknown entity type",
			deviceID: "device-a",
			req: api.BatchRequest{DeviceID: "device-a", Deltas: []api.Delta{
				{EntityType: "spaceship", EntityID: "s1", Operation: "create", Payload: "{}"},
			}},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "negative base version",
			deviceID: "device-a",
			req:      api.BatchRequest{DeviceID: "device-a", Deltas: []api.Delta{zoneDelta("z1", -1, "v1")}},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "too large",
			deviceID: "device-a",
			req: api.BatchRequest{DeviceID: "device-a", Deltas: []api.Delta{
				zoneDelta("z1", 0, "a"), zoneDelta("z2", 0, "b"), zoneDelta("z3", 0, "c"),
			}},
			wantCode: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := submitBatch(t, h, tt.deviceID, tt.req)
			assert.Equal(t, tt.wantCode, w.Code)

			var errResp api.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&errResp))
			assert.NotEmpty(t, errResp.Message)
		})
	}
}

func TestSyncHandler_SubmitBatch_Unauthorized(t *testing.T) {
	h := NewSyncHandler(setupTestLogger(), &BatchProcessorMock{}, &ConflictResolverMock{}, &ChangeSourceMock{})

	r := httptest.NewRequest(http.MethodPost, "/api/v1/sync/batches", jsonBody(t, api.BatchRequest{DeviceID: "device-a"}))
	w := httptest.NewRecorder()
	h.SubmitBatch(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSyncHandler_SubmitBatch_Replay(t *testing.T) {
	h := setupRealSyncHandler(t)
	req := api.BatchRequest{BatchID: "batch-1", DeviceID: "device-a", Deltas: []api.Delta{zoneDelta("z1", 0, "v1")}}

	require.Equal(t, http.StatusOK, submitBatch(t, h, "device-a", req).Code)

	w := submitBatch(t, h, "device-a", req)
	require.Equal(t, http.StatusOK, w.Code)
	var resp api.BatchResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Replayed)
	assert.Equal(t, "batch-1", resp.BatchID)
	assert.Equal(t, 1, resp.AppliedCount)
}

func TestSyncHandler_StorageErrorIsHidden(t *testing.T) {
	processor := &BatchProcessorMock{
		ProcessBatchFunc: func(ctx context.Context, req serversync.BatchRequest) (*serversync.BatchResult, error) {
			return nil, errors.New("sqlite: disk I/O error")
		},
	}
	h := NewSyncHandler(setupTestLogger(), processor, &ConflictResolverMock{}, &ChangeSourceMock{})

	w := submitBatch(t, h, "device-a", api.BatchRequest{DeviceID: "device-a", Deltas: []api.Delta{zoneDelta("z1", 0, "v1")}})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk I/O")
	require.Len(t, processor.ProcessBatchCalls(), 1)
	assert.Equal(t, "device-a", processor.ProcessBatchCalls()[0].Req.DeviceID)
}

func TestSyncHandler_GetChanges_Query(t *testing.T) {
	source := &ChangeSourceMock{
		ChangesFunc: func(ctx context.Context, since int64, limit int) (*models.ChangePage, error) {
			return &models.ChangePage{ServerTimestamp: since}, nil
		},
	}
	h := NewSyncHandler(setupTestLogger(), &BatchProcessorMock{}, &ConflictResolverMock{}, source)

	tests := []struct {
		name      string
		query     string
		wantSince int64
		wantLimit int
		wantCode  int
	}{
		{name: "defaults", query: "", wantCode: http.StatusOK},
		{name: "since and limit", query: "?since=42&limit=10", wantSince: 42, wantLimit: 10, wantCode: http.StatusOK},
		{name: "invalid since", query: "?since=abc", wantCode: http.StatusBadRequest},
		{name: "negative limit", query: "?limit=-5", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(source.ChangesCalls())
			r := authed(httptest.NewRequest(http.MethodGet, "/api/v1/sync/changes"+tt.query, nil), "device-a", models.RoleDevice)
			w := httptest.NewRecorder()
			h.GetChanges(w, r)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode != http.StatusOK {
				assert.Len(t, source.ChangesCalls(), before)
				return
			}
			calls := source.ChangesCalls()
			require.Len(t, calls, before+1)
			assert.Equal(t, tt.wantSince, calls[before].Since)
			assert.Equal(t, tt.wantLimit, calls[before].Limit)

			var resp api.ChangesResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.NotNil(t, resp.Changes)
			assert.Equal(t, tt.wantSince, resp.ServerTimestamp)
		})
	}
}

func TestSyncHandler_ListConflicts_Scope(t *testing.T) {
	resolver := &ConflictResolverMock{
		ListFunc: func(ctx context.Context, filter storage.ConflictFilter) ([]*models.Conflict, error) {
			return nil, nil
		},
	}
	h := NewSyncHandler(setupTestLogger(), &BatchProcessorMock{}, resolver, &ChangeSourceMock{})

	tests := []struct {
		name       string
		deviceID   string
		role       models.Role
		query      string
		wantDevice string
		wantCode   int
	}{
		{name: "device defaults to itself", deviceID: "device-a", role: models.RoleDevice, wantDevice: "device-a", wantCode: http.StatusOK},
		{name: "device asks for itself", deviceID: "device-a", role: models.RoleDevice, query: "?device_id=device-a", wantDevice: "device-a", wantCode: http.StatusOK},
		{name: "device asks for another", deviceID: "device-a", role: models.RoleDevice, query: "?device_id=device-b", wantCode: http.StatusForbidden},
		{name: "operator sees all", deviceID: "ops-01", role: models.RoleOperator, wantDevice: "", wantCode: http.StatusOK},
		{name: "operator filters", deviceID: "ops-01", role: models.RoleOperator, query: "?device_id=device-b", wantDevice: "device-b", wantCode: http.StatusOK},
		{name: "unknown status", deviceID: "ops-01", role: models.RoleOperator, query: "?status=maybe", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(resolver.ListCalls())
			r := authed(httptest.NewRequest(http.MethodGet, "/api/v1/sync/conflicts"+tt.query, nil), tt.deviceID, tt.role)
			w := httptest.NewRecorder()
			h.ListConflicts(w, r)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusOK {
				calls := resolver.ListCalls()
				require.Len(t, calls, before+1)
				assert.Equal(t, tt.wantDevice, calls[before].Filter.DeviceID)
			}
		})
	}
}

func TestSyncHandler_ResolveConflict_Errors(t *testing.T) {
	tests := []struct {
		resolveErr error
		name       string
		body       string
		wantCode   int
	}{
		{name: "unknown strategy", body: `{"strategy":"coin_flip"}`, wantCode: http.StatusBadRequest},
		{name: "merge without payload", body: `{"strategy":"manual_merge"}`, resolveErr: models.ErrMergedPayloadRequired, wantCode: http.StatusBadRequest},
		{name: "not found", body: `{"strategy":"server_wins"}`, resolveErr: fmt.Errorf("lookup: %w", storage.ErrConflictNotFound), wantCode: http.StatusNotFound},
		{name: "already resolved", body: `{"strategy":"server_wins"}`, resolveErr: models.ErrConflictAlreadyResolved, wantCode: http.StatusConflict},
		{name: "bad body", body: `{`, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &ConflictResolverMock{
				ResolveFunc: func(ctx context.Context, req serversync.ResolveRequest) (*serversync.ResolveResult, error) {
					return nil, tt.resolveErr
				},
			}
			h := NewSyncHandler(setupTestLogger(), &BatchProcessorMock{}, resolver, &ChangeSourceMock{})

			r := httptest.NewRequest(http.MethodPost, "/api/v1/sync/conflicts/c1/resolve", bytes.NewBufferString(tt.body))
			r.SetPathValue("id", "c1")
			r = authed(r, "ops-01", models.RoleOperator)
			w := httptest.NewRecorder()
			h.ResolveConflict(w, r)

			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}
