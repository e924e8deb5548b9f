package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/fieldsync/pkg/api"
)

// TestNewClient проверяет создание нового клиента
func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/", 0, false)

	assert.NotNil(t, client)
	assert.Equal(t, "http://localhost:8080", client.BaseURL())
	assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)

	client = NewClient("http://localhost:8080", 5*time.Second, true)
	assert.Equal(t, 5*time.Second, client.httpClient.Timeout)
	assert.True(t, client.compress)
}

// TestClient_Register проверяет успешную регистрацию
func TestClient_Register(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/auth/register", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Authorization"))

		var req api.RegisterRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tablet-01", req.DeviceID)
		assert.Equal(t, "device", req.Role)
		assert.Equal(t, "enroll-key", req.EnrollmentKey)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(api.RegisterResponse{DeviceID: req.DeviceID, Role: req.Role})
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, false)
	resp, err := client.Register(context.Background(), api.RegisterRequest{
		DeviceID:      "tablet-01",
		Role:          "device",
		EnrollmentKey: "enroll-key",
		Secret:        "secret",
	})

	require.NoError(t, err)
	assert.Equal(t, "tablet-01", resp.DeviceID)
	assert.Equal(t, "device", resp.Role)
}

// TestClient_Register_Error проверяет обработку ошибок при регистрации
func TestClient_Register_Error(t *testing.T) {
	tests := []struct {
		responseBody   interface{}
		name           string
		expectedErrMsg string
		statusCode     int
	}{
		{
			name:           "Device already exists",
			statusCode:     http.StatusConflict,
			responseBody:   api.ErrorResponse{Error: "Conflict", Message: "device already exists"},
			expectedErrMsg: "server error (409): device already exists",
		},
		{
			name:           "Invalid request",
			statusCode:     http.StatusBadRequest,
			responseBody:   api.ErrorResponse{Error: "Bad Request", Message: "device_id: too short"},
			expectedErrMsg: "server error (400): device_id: too short",
		},
		{
			name:           "Internal server error",
			statusCode:     http.StatusInternalServerError,
			responseBody:   "",
			expectedErrMsg: "request failed with status 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				if errResp, ok := tt.responseBody.(api.ErrorResponse); ok {
					_ = json.NewEncoder(w).Encode(errResp)
				} else {
					_, _ = w.Write([]byte(tt.responseBody.(string)))
				}
			}))
			defer server.Close()

			client := NewClient(server.URL, 0, false)
			resp, err := client.Register(context.Background(), api.RegisterRequest{DeviceID: "tablet-01"})

			require.Error(t, err)
			assert.Nil(t, resp)
			assert.Contains(t, err.Error(), tt.expectedErrMsg)
			assert.Equal(t, tt.statusCode, StatusCode(err))
		})
	}
}

// TestClient_Login проверяет успешный логин
func TestClient_Login(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auth/login", r.URL.Path)

		var req api.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tablet-01", req.DeviceID)
		assert.Equal(t, "secret", req.Secret)

		_ = json.NewEncoder(w).Encode(api.TokenResponse{AccessToken: "token-1", Role: "device", ExpiresIn: 900})
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, false)
	resp, err := client.Login(context.Background(), api.LoginRequest{DeviceID: "tablet-01", Secret: "secret"})

	require.NoError(t, err)
	assert.Equal(t, "token-1", resp.AccessToken)
	assert.Equal(t, int64(900), resp.ExpiresIn)
}

func TestClient_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "Unauthorized", Message: "token expired"})
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, false)
	_, err := client.GetChanges(context.Background(), "stale", 0, 10)

	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Unauthorized", apiErr.Code)
	assert.False(t, IsUnauthorized(errors.New("network down")))
}

func TestClient_SubmitBatch_Compressed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sync/batches", r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		assert.Equal(t, "snappy", r.Header.Get("Content-Encoding"))

		var req api.BatchRequest
		require.NoError(t, json.NewDecoder(snappy.NewReader(r.Body)).Decode(&req))
		assert.Equal(t, "batch-1", req.BatchID)
		require.Len(t, req.Deltas, 1)
		assert.Equal(t, "zone", req.Deltas[0].EntityType)

		_ = json.NewEncoder(w).Encode(api.BatchResponse{
			BatchID:      req.BatchID,
			Status:       "completed",
			AppliedCount: 1,
			Applied:      []api.AppliedVersion{{EntityType: "zone", EntityID: "z1", Version: 1}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, true)
	resp, err := client.SubmitBatch(context.Background(), "token-1", api.BatchRequest{
		BatchID:  "batch-1",
		DeviceID: "tablet-01",
		Deltas: []api.Delta{{
			EntityType: "zone",
			EntityID:   "z1",
			Operation:  "create",
			Payload:    `{"name":"A"}`,
		}},
	})

	require.NoError(t, err)
	assert.Equal(t, "completed", resp.Status)
	require.Len(t, resp.Applied, 1)
	assert.Equal(t, int64(1), resp.Applied[0].Version)
}

func TestClient_SubmitBatch_Uncompressed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Content-Encoding"))
		var req api.BatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(api.BatchResponse{BatchID: req.BatchID, Status: "completed"})
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, false)
	resp, err := client.SubmitBatch(context.Background(), "token-1", api.BatchRequest{BatchID: "b", DeviceID: "d"})

	require.NoError(t, err)
	assert.Equal(t, "b", resp.BatchID)
}

func TestClient_GetChanges(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/sync/changes", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("since"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))

		_ = json.NewEncoder(w).Encode(api.ChangesResponse{
			Changes:         []api.Change{{EntityType: "zone", EntityID: "z1", Operation: "update", Version: 3}},
			ServerTimestamp: 43,
			HasMore:         true,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, false)
	resp, err := client.GetChanges(context.Background(), "token-1", 42, 100)

	require.NoError(t, err)
	assert.Equal(t, int64(43), resp.ServerTimestamp)
	assert.True(t, resp.HasMore)
	require.Len(t, resp.Changes, 1)
}

func TestClient_Conflicts(t *testing.T) {
	var resolved api.ResolveRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/sync/conflicts":
			assert.Equal(t, "tablet-01", r.URL.Query().Get("device_id"))
			assert.Equal(t, "unresolved", r.URL.Query().Get("status"))
			_ = json.NewEncoder(w).Encode(api.ConflictsResponse{Conflicts: []api.Conflict{{ID: "c1", Status: "unresolved"}}})
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/sync/conflicts/c1/resolve":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&resolved))
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, false)
	ctx := context.Background()

	list, err := client.ListConflicts(ctx, "token-1", ConflictQuery{DeviceID: "tablet-01", Status: "unresolved"})
	require.NoError(t, err)
	require.Len(t, list.Conflicts, 1)
	assert.Equal(t, "c1", list.Conflicts[0].ID)

	merged := `{"name":"merged"}`
	err = client.ResolveConflict(ctx, "token-1", "c1", api.ResolveRequest{Strategy: "manual_merge", MergedPayload: &merged})
	require.NoError(t, err)
	assert.Equal(t, "manual_merge", resolved.Strategy)
	require.NotNil(t, resolved.MergedPayload)
	assert.Equal(t, merged, *resolved.MergedPayload)
}

func TestClient_MediaUpload(t *testing.T) {
	var chunks [][]byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/media/uploads":
			var req api.InitUploadRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "p1", req.EntityID)
			assert.Equal(t, int64(6), req.Size)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(api.InitUploadResponse{UploadID: "u1", ChunkSize: 4})
		case r.Method == http.MethodPut && r.URL.Path == "/api/v1/media/uploads/u1/chunks/0",
			r.Method == http.MethodPut && r.URL.Path == "/api/v1/media/uploads/u1/chunks/1":
			assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
			data, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			chunks = append(chunks, data)
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/media/uploads/u1/complete":
			_ = json.NewEncoder(w).Encode(api.CompleteUploadResponse{Reference: "media://media/p1/u1"})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, true)
	ctx := context.Background()

	initResp, err := client.InitUpload(ctx, "token-1", api.InitUploadRequest{EntityID: "p1", ContentType: "image/jpeg", Size: 6})
	require.NoError(t, err)
	assert.Equal(t, "u1", initResp.UploadID)

	require.NoError(t, client.PutChunk(ctx, "token-1", "u1", 0, []byte("abcd")))
	require.NoError(t, client.PutChunk(ctx, "token-1", "u1", 1, []byte("ef")))

	done, err := client.CompleteUpload(ctx, "token-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "media://media/p1/u1", done.Reference)
	assert.Equal(t, [][]byte{[]byte("abcd"), []byte("ef")}, chunks)
}

func TestClient_Health(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/health", r.URL.Path)
		_ = json.NewEncoder(w).Encode(api.HealthResponse{Status: "ok", Version: "1.0.0"})
	}))
	defer server.Close()

	resp, err := NewClient(server.URL, 0, false).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
}

func TestClient_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(server.URL, 0, false).Health(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, StatusCode(err))
}
