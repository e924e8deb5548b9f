package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang/snappy"

	"github.com/iudanet/fieldsync/pkg/api"
)

// DefaultTimeout таймаут HTTP клиента по умолчанию
const DefaultTimeout = 30 * time.Second

const apiPrefix = "/api/v1"

// ClientAPI описывает операции сервера синхронизации, которыми пользуется клиент
type ClientAPI interface {
	Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error)
	Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error)
	Health(ctx context.Context) (*api.HealthResponse, error)
	SubmitBatch(ctx context.Context, accessToken string, req api.BatchRequest) (*api.BatchResponse, error)
	GetChanges(ctx context.Context, accessToken string, since int64, limit int) (*api.ChangesResponse, error)
	ListConflicts(ctx context.Context, accessToken string, query ConflictQuery) (*api.ConflictsResponse, error)
	ResolveConflict(ctx context.Context, accessToken, conflictID string, req api.ResolveRequest) error
	InitUpload(ctx context.Context, accessToken string, req api.InitUploadRequest) (*api.InitUploadResponse, error)
	PutChunk(ctx context.Context, accessToken, uploadID string, index int, data []byte) error
	CompleteUpload(ctx context.Context, accessToken, uploadID string) (*api.CompleteUploadResponse, error)
}

// ConflictQuery фильтр списка конфликтов на сервере
type ConflictQuery struct {
	DeviceID string
	Status   string
	Limit    int
}

// Error ошибка, возвращенная сервером (не 2xx ответ)
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// StatusCode возвращает HTTP статус ошибки сервера или 0
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether the server rejected the access token.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	baseURL    string
	compress   bool
}

// NewClient создает новый API клиент.
// compress включает сжатие тел батчей snappy.
func NewClient(baseURL string, timeout time.Duration, compress bool) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		compress: compress,
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// BaseURL возвращает адрес сервера
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Register регистрирует новое устройство
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
	var resp api.RegisterResponse
	if err := c.doJSON(ctx, http.MethodPost, apiPrefix+"/auth/register", "", req, &resp, false); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// Login выполняет аутентификацию устройства
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doJSON(ctx, http.MethodPost, apiPrefix+"/auth/login", "", req, &resp, false); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// Health проверяет доступность сервера
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, apiPrefix+"/health", "", nil, &resp, false); err != nil {
		return nil, fmt.Errorf("health request failed: %w", err)
	}
	return &resp, nil
}

// SubmitBatch отправляет батч дельт
func (c *Client) SubmitBatch(ctx context.Context, accessToken string, req api.BatchRequest) (*api.BatchResponse, error) {
	var resp api.BatchResponse
	if err := c.doJSON(ctx, http.MethodPost, apiPrefix+"/sync/batches", accessToken, req, &resp, c.compress); err != nil {
		return nil, fmt.Errorf("submit batch request failed: %w", err)
	}
	return &resp, nil
}

// GetChanges получает страницу изменений после since
func (c *Client) GetChanges(ctx context.Context, accessToken string, since int64, limit int) (*api.ChangesResponse, error) {
	q := url.Values{}
	q.Set("since", strconv.FormatInt(since, 10))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var resp api.ChangesResponse
	if err := c.doJSON(ctx, http.MethodGet, apiPrefix+"/sync/changes?"+q.Encode(), accessToken, nil, &resp, false); err != nil {
		return nil, fmt.Errorf("get changes request failed: %w", err)
	}
	return &resp, nil
}

// ListConflicts получает конфликты с сервера
func (c *Client) ListConflicts(ctx context.Context, accessToken string, query ConflictQuery) (*api.ConflictsResponse, error) {
	q := url.Values{}
	if query.DeviceID != "" {
		q.Set("device_id", query.DeviceID)
	}
	if query.Status != "" {
		q.Set("status", query.Status)
	}
	if query.Limit > 0 {
		q.Set("limit", strconv.Itoa(query.Limit))
	}
	path := apiPrefix + "/sync/conflicts"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp api.ConflictsResponse
	if err := c.doJSON(ctx, http.MethodGet, path, accessToken, nil, &resp, false); err != nil {
		return nil, fmt.Errorf("list conflicts request failed: %w", err)
	}
	return &resp, nil
}

// ResolveConflict разрешает конфликт на сервере
func (c *Client) ResolveConflict(ctx context.Context, accessToken, conflictID string, req api.ResolveRequest) error {
	path := apiPrefix + "/sync/conflicts/" + url.PathEscape(conflictID) + "/resolve"
	if err := c.doJSON(ctx, http.MethodPost, path, accessToken, req, nil, false); err != nil {
		return fmt.Errorf("resolve conflict request failed: %w", err)
	}
	return nil
}

// InitUpload открывает сессию загрузки медиа
func (c *Client) InitUpload(ctx context.Context, accessToken string, req api.InitUploadRequest) (*api.InitUploadResponse, error) {
	var resp api.InitUploadResponse
	if err := c.doJSON(ctx, http.MethodPost, apiPrefix+"/media/uploads", accessToken, req, &resp, false); err != nil {
		return nil, fmt.Errorf("init upload request failed: %w", err)
	}
	return &resp, nil
}

// PutChunk отправляет один чанк загрузки
func (c *Client) PutChunk(ctx context.Context, accessToken, uploadID string, index int, data []byte) error {
	path := fmt.Sprintf("%s/media/uploads/%s/chunks/%d", apiPrefix, url.PathEscape(uploadID), index)
	req, err := c.newRequest(ctx, http.MethodPut, path, accessToken, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = int64(len(data))

	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("put chunk %d request failed: %w", index, err)
	}
	return nil
}

// CompleteUpload завершает загрузку и возвращает ссылку на файл
func (c *Client) CompleteUpload(ctx context.Context, accessToken, uploadID string) (*api.CompleteUploadResponse, error) {
	path := apiPrefix + "/media/uploads/" + url.PathEscape(uploadID) + "/complete"
	var resp api.CompleteUploadResponse
	if err := c.doJSON(ctx, http.MethodPost, path, accessToken, nil, &resp, false); err != nil {
		return nil, fmt.Errorf("complete upload request failed: %w", err)
	}
	return &resp, nil
}

// doJSON выполняет запрос с JSON телом; при compress тело сжимается snappy
func (c *Client) doJSON(ctx context.Context, method, path, accessToken string, body, result any, compress bool) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		if compress {
			jsonData, err = snappyEncode(jsonData)
			if err != nil {
				return err
			}
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := c.newRequest(ctx, method, path, accessToken, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		if compress {
			req.Header.Set("Content-Encoding", "snappy")
		}
	}

	return c.do(req, result)
}

func (c *Client) newRequest(ctx context.Context, method, path, accessToken string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	return req, nil
}

// do выполняет HTTP запрос и декодирует успешный ответ в result
func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			apiErr.Code = errResp.Error
			apiErr.Message = errResp.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// snappyEncode сжимает данные в потоковом (framed) формате snappy
func snappyEncode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := snappy.NewBufferedWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress request body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress request body: %w", err)
	}
	return buf.Bytes(), nil
}
