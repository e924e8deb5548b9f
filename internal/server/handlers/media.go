package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/pkg/api"
)

// MediaService чанковая загрузка медиа
type MediaService interface {
	InitUpload(ctx context.Context, deviceID, entityID, contentType string, size int64) (*models.UploadSession, error)
	StoreChunk(ctx context.Context, deviceID, uploadID string, index int, r io.Reader) error
	Complete(ctx context.Context, deviceID, uploadID string) (string, error)
}

// MediaHandler handles chunked media uploads
type MediaHandler struct {
	logger  *slog.Logger
	service MediaService
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(logger *slog.Logger, service MediaService) *MediaHandler {
	return &MediaHandler{logger: logger, service: service}
}

// InitUpload обрабатывает POST /api/v1/media/uploads
func (h *MediaHandler) InitUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID, ok := GetDeviceID(ctx)
	if !ok {
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.InitUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		sendServiceError(ctx, h.logger, w, "Init upload", err)
		return
	}

	session, err := h.service.InitUpload(ctx, deviceID, req.EntityID, req.ContentType, req.Size)
	if err != nil {
		sendServiceError(ctx, h.logger, w, "Init upload", err)
		return
	}

	sendJSON(h.logger, w, api.InitUploadResponse{UploadID: session.ID, ChunkSize: session.ChunkSize}, http.StatusCreated)
}

// PutChunk обрабатывает PUT /api/v1/media/uploads/{id}/chunks/{index}
func (h *MediaHandler) PutChunk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID, ok := GetDeviceID(ctx)
	if !ok {
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		sendServiceError(ctx, h.logger, w, "Store chunk", models.NewValidationError("index", "chunk index must be an integer"))
		return
	}

	if err := h.service.StoreChunk(ctx, deviceID, r.PathValue("id"), index, r.Body); err != nil {
		sendServiceError(ctx, h.logger, w, "Store chunk", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CompleteUpload обрабатывает POST /api/v1/media/uploads/{id}/complete
func (h *MediaHandler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID, ok := GetDeviceID(ctx)
	if !ok {
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	reference, err := h.service.Complete(ctx, deviceID, r.PathValue("id"))
	if err != nil {
		sendServiceError(ctx, h.logger, w, "Complete upload", err)
		return
	}

	sendJSON(h.logger, w, api.CompleteUploadResponse{Reference: reference}, http.StatusOK)
}
