package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/internal/server/storage"
)

// CreateUpload stores a new open upload session
func (s *Storage) CreateUpload(ctx context.Context, session *models.UploadSession) error {
	query := `
		INSERT INTO upload_sessions (
			id, device_id, entity_id, content_type, size, chunk_size,
			status, reference, created_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.DeviceID,
		session.EntityID,
		session.ContentType,
		session.Size,
		session.ChunkSize,
		string(session.Status),
		session.Reference,
		timeToInt(session.CreatedAt),
		nullTimeToInt(session.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert upload session: %w", err)
	}

	return nil
}

// GetUpload retrieves an upload session with Received filled from stored chunks
func (s *Storage) GetUpload(ctx context.Context, uploadID string) (*models.UploadSession, error) {
	query := `
		SELECT u.id, u.device_id, u.entity_id, u.content_type, u.size, u.chunk_size,
		       u.status, u.reference, u.created_at, u.completed_at,
		       COALESCE((SELECT SUM(c.size) FROM upload_chunks c WHERE c.upload_id = u.id), 0)
		FROM upload_sessions u
		WHERE u.id = ?
	`

	session := &models.UploadSession{}
	var status string
	var createdAt int64
	var completedAt sql.NullInt64

	err := s.db.QueryRowContext(ctx, query, uploadID).Scan(
		&session.ID,
		&session.DeviceID,
		&session.EntityID,
		&session.ContentType,
		&session.Size,
		&session.ChunkSize,
		&status,
		&session.Reference,
		&createdAt,
		&completedAt,
		&session.Received,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUploadNotFound
		}
		return nil, fmt.Errorf("failed to get upload session: %w", err)
	}

	session.Status = models.UploadStatus(status)
	session.CreatedAt = intToTime(createdAt)
	session.CompletedAt = nullIntToTime(completedAt)

	return session, nil
}

// SaveChunk records a received chunk
func (s *Storage) SaveChunk(ctx context.Context, uploadID string, index int, size int64) error {
	query := `
		INSERT INTO upload_chunks (upload_id, idx, size) VALUES (?, ?, ?)
		ON CONFLICT (upload_id, idx) DO UPDATE SET size = excluded.size
	`

	if _, err := s.db.ExecContext(ctx, query, uploadID, index, size); err != nil {
		return fmt.Errorf("failed to save chunk %d of upload %s: %w", index, uploadID, err)
	}
	return nil
}

// ListChunks returns received chunk sizes keyed by index
func (s *Storage) ListChunks(ctx context.Context, uploadID string) (map[int]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT idx, size FROM upload_chunks WHERE upload_id = ?`, uploadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	chunks := make(map[int]int64)
	for rows.Next() {
		var idx int
		var size int64
		if err := rows.Scan(&idx, &size); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks[idx] = size
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return chunks, nil
}

// CompleteUpload marks the session completed with the final reference
func (s *Storage) CompleteUpload(ctx context.Context, uploadID, reference string, at time.Time) error {
	query := `UPDATE upload_sessions SET status = ?, reference = ?, completed_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, string(models.UploadStatusCompleted), reference, timeToInt(at), uploadID)
	if err != nil {
		return fmt.Errorf("failed to complete upload: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return storage.ErrUploadNotFound
	}

	return nil
}
