package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/internal/server/storage"
)

// SaveBatch inserts a processed batch with its applied deltas and conflicts
func (t *txStore) SaveBatch(ctx context.Context, batch *models.Batch) error {
	query := `
		INSERT INTO sync_batches (id, device_id, status, submitted_at, processed_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := t.q.ExecContext(ctx, query,
		batch.ID,
		batch.DeviceID,
		string(batch.Status),
		timeToInt(batch.SubmittedAt),
		nullTimeToInt(batch.ProcessedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert batch %s: %w", batch.ID, err)
	}

	deltaQuery := `
		INSERT INTO batch_deltas (
			batch_id, position, entity_type, entity_id, operation,
			base_version, payload, client_timestamp, new_version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i, d := range batch.Applied {
		_, err := t.q.ExecContext(ctx, deltaQuery,
			batch.ID,
			i,
			string(d.Ref.Type),
			d.Ref.ID,
			string(d.Operation),
			d.BaseVersion,
			d.Payload,
			timeToInt(d.Timestamp),
			d.NewVersion,
		)
		if err != nil {
			return fmt.Errorf("failed to insert applied delta %d of batch %s: %w", i, batch.ID, err)
		}
	}

	conflictQuery := `
		INSERT INTO sync_conflicts (
			id, batch_id, position, device_id, entity_type, entity_id, operation,
			client_payload, server_payload, client_version, server_version,
			status, resolved_payload, resolved_by, detected_at, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i, c := range batch.Conflicts {
		_, err := t.q.ExecContext(ctx, conflictQuery,
			c.ID,
			batch.ID,
			i,
			c.DeviceID,
			string(c.Ref.Type),
			c.Ref.ID,
			string(c.Operation),
			c.ClientPayload,
			c.ServerPayload,
			c.ClientVersion,
			c.ServerVersion,
			string(c.Status),
			nullString(c.ResolvedPayload),
			c.ResolvedBy,
			timeToInt(c.DetectedAt),
			nullTimeToInt(c.ResolvedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert conflict %s of batch %s: %w", c.ID, batch.ID, err)
		}
	}

	return nil
}

// GetBatch retrieves a batch with applied deltas and conflicts
func (t *txStore) GetBatch(ctx context.Context, batchID string) (*models.Batch, error) {
	query := `
		SELECT id, device_id, status, submitted_at, processed_at
		FROM sync_batches
		WHERE id = ?
	`

	batch := &models.Batch{}
	var status string
	var submittedAt int64
	var processedAt sql.NullInt64

	err := t.q.QueryRowContext(ctx, query, batchID).Scan(
		&batch.ID,
		&batch.DeviceID,
		&status,
		&submittedAt,
		&processedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrBatchNotFound
		}
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}

	batch.Status = models.BatchStatus(status)
	batch.SubmittedAt = intToTime(submittedAt)
	batch.ProcessedAt = nullIntToTime(processedAt)

	if batch.Applied, err = t.loadApplied(ctx, batchID); err != nil {
		return nil, err
	}

	rows, err := t.q.QueryContext(ctx,
		`SELECT `+conflictColumns+` FROM sync_conflicts WHERE batch_id = ? ORDER BY position ASC`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicts of batch %s: %w", batchID, err)
	}
	defer rows.Close()

	if batch.Conflicts, err = scanConflicts(rows); err != nil {
		return nil, err
	}

	return batch, nil
}

func (t *txStore) loadApplied(ctx context.Context, batchID string) ([]models.AppliedDelta, error) {
	query := `
		SELECT entity_type, entity_id, operation, base_version, payload, client_timestamp, new_version
		FROM batch_deltas
		WHERE batch_id = ?
		ORDER BY position ASC
	`

	rows, err := t.q.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query deltas of batch %s: %w", batchID, err)
	}
	defer rows.Close()

	applied := []models.AppliedDelta{}
	for rows.Next() {
		var a models.AppliedDelta
		var entityType, operation string
		var ts int64

		if err := rows.Scan(&entityType, &a.Ref.ID, &operation, &a.BaseVersion, &a.Payload, &ts, &a.NewVersion); err != nil {
			return nil, fmt.Errorf("failed to scan delta: %w", err)
		}
		a.Ref.Type = models.EntityType(entityType)
		a.Operation = models.Operation(operation)
		a.Timestamp = intToTime(ts)
		applied = append(applied, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return applied, nil
}

// GetBatchByConflictID retrieves the batch owning the conflict
func (t *txStore) GetBatchByConflictID(ctx context.Context, conflictID string) (*models.Batch, error) {
	var batchID string
	err := t.q.QueryRowContext(ctx, `SELECT batch_id FROM sync_conflicts WHERE id = ?`, conflictID).Scan(&batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrConflictNotFound
		}
		return nil, fmt.Errorf("failed to find batch of conflict: %w", err)
	}

	return t.GetBatch(ctx, batchID)
}

// UpdateConflict stores resolution fields of a conflict
func (t *txStore) UpdateConflict(ctx context.Context, c *models.Conflict) error {
	query := `
		UPDATE sync_conflicts
		SET status = ?, resolved_payload = ?, resolved_by = ?, resolved_at = ?
		WHERE id = ?
	`

	result, err := t.q.ExecContext(ctx, query,
		string(c.Status),
		nullString(c.ResolvedPayload),
		c.ResolvedBy,
		nullTimeToInt(c.ResolvedAt),
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update conflict: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrConflictNotFound
	}

	return nil
}

// GetBatch retrieves a batch outside of a transaction
func (s *Storage) GetBatch(ctx context.Context, batchID string) (*models.Batch, error) {
	return s.reader().GetBatch(ctx, batchID)
}

// ListConflicts returns conflicts ordered by detection time
func (s *Storage) ListConflicts(ctx context.Context, filter storage.ConflictFilter) ([]*models.Conflict, error) {
	var (
		where []string
		args  []any
	)
	if filter.DeviceID != "" {
		where = append(where, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + conflictColumns + ` FROM sync_conflicts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY detected_at ASC, batch_id ASC, position ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicts: %w", err)
	}
	defer rows.Close()

	return scanConflicts(rows)
}

const conflictColumns = `
	id, batch_id, device_id, entity_type, entity_id, operation,
	client_payload, server_payload, client_version, server_version,
	status, resolved_payload, resolved_by, detected_at, resolved_at`

// scanConflicts is a helper function to scan multiple conflict rows
func scanConflicts(rows *sql.Rows) ([]*models.Conflict, error) {
	conflicts := []*models.Conflict{}

	for rows.Next() {
		c := &models.Conflict{}
		var entityType, operation, status string
		var resolvedPayload sql.NullString
		var detectedAt int64
		var resolvedAt sql.NullInt64

		err := rows.Scan(
			&c.ID,
			&c.BatchID,
			&c.DeviceID,
			&entityType,
			&c.Ref.ID,
			&operation,
			&c.ClientPayload,
			&c.ServerPayload,
			&c.ClientVersion,
			&c.ServerVersion,
			&status,
			&resolvedPayload,
			&c.ResolvedBy,
			&detectedAt,
			&resolvedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}

		c.Ref.Type = models.EntityType(entityType)
		c.Operation = models.Operation(operation)
		c.Status = models.ConflictStatus(status)
		c.DetectedAt = intToTime(detectedAt)
		c.ResolvedAt = nullIntToTime(resolvedAt)
		if resolvedPayload.Valid {
			p := resolvedPayload.String
			c.ResolvedPayload = &p
		}

		conflicts = append(conflicts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return conflicts, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
