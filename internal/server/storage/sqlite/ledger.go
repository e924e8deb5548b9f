package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iudanet/fieldsync/internal/models"
)

// GetCurrentVersion returns the entity's current version, 0 if never written
func (t *txStore) GetCurrentVersion(ctx context.Context, ref models.EntityRef) (int64, error) {
	query := `SELECT version FROM entity_versions WHERE entity_type = ? AND entity_id = ?`

	var version int64
	err := t.q.QueryRowContext(ctx, query, string(ref.Type), ref.ID).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get version of %s: %w", ref, err)
	}
	return version, nil
}

// GetCurrentPayload returns the last accepted payload, "" if never written
func (t *txStore) GetCurrentPayload(ctx context.Context, ref models.EntityRef) (string, error) {
	query := `SELECT payload FROM entity_versions WHERE entity_type = ? AND entity_id = ?`

	var payload string
	err := t.q.QueryRowContext(ctx, query, string(ref.Type), ref.ID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get payload of %s: %w", ref, err)
	}
	return payload, nil
}

// SetVersion overwrites the ledger row and assigns the next change sequence number
func (t *txStore) SetVersion(ctx context.Context, ref models.EntityRef, version int64, payload, deviceID string, op models.Operation) error {
	var seq int64
	if err := t.q.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM entity_versions`).Scan(&seq); err != nil {
		return fmt.Errorf("failed to allocate change sequence: %w", err)
	}

	query := `
		INSERT INTO entity_versions (entity_type, entity_id, version, payload, device_id, operation, seq, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET
			version = excluded.version,
			payload = excluded.payload,
			device_id = excluded.device_id,
			operation = excluded.operation,
			seq = excluded.seq,
			updated_at = excluded.updated_at
	`

	_, err := t.q.ExecContext(ctx, query,
		string(ref.Type),
		ref.ID,
		version,
		payload,
		deviceID,
		string(op),
		seq,
		timeToInt(t.now()),
	)
	if err != nil {
		return fmt.Errorf("failed to set version of %s: %w", ref, err)
	}

	return nil
}

const ledgerColumns = `entity_type, entity_id, version, payload, device_id, operation, seq, updated_at`

// GetLedgerEntry returns the ledger row for ref, nil if never written
func (s *Storage) GetLedgerEntry(ctx context.Context, ref models.EntityRef) (*models.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM entity_versions WHERE entity_type = ? AND entity_id = ?`

	rows, err := s.db.QueryContext(ctx, query, string(ref.Type), ref.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entry: %w", err)
	}
	defer rows.Close()

	entries, err := scanLedgerEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0], nil
}

// GetChangesSince returns ledger rows with seq > since ordered by seq
func (s *Storage) GetChangesSince(ctx context.Context, since int64, limit int) ([]*models.LedgerEntry, bool, error) {
	if limit <= 0 {
		return nil, false, fmt.Errorf("limit must be positive, got %d", limit)
	}

	query := `SELECT ` + ledgerColumns + ` FROM entity_versions WHERE seq > ? ORDER BY seq ASC LIMIT ?`

	// Запрашиваем на одну строку больше, чтобы узнать, есть ли следующая страница
	rows, err := s.db.QueryContext(ctx, query, since, limit+1)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query changes: %w", err)
	}
	defer rows.Close()

	entries, err := scanLedgerEntries(rows)
	if err != nil {
		return nil, false, err
	}

	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}
	return entries, hasMore, nil
}

// CurrentSeq returns the highest assigned change sequence number
func (s *Storage) CurrentSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM entity_versions`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to get current sequence: %w", err)
	}
	return seq, nil
}

// scanLedgerEntries is a helper function to scan multiple ledger rows
func scanLedgerEntries(rows *sql.Rows) ([]*models.LedgerEntry, error) {
	entries := []*models.LedgerEntry{}

	for rows.Next() {
		entry := &models.LedgerEntry{}
		var entityType, operation string
		var updatedAt int64

		err := rows.Scan(
			&entityType,
			&entry.Ref.ID,
			&entry.Version,
			&entry.Payload,
			&entry.DeviceID,
			&operation,
			&entry.Seq,
			&updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}

		entry.Ref.Type = models.EntityType(entityType)
		entry.Operation = models.Operation(operation)
		entry.UpdatedAt = intToTime(updatedAt)

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entries, nil
}
