package models

import (
	"fmt"
	"time"
)

// ConflictStatus статус конфликта
type ConflictStatus string

const (
	ConflictStatusUnresolved ConflictStatus = "unresolved"
	ConflictStatusClientWins ConflictStatus = "client_wins"
	ConflictStatusServerWins ConflictStatus = "server_wins"
	ConflictStatusMerged     ConflictStatus = "merged"
)

// ParseConflictStatus converts a raw filter value into a ConflictStatus.
func ParseConflictStatus(s string) (ConflictStatus, error) {
	switch st := ConflictStatus(s); st {
	case ConflictStatusUnresolved, ConflictStatusClientWins, ConflictStatusServerWins, ConflictStatusMerged:
		return st, nil
	default:
		return "", NewValidationError("status", fmt.Sprintf("unknown conflict status %q", s))
	}
}

// Strategy стратегия разрешения конфликта
type Strategy string

const (
	StrategyClientWins  Strategy = "client_wins"
	StrategyServerWins  Strategy = "server_wins"
	StrategyManualMerge Strategy = "manual_merge"
)

// ParseStrategy converts a raw string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(s); st {
	case StrategyClientWins, StrategyServerWins, StrategyManualMerge:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// AdvancesLedger reports whether resolving with this strategy writes a new ledger version.
func (s Strategy) AdvancesLedger() bool {
	return s == StrategyClientWins || s == StrategyManualMerge
}

// Conflict is produced when a delta's base version does not match the ledger.
type Conflict struct {
	DetectedAt      time.Time      `json:"detected_at"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
	ResolvedPayload *string        `json:"resolved_payload,omitempty"`
	ID              string         `json:"id"`
	BatchID         string         `json:"batch_id"`
	DeviceID        string         `json:"device_id"`
	ResolvedBy      string         `json:"resolved_by,omitempty"`
	Ref             EntityRef      `json:"entity"`
	Operation       Operation      `json:"operation"`
	ClientPayload   string         `json:"client_payload"`
	ServerPayload   string         `json:"server_payload"`
	Status          ConflictStatus `json:"status"`
	ClientVersion   int64          `json:"client_version"`
	ServerVersion   int64          `json:"server_version"`
}

// NewConflict собирает неразрешенный конфликт из дельты и текущего состояния леджера
func NewConflict(id, deviceID string, d Delta, serverPayload string, serverVersion int64, detectedAt time.Time) *Conflict {
	return &Conflict{
		ID:            id,
		DeviceID:      deviceID,
		Ref:           d.Ref,
		Operation:     d.Operation,
		ClientPayload: d.Payload,
		ServerPayload: serverPayload,
		ClientVersion: d.BaseVersion,
		ServerVersion: serverVersion,
		Status:        ConflictStatusUnresolved,
		DetectedAt:    detectedAt,
	}
}

// Resolved reports whether the conflict reached a terminal status.
func (c *Conflict) Resolved() bool {
	return c.Status != ConflictStatusUnresolved
}

// Resolve terminates the conflict with the given strategy.
// merged is required for StrategyManualMerge and ignored otherwise.
// Returns the payload that won.
func (c *Conflict) Resolve(strategy Strategy, merged *string, by string, at time.Time) (string, error) {
	if c.Resolved() {
		return "", fmt.Errorf("resolve conflict %s: %w", c.ID, ErrConflictAlreadyResolved)
	}

	var (
		payload string
		status  ConflictStatus
	)
	switch strategy {
	case StrategyClientWins:
		payload, status = c.ClientPayload, ConflictStatusClientWins
	case StrategyServerWins:
		payload, status = c.ServerPayload, ConflictStatusServerWins
	case StrategyManualMerge:
		if merged == nil {
			return "", ErrMergedPayloadRequired
		}
		payload, status = *merged, ConflictStatusMerged
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}

	resolvedAt := at
	c.Status = status
	c.ResolvedPayload = &payload
	c.ResolvedAt = &resolvedAt
	c.ResolvedBy = by
	return payload, nil
}

// ResolutionOperation операция, с которой победившая версия записывается в леджер
func (c *Conflict) ResolutionOperation(strategy Strategy) Operation {
	if strategy == StrategyManualMerge && c.Operation == OperationDelete {
		return OperationUpdate
	}
	return c.Operation
}
