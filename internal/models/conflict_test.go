package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConflict(t *testing.T) *Conflict {
	t.Helper()
	d := testDelta(t, "project", "p1", 0, "v2")
	return NewConflict("c1", "device-b", d, "v1", 1, time.Now())
}

func TestNewConflict_FromDelta(t *testing.T) {
	c := newTestConflict(t)

	assert.Equal(t, ConflictStatusUnresolved, c.Status)
	assert.Equal(t, "v2", c.ClientPayload)
	assert.Equal(t, "v1", c.ServerPayload)
	assert.Equal(t, int64(0), c.ClientVersion)
	assert.Equal(t, int64(1), c.ServerVersion)
	assert.Equal(t, OperationUpdate, c.Operation)
	assert.False(t, c.Resolved())
}

func TestConflict_Resolve(t *testing.T) {
	merged := "merged"

	tests := []struct {
		merged      *string
		name        string
		strategy    Strategy
		wantPayload string
		wantStatus  ConflictStatus
		wantErr     error
	}{
		{name: "client wins", strategy: StrategyClientWins, wantPayload: "v2", wantStatus: ConflictStatusClientWins},
		{name: "server wins", strategy: StrategyServerWins, wantPayload: "v1", wantStatus: ConflictStatusServerWins},
		{name: "manual merge", strategy: StrategyManualMerge, merged: &merged, wantPayload: "merged", wantStatus: ConflictStatusMerged},
		{name: "manual merge without payload", strategy: StrategyManualMerge, wantErr: ErrMergedPayloadRequired},
		{name: "unknown strategy", strategy: Strategy("coin_flip"), wantErr: ErrUnknownStrategy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestConflict(t)
			now := time.Now()

			payload, err := c.Resolve(tt.strategy, tt.merged, "operator-1", now)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrValidation)
				assert.False(t, c.Resolved(), "failed resolution must not change status")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantPayload, payload)
			assert.Equal(t, tt.wantStatus, c.Status)
			require.NotNil(t, c.ResolvedPayload)
			assert.Equal(t, tt.wantPayload, *c.ResolvedPayload)
			require.NotNil(t, c.ResolvedAt)
			assert.Equal(t, "operator-1", c.ResolvedBy)
		})
	}
}

func TestConflict_ResolveTwice(t *testing.T) {
	c := newTestConflict(t)

	_, err := c.Resolve(StrategyServerWins, nil, "op", time.Now())
	require.NoError(t, err)

	_, err = c.Resolve(StrategyClientWins, nil, "op", time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflictAlreadyResolved))
	assert.Equal(t, ConflictStatusServerWins, c.Status, "first terminal status is immutable")
	assert.Equal(t, "v1", *c.ResolvedPayload)
}

func TestStrategy_AdvancesLedger(t *testing.T) {
	assert.True(t, StrategyClientWins.AdvancesLedger())
	assert.True(t, StrategyManualMerge.AdvancesLedger())
	assert.False(t, StrategyServerWins.AdvancesLedger())
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("manual_merge")
	require.NoError(t, err)
	assert.Equal(t, StrategyManualMerge, s)

	_, err = ParseStrategy("last_write_wins")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestConflict_ResolutionOperation(t *testing.T) {
	c := newTestConflict(t)
	c.Operation = OperationDelete

	assert.Equal(t, OperationDelete, c.ResolutionOperation(StrategyClientWins))
	assert.Equal(t, OperationUpdate, c.ResolutionOperation(StrategyManualMerge))
}
