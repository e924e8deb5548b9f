package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDeviceID(t *testing.T) {
	tests := []struct {
		name     string
		deviceID string
		errMsg   string
		wantErr  bool
	}{
		{name: "valid - simple", deviceID: "tablet-01"},
		{name: "valid - dots and underscores", deviceID: "site.a_tablet"},
		{name: "valid - max length", deviceID: strings.Repeat("a", MaxDeviceIDLen)},
		{name: "invalid - empty", deviceID: "", wantErr: true, errMsg: "device id cannot be empty"},
		{name: "invalid - too short", deviceID: "ab", wantErr: true, errMsg: "at least 3"},
		{name: "invalid - too long", deviceID: strings.Repeat("a", MaxDeviceIDLen+1), wantErr: true, errMsg: "must not exceed"},
		{name: "invalid - spaces", deviceID: "my tablet", wantErr: true, errMsg: "can only contain"},
		{name: "invalid - slash", deviceID: "site/tablet", wantErr: true, errMsg: "can only contain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDeviceID(tt.deviceID)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateSecret(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		wantErr bool
	}{
		{name: "valid", secret: "0123456789abcdef"},
		{name: "empty", secret: "", wantErr: true},
		{name: "too short", secret: "short", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSecret(tt.secret)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateBatchID(t *testing.T) {
	assert.NoError(t, ValidateBatchID(""))
	assert.NoError(t, ValidateBatchID("550e8400-e29b-41d4-a716-446655440000"))
	assert.Error(t, ValidateBatchID("batch id with spaces"))
	assert.Error(t, ValidateBatchID(strings.Repeat("x", 65)))
}
