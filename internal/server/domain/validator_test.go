package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/fieldsync/internal/models"
)

func delta(t models.EntityType, op models.Operation, payload string) models.Delta {
	return models.Delta{
		Ref:       models.EntityRef{Type: t, ID: "id-1"},
		Operation: op,
		Payload:   payload,
	}
}

func TestDefaultRegistry_Validate(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		name    string
		delta   models.Delta
		wantErr bool
	}{
		{name: "project object", delta: delta(models.EntityTypeProject, models.OperationCreate, `{"name":"Depot"}`)},
		{name: "project not json", delta: delta(models.EntityTypeProject, models.OperationCreate, `v1`), wantErr: true},
		{name: "zone array", delta: delta(models.EntityTypeZone, models.OperationUpdate, `[1,2]`), wantErr: true},
		{name: "delete with empty payload", delta: delta(models.EntityTypeZone, models.OperationDelete, ``)},
		{name: "photo without media", delta: delta(models.EntityTypePhoto, models.OperationCreate, `{"caption":"front"}`)},
		{name: "photo media scheme", delta: delta(models.EntityTypePhoto, models.OperationUpdate, `{"media_ref":"media://media/p1/u1"}`)},
		{name: "photo http ref", delta: delta(models.EntityTypePhoto, models.OperationUpdate, `{"media_ref":"http://x/y.jpg"}`), wantErr: true},
		{name: "measurement value", delta: delta(models.EntityTypeMeasurement, models.OperationCreate, `{"value":12.5,"unit":"bar"}`)},
		{name: "measurement zero value", delta: delta(models.EntityTypeMeasurement, models.OperationCreate, `{"value":0}`)},
		{name: "measurement missing value", delta: delta(models.EntityTypeMeasurement, models.OperationCreate, `{"unit":"bar"}`), wantErr: true},
		{name: "measurement string value", delta: delta(models.EntityTypeMeasurement, models.OperationCreate, `{"value":"high"}`), wantErr: true},
		{name: "measurement delete", delta: delta(models.EntityTypeMeasurement, models.OperationDelete, ``)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Validate(tt.delta)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, models.ErrValidation)

				var vErr *models.ValidationError
				require.True(t, errors.As(err, &vErr))
				assert.Equal(t, "payload", vErr.Field)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	assert.NoError(t, r.Validate(delta(models.EntityTypeZone, models.OperationCreate, "anything")),
		"empty registry accepts any payload")

	r.Register(models.EntityTypeZone, ValidatorFunc(func(op models.Operation, payload string) error {
		return errors.New("zones are read-only")
	}))
	assert.ErrorIs(t, r.Validate(delta(models.EntityTypeZone, models.OperationCreate, "{}")), models.ErrValidation)
	assert.NoError(t, r.Validate(delta(models.EntityTypeProject, models.OperationCreate, "{}")))
}
