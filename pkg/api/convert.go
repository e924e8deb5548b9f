package api

import (
	"github.com/iudanet/fieldsync/internal/models"
)

// DeltaFromModel переводит доменную дельту в формат API
func DeltaFromModel(d models.Delta) Delta {
	return Delta{
		EntityType:  string(d.Ref.Type),
		EntityID:    d.Ref.ID,
		Operation:   string(d.Operation),
		BaseVersion: d.BaseVersion,
		Payload:     d.Payload,
		Timestamp:   d.Timestamp,
	}
}

// ToModel собирает доменную дельту с валидацией ссылки и операции
func (d Delta) ToModel() (models.Delta, error) {
	ref, err := models.NewEntityRef(d.EntityType, d.EntityID)
	if err != nil {
		return models.Delta{}, err
	}
	op, err := models.ParseOperation(d.Operation)
	if err != nil {
		return models.Delta{}, err
	}
	return models.Delta{
		Ref:         ref,
		Operation:   op,
		BaseVersion: d.BaseVersion,
		Payload:     d.Payload,
		Timestamp:   d.Timestamp,
	}, nil
}

// ConflictFromModel переводит конфликт в формат API
func ConflictFromModel(c *models.Conflict) Conflict {
	return Conflict{
		ID:              c.ID,
		BatchID:         c.BatchID,
		DeviceID:        c.DeviceID,
		EntityType:      string(c.Ref.Type),
		EntityID:        c.Ref.ID,
		Operation:       string(c.Operation),
		ClientPayload:   c.ClientPayload,
		ServerPayload:   c.ServerPayload,
		ClientVersion:   c.ClientVersion,
		ServerVersion:   c.ServerVersion,
		Status:          string(c.Status),
		ResolvedPayload: c.ResolvedPayload,
		ResolvedBy:      c.ResolvedBy,
		DetectedAt:      c.DetectedAt,
		ResolvedAt:      c.ResolvedAt,
	}
}

// ToModel восстанавливает конфликт из ответа сервера.
// Неизвестный тип сущности в ответе считается ошибкой протокола.
func (c Conflict) ToModel() (*models.Conflict, error) {
	ref, err := models.NewEntityRef(c.EntityType, c.EntityID)
	if err != nil {
		return nil, err
	}
	return &models.Conflict{
		ID:              c.ID,
		BatchID:         c.BatchID,
		DeviceID:        c.DeviceID,
		Ref:             ref,
		Operation:       models.Operation(c.Operation),
		ClientPayload:   c.ClientPayload,
		ServerPayload:   c.ServerPayload,
		ClientVersion:   c.ClientVersion,
		ServerVersion:   c.ServerVersion,
		Status:          models.ConflictStatus(c.Status),
		ResolvedPayload: c.ResolvedPayload,
		ResolvedBy:      c.ResolvedBy,
		DetectedAt:      c.DetectedAt,
		ResolvedAt:      c.ResolvedAt,
	}, nil
}

// BatchResponseFromModel собирает ответ по обработанному батчу
func BatchResponseFromModel(b *models.Batch, replayed bool) BatchResponse {
	resp := BatchResponse{
		BatchID:       b.ID,
		Status:        string(b.Status),
		AppliedCount:  b.AppliedCount(),
		ConflictCount: b.ConflictCount(),
		Applied:       make([]AppliedVersion, 0, len(b.Applied)),
		Conflicts:     make([]Conflict, 0, len(b.Conflicts)),
		Replayed:      replayed,
	}
	for _, a := range b.Applied {
		resp.Applied = append(resp.Applied, AppliedVersion{
			EntityType: string(a.Ref.Type),
			EntityID:   a.Ref.ID,
			Version:    a.NewVersion,
		})
	}
	for _, c := range b.Conflicts {
		resp.Conflicts = append(resp.Conflicts, ConflictFromModel(c))
	}
	return resp
}

// ChangeFromModel переводит изменение ленты в формат API
func ChangeFromModel(c models.Change) Change {
	return Change{
		EntityType: string(c.Ref.Type),
		EntityID:   c.Ref.ID,
		Operation:  string(c.Operation),
		Version:    c.Version,
		Payload:    c.Payload,
		Timestamp:  c.Timestamp,
		DeviceID:   c.DeviceID,
	}
}

// ToModel восстанавливает изменение ленты
func (c Change) ToModel() (models.Change, error) {
	ref, err := models.NewEntityRef(c.EntityType, c.EntityID)
	if err != nil {
		return models.Change{}, err
	}
	op, err := models.ParseOperation(c.Operation)
	if err != nil {
		return models.Change{}, err
	}
	return models.Change{
		Ref:       ref,
		Operation: op,
		Version:   c.Version,
		Payload:   c.Payload,
		Timestamp: c.Timestamp,
		DeviceID:  c.DeviceID,
	}, nil
}

// EventFromModel переводит доменное событие в формат потока
func EventFromModel(e models.Event) Event {
	out := Event{Type: string(e.Kind()), At: e.OccurredAt()}
	switch ev := e.(type) {
	case models.BatchProcessed:
		out.BatchID = ev.BatchID
		out.DeviceID = ev.DeviceID
		out.Status = string(ev.Status)
		out.AppliedCount = ev.AppliedCount
		out.ConflictCount = ev.ConflictCount
	case models.ConflictDetected:
		out.ConflictID = ev.ConflictID
		out.BatchID = ev.BatchID
		out.DeviceID = ev.DeviceID
		out.EntityType = string(ev.Ref.Type)
		out.EntityID = ev.Ref.ID
	case models.ConflictResolved:
		out.ConflictID = ev.ConflictID
		out.BatchID = ev.BatchID
		out.DeviceID = ev.DeviceID
		out.EntityType = string(ev.Ref.Type)
		out.EntityID = ev.Ref.ID
		out.Status = string(ev.Status)
		out.ResolvedBy = ev.ResolvedBy
		out.Version = ev.Version
	}
	return out
}
