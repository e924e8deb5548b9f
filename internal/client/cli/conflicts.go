package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	clientapi "github.com/iudanet/fieldsync/internal/client/api"
	"github.com/iudanet/fieldsync/internal/client/storage"
	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/pkg/api"
)

// ConflictListOptions фильтр списка конфликтов.
// Без Remote выводятся конфликты, полученные этим устройством при push.
type ConflictListOptions struct {
	DeviceID string
	Status   string
	Limit    int
	Remote   bool
}

// ResolveOptions параметры разрешения конфликта
type ResolveOptions struct {
	Strategy   string
	Merged     string
	MergedFile string
}

type conflictView struct {
	DetectedAt    time.Time
	ID            string
	DeviceID      string
	Ref           string
	Operation     string
	Status        string
	ResolvedBy    string
	ClientPayload string
	ServerPayload string
	ClientVersion int64
	ServerVersion int64
}

func localConflictView(c *models.Conflict) conflictView {
	return conflictView{
		DetectedAt:    c.DetectedAt,
		ID:            c.ID,
		DeviceID:      c.DeviceID,
		Ref:           c.Ref.String(),
		Operation:     string(c.Operation),
		Status:        string(c.Status),
		ResolvedBy:    c.ResolvedBy,
		ClientPayload: c.ClientPayload,
		ServerPayload: c.ServerPayload,
		ClientVersion: c.ClientVersion,
		ServerVersion: c.ServerVersion,
	}
}

func remoteConflictView(c api.Conflict) conflictView {
	return conflictView{
		DetectedAt:    c.DetectedAt,
		ID:            c.ID,
		DeviceID:      c.DeviceID,
		Ref:           models.EntityRef{Type: models.EntityType(c.EntityType), ID: c.EntityID}.String(),
		Operation:     c.Operation,
		Status:        c.Status,
		ResolvedBy:    c.ResolvedBy,
		ClientPayload: c.ClientPayload,
		ServerPayload: c.ServerPayload,
		ClientVersion: c.ClientVersion,
		ServerVersion: c.ServerVersion,
	}
}

// RunConflicts выводит локальные или серверные конфликты
func (c *Cli) RunConflicts(ctx context.Context, opts ConflictListOptions) error {
	if opts.Status != "" {
		if _, err := models.ParseConflictStatus(opts.Status); err != nil {
			return err
		}
	}

	var views []conflictView
	if opts.Remote {
		token, err := c.token(ctx)
		if err != nil {
			return err
		}
		resp, err := c.conflictAPI.ListConflicts(ctx, token, clientapi.ConflictQuery{
			DeviceID: opts.DeviceID,
			Status:   opts.Status,
			Limit:    opts.Limit,
		})
		if err != nil {
			return c.handleUnauthorized(ctx, err)
		}
		for _, conflict := range resp.Conflicts {
			views = append(views, remoteConflictView(conflict))
		}
	} else {
		local, err := c.dataService.Conflicts(ctx)
		if err != nil {
			return err
		}
		for _, conflict := range local {
			if opts.Status != "" && string(conflict.Status) != opts.Status {
				continue
			}
			views = append(views, localConflictView(conflict))
			if opts.Limit > 0 && len(views) == opts.Limit {
				break
			}
		}
	}

	return c.render("conflicts", conflictListTemplate, views)
}

// RunResolve разрешает конфликт на сервере и убирает его из локального списка
func (c *Cli) RunResolve(ctx context.Context, conflictID string, opts ResolveOptions) error {
	strategy, err := models.ParseStrategy(opts.Strategy)
	if err != nil {
		return err
	}

	req := api.ResolveRequest{Strategy: string(strategy)}
	merged := opts.Merged
	if opts.MergedFile != "" {
		if merged != "" {
			return errors.New("--merged and --merged-file are mutually exclusive")
		}
		if merged, err = readTrimmedFile(opts.MergedFile); err != nil {
			return err
		}
	}
	switch {
	case strategy == models.StrategyManualMerge && merged == "":
		return models.ErrMergedPayloadRequired
	case strategy != models.StrategyManualMerge && merged != "":
		return fmt.Errorf("merged payload is only accepted with %s", models.StrategyManualMerge)
	case merged != "":
		req.MergedPayload = &merged
	}

	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	if err := c.conflictAPI.ResolveConflict(ctx, token, conflictID, req); err != nil {
		return c.handleUnauthorized(ctx, err)
	}

	if err := c.dataService.DismissConflict(ctx, conflictID); err != nil && !errors.Is(err, storage.ErrConflictNotFound) {
		c.logger.WarnContext(ctx, "Failed to remove resolved conflict locally", "conflict_id", conflictID, "error", err)
	}

	c.io.Printf("✓ Conflict %s resolved with %s\n", conflictID, strategy)
	return nil
}

// RunDismiss убирает конфликт из локального списка без обращения к серверу
func (c *Cli) RunDismiss(ctx context.Context, conflictID string) error {
	if err := c.dataService.DismissConflict(ctx, conflictID); err != nil {
		return fmt.Errorf("conflict %s: %w", conflictID, err)
	}
	c.io.Printf("✓ Conflict %s dismissed\n", conflictID)
	return nil
}
