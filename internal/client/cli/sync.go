package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/fieldsync/internal/client/notify"
	clientsync "github.com/iudanet/fieldsync/internal/client/sync"
)

// RunSync выполняет один цикл синхронизации и выводит его итог
func (c *Cli) RunSync(ctx context.Context) error {
	if err := c.syncer.Online(ctx); err != nil {
		return err
	}
	res, err := c.syncer.RunCycle(ctx)
	if err != nil {
		return err
	}
	if err := c.render("cycle", cycleTemplate, res); err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		return fmt.Errorf("sync finished with errors: %w", err)
	}
	return nil
}

// RunDaemon синхронизирует по расписанию до отмены контекста.
// С включенным listen внеплановый цикл запускается по событиям сервера.
func (c *Cli) RunDaemon(ctx context.Context) error {
	authData, err := c.authService.Current(ctx)
	if err != nil {
		return err
	}

	scheduler := clientsync.NewScheduler(c.syncer, c.cfg.SyncInterval, c.logger, c.reportCycle)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	c.logger.InfoContext(ctx, "Sync agent started",
		"device_id", authData.DeviceID, "interval", c.cfg.SyncInterval, "listen", c.cfg.Listen)

	if !c.cfg.Listen {
		// первый цикл не ждет тикера
		if _, err := scheduler.TriggerNow(ctx); err != nil && !errors.Is(err, clientsync.ErrOffline) {
			c.logger.WarnContext(ctx, "Initial sync failed", "error", err)
		}
		<-ctx.Done()
		return nil
	}

	listener, err := notify.NewListener(notify.Config{
		ServerURL: c.cfg.ServerURL,
		DeviceID:  authData.DeviceID,
	}, c.authService, scheduler, c.logger)
	if err != nil {
		return err
	}

	if err := listener.Run(ctx); err != nil {
		return fmt.Errorf("event listener stopped: %w", err)
	}
	return nil
}

// reportCycle пишет итог фонового цикла в лог
func (c *Cli) reportCycle(res *clientsync.CycleResult) {
	attrs := []any{
		"duration", res.Duration(),
		"pushed", res.Pushed,
		"applied", res.Applied,
		"conflicts", res.Conflicts,
		"media", res.MediaUploaded,
		"pulled", res.Pulled,
	}
	if err := res.Err(); err != nil {
		c.logger.Warn("Sync cycle finished with errors", append(attrs, "error", err)...)
		return
	}
	c.logger.Info("Sync cycle finished", attrs...)
}
