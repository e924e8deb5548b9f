package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/fieldsync/internal/client/auth"
	"github.com/iudanet/fieldsync/internal/crypto"
	"github.com/iudanet/fieldsync/internal/models"
)

// EnrollOptions параметры регистрации устройства.
// Пустые ключ и секрет запрашиваются в терминале.
type EnrollOptions struct {
	DeviceID       string
	Role           string
	EnrollmentKey  string
	SecretFile     string
	GenerateSecret bool
}

// RunEnroll регистрирует устройство на сервере и сохраняет учетные данные
func (c *Cli) RunEnroll(ctx context.Context, opts EnrollOptions) error {
	role, err := models.ParseRole(opts.Role)
	if err != nil {
		return err
	}

	deviceID := opts.DeviceID
	if deviceID == "" {
		deviceID = c.cfg.DeviceID
	}
	if deviceID == "" {
		if deviceID, err = c.io.ReadInput("Device ID: "); err != nil {
			return fmt.Errorf("failed to read device id: %w", err)
		}
	}

	key := opts.EnrollmentKey
	if key == "" {
		if key, err = c.io.ReadPassword("Enrollment key: "); err != nil {
			return fmt.Errorf("failed to read enrollment key: %w", err)
		}
	}

	var secret string
	if opts.GenerateSecret {
		if opts.SecretFile != "" {
			return errors.New("--generate-secret and --secret-file are mutually exclusive")
		}
		if secret, err = crypto.GenerateSecret(); err != nil {
			return err
		}
	} else if secret, err = c.readSecret(opts.SecretFile); err != nil {
		return err
	}

	authData, err := c.authService.Enroll(ctx, deviceID, role, key, secret)
	if err != nil {
		return err
	}

	c.io.Printf("✓ Device %s enrolled as %s\n", authData.DeviceID, authData.Role)
	return nil
}

// readSecret читает секрет устройства из файла или дважды запрашивает его
func (c *Cli) readSecret(path string) (string, error) {
	if path != "" {
		return readTrimmedFile(path)
	}
	secret, err := c.io.ReadPassword("Device secret: ")
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	confirm, err := c.io.ReadPassword("Confirm secret: ")
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	if secret != confirm {
		return "", errors.New("secrets do not match")
	}
	return secret, nil
}

// RunLogin получает новый токен по сохраненным учетным данным
func (c *Cli) RunLogin(ctx context.Context) error {
	authData, err := c.authService.Login(ctx)
	if err != nil {
		return err
	}
	c.io.Printf("✓ Logged in as %s, token valid until %s\n", authData.DeviceID, stamp(authData.ExpiresAt))
	return nil
}

// RunLogout удаляет учетные данные устройства. Локальные данные и outbox сохраняются.
func (c *Cli) RunLogout(ctx context.Context) error {
	if err := c.authService.Logout(ctx); err != nil {
		return err
	}
	c.io.Println("✓ Logged out")
	return nil
}

type statusView struct {
	ServerURL      string
	DatabasePath   string
	DeviceID       string
	Role           models.Role
	TokenExpiresAt int64
	Checkpoint     int64
	LastSyncAt     time.Time
	Outbox         int
	Failed         int
	MediaPending   int
	Conflicts      int
	Enrolled       bool
	TokenValid     bool
}

// RunStatus показывает состояние устройства и очередей синхронизации
func (c *Cli) RunStatus(ctx context.Context) error {
	view := statusView{
		ServerURL:    c.cfg.ServerURL,
		DatabasePath: c.cfg.DatabasePath,
	}

	authData, err := c.authService.Current(ctx)
	switch {
	case err == nil:
		view.Enrolled = true
		view.DeviceID = authData.DeviceID
		view.Role = authData.Role
		view.TokenValid = authData.TokenValid(time.Now())
		view.TokenExpiresAt = authData.ExpiresAt
	case errors.Is(err, auth.ErrNotEnrolled):
	default:
		return err
	}

	if view.Checkpoint, err = c.metadata.GetPullCheckpoint(ctx); err != nil {
		return fmt.Errorf("failed to read checkpoint: %w", err)
	}
	if view.LastSyncAt, err = c.metadata.GetLastSyncAt(ctx); err != nil {
		return fmt.Errorf("failed to read last sync time: %w", err)
	}

	outbox, err := c.dataService.Outbox(ctx)
	if err != nil {
		return fmt.Errorf("failed to read outbox: %w", err)
	}
	for _, e := range outbox {
		if e.Status == models.OutboxStatusFailed {
			view.Failed++
		} else {
			view.Outbox++
		}
	}

	media, err := c.dataService.Media(ctx)
	if err != nil {
		return fmt.Errorf("failed to read media queue: %w", err)
	}
	for _, m := range media {
		if m.Status != models.MediaStatusUploaded {
			view.MediaPending++
		}
	}

	conflicts, err := c.dataService.Conflicts(ctx)
	if err != nil {
		return fmt.Errorf("failed to read conflicts: %w", err)
	}
	view.Conflicts = len(conflicts)

	return c.render("status", statusTemplate, view)
}
