// Package cli implements the fieldsync client commands on top of the local
// store, the sync engine and the server API.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/template"

	clientapi "github.com/iudanet/fieldsync/internal/client/api"
	"github.com/iudanet/fieldsync/internal/client/data"
	"github.com/iudanet/fieldsync/internal/client/iocli"
	"github.com/iudanet/fieldsync/internal/client/storage"
	clientsync "github.com/iudanet/fieldsync/internal/client/sync"
	"github.com/iudanet/fieldsync/internal/config"
	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/pkg/api"
)

// AuthService регистрация устройства и токены доступа
type AuthService interface {
	Enroll(ctx context.Context, deviceID string, role models.Role, enrollmentKey, secret string) (*storage.AuthData, error)
	Login(ctx context.Context) (*storage.AuthData, error)
	EnsureToken(ctx context.Context) (string, error)
	Invalidate(ctx context.Context) error
	Current(ctx context.Context) (*storage.AuthData, error)
	Logout(ctx context.Context) error
}

// Syncer выполняет циклы синхронизации
type Syncer interface {
	RunCycle(ctx context.Context) (*clientsync.CycleResult, error)
	Online(ctx context.Context) error
}

// ConflictAPI серверные операции над конфликтами
type ConflictAPI interface {
	ListConflicts(ctx context.Context, accessToken string, query clientapi.ConflictQuery) (*api.ConflictsResponse, error)
	ResolveConflict(ctx context.Context, accessToken, conflictID string, req api.ResolveRequest) error
}

type Cli struct {
	io          iocli.IO
	authService AuthService
	dataService data.Service
	syncer      Syncer
	conflictAPI ConflictAPI
	metadata    storage.MetadataStorage
	cfg         *config.ClientConfig
	logger      *slog.Logger
}

func New(
	io iocli.IO,
	cfg *config.ClientConfig,
	logger *slog.Logger,
	authService AuthService,
	dataService data.Service,
	syncer Syncer,
	conflictAPI ConflictAPI,
	metadata storage.MetadataStorage,
) *Cli {
	return &Cli{
		io:          io,
		cfg:         cfg,
		logger:      logger,
		authService: authService,
		dataService: dataService,
		syncer:      syncer,
		conflictAPI: conflictAPI,
		metadata:    metadata,
	}
}

// parseRef собирает ссылку на сущность из аргументов "<type> <id>"
func parseRef(entityType, id string) (models.EntityRef, error) {
	ref, err := models.NewEntityRef(strings.ToLower(entityType), id)
	if err != nil {
		return models.EntityRef{}, fmt.Errorf("%w (known types: %s)", err, knownTypes())
	}
	return ref, nil
}

func knownTypes() string {
	types := models.EntityTypes()
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

// readTrimmedFile читает секрет или payload из файла без завершающих пробелов
func readTrimmedFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	value := strings.TrimSpace(string(content))
	if value == "" {
		return "", fmt.Errorf("%s is empty", path)
	}
	return value, nil
}

// render выводит данные по шаблону
func (c *Cli) render(name, text string, data any) error {
	tmpl, err := template.New(name).Funcs(templateFuncs).Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse %s template: %w", name, err)
	}
	if err := tmpl.Execute(c.io, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	return nil
}

// token возвращает действующий токен, при необходимости выполняя вход
func (c *Cli) token(ctx context.Context) (string, error) {
	token, err := c.authService.EnsureToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to authenticate: %w", err)
	}
	return token, nil
}

// handleUnauthorized сбрасывает токен после 401, чтобы следующий вызов выполнил вход
func (c *Cli) handleUnauthorized(ctx context.Context, err error) error {
	if clientapi.IsUnauthorized(err) {
		if invErr := c.authService.Invalidate(ctx); invErr != nil && !errors.Is(invErr, context.Canceled) {
			c.logger.WarnContext(ctx, "Failed to invalidate access token", "error", invErr)
		}
	}
	return err
}
