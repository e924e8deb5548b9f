// Package server assembles the sync server: storage, services, handlers and middleware.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/fieldsync/internal/config"
	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/internal/server/blob"
	"github.com/iudanet/fieldsync/internal/server/domain"
	"github.com/iudanet/fieldsync/internal/server/handlers"
	"github.com/iudanet/fieldsync/internal/server/media"
	"github.com/iudanet/fieldsync/internal/server/middleware"
	"github.com/iudanet/fieldsync/internal/server/notify"
	"github.com/iudanet/fieldsync/internal/server/storage/sqlite"
	serversync "github.com/iudanet/fieldsync/internal/server/sync"
)

const (
	apiPrefix = "/api/v1"
	// минимальный лимит тела запроса после распаковки
	minBodyLimit = 32 << 20
)

// Server сервер синхронизации
type Server struct {
	cfg     *config.ServerConfig
	logger  *slog.Logger
	storage *sqlite.Storage
	hub     *notify.Hub
	limiter *middleware.RateLimiter
	handler http.Handler
}

// New opens storage and the blob backend and builds the HTTP handler.
func New(ctx context.Context, cfg *config.ServerConfig, logger *slog.Logger, version string) (*Server, error) {
	store, err := sqlite.New(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	blobs, err := newBlobStore(ctx, cfg.Media)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		storage: store,
		hub:     notify.NewHub(logger, notify.DefaultBufferSize),
		limiter: middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, logger),
	}
	s.handler = s.routes(blobs, version)
	return s, nil
}

func newBlobStore(ctx context.Context, cfg config.MediaConfig) (blob.Store, error) {
	switch cfg.Backend {
	case config.MediaBackendS3:
		store, err := blob.NewS3Store(ctx, blob.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			Prefix:          cfg.S3.Prefix,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			UsePathStyle:    cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init S3 media store: %w", err)
		}
		return store, nil
	case config.MediaBackendFile, "":
		store, err := blob.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to init file media store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown media backend %q", cfg.Backend)
	}
}

func (s *Server) routes(blobs blob.Store, version string) http.Handler {
	logger := s.logger
	jwtConfig := handlers.JWTConfig{
		Secret:         []byte(s.cfg.JWT.Secret),
		AccessTokenTTL: s.cfg.JWT.AccessTokenTTL,
	}
	enrollment := handlers.EnrollmentKeys{
		models.RoleDevice:   s.cfg.Enrollment.Key(models.RoleDevice),
		models.RoleOperator: s.cfg.Enrollment.Key(models.RoleOperator),
	}

	registry := domain.DefaultRegistry()
	processor := serversync.NewProcessor(s.storage, logger,
		serversync.WithValidator(registry),
		serversync.WithPublisher(s.hub),
		serversync.WithMaxBatchSize(s.cfg.Sync.MaxBatchSize),
	)
	resolver := serversync.NewResolver(s.storage, logger, s.hub,
		serversync.WithMergeValidator(registry))
	feed := serversync.NewChangeFeed(s.storage, s.cfg.Sync.PullPageSize, s.cfg.Sync.MaxPullPageSize)

	healthHandler := handlers.NewHealthHandler(logger, s.storage, version)
	authHandler := handlers.NewAuthHandler(logger, s.storage, enrollment, jwtConfig)
	syncHandler := handlers.NewSyncHandler(logger, processor, resolver, feed)
	mediaHandler := handlers.NewMediaHandler(logger, media.NewService(s.storage, blobs, logger, s.cfg.Media.ChunkSize, s.cfg.Media.MaxSize))
	eventsHandler := handlers.NewEventsHandler(logger, s.hub)

	authn := middleware.AuthMiddleware(logger, jwtConfig)
	// protected собирает цепочку: токен, затем проверка роли
	protected := func(h http.HandlerFunc, roles ...models.Role) http.Handler {
		return authn(middleware.RequireRole(logger, roles...)(h))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET "+apiPrefix+"/health", healthHandler.Health)

	mux.Handle("POST "+apiPrefix+"/auth/register", s.limiter.Middleware(http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST "+apiPrefix+"/auth/login", s.limiter.Middleware(http.HandlerFunc(authHandler.Login)))

	mux.Handle("POST "+apiPrefix+"/sync/batches", protected(syncHandler.SubmitBatch, models.RoleDevice))
	mux.Handle("GET "+apiPrefix+"/sync/changes", protected(syncHandler.GetChanges, models.RoleDevice, models.RoleOperator))
	mux.Handle("GET "+apiPrefix+"/sync/conflicts", protected(syncHandler.ListConflicts, models.RoleDevice, models.RoleOperator))
	mux.Handle("POST "+apiPrefix+"/sync/conflicts/{id}/resolve", protected(syncHandler.ResolveConflict, models.RoleOperator))

	mux.Handle("POST "+apiPrefix+"/media/uploads", protected(mediaHandler.InitUpload, models.RoleDevice))
	mux.Handle("PUT "+apiPrefix+"/media/uploads/{id}/chunks/{index}", protected(mediaHandler.PutChunk, models.RoleDevice))
	mux.Handle("POST "+apiPrefix+"/media/uploads/{id}/complete", protected(mediaHandler.CompleteUpload, models.RoleDevice))

	mux.Handle("GET "+apiPrefix+"/events", protected(eventsHandler.Stream, models.RoleDevice, models.RoleOperator))

	bodyLimit := max(int64(minBodyLimit), 2*s.cfg.Media.ChunkSize)

	// порядок: access log -> recovery -> decompress -> mux
	var h http.Handler = mux
	h = middleware.DecompressMiddleware(logger, bodyLimit)(h)
	h = middleware.Recovery(logger)(h)
	h = middleware.AccessLog(logger, apiPrefix+"/health")(h)
	return h
}

// Handler возвращает корневой HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "Server listening", "address", s.cfg.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server", "timeout", s.cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Close освобождает ресурсы сервера
func (s *Server) Close() error {
	s.limiter.Stop()
	return s.storage.Close()
}
