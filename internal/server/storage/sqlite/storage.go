package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/iudanet/fieldsync/internal/server/storage"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// querier общий набор методов *sql.DB и *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Storage леджер версий, батчи, конфликты и устройства в SQLite
type Storage struct {
	db  *sql.DB
	now func() time.Time
}

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
}

// New открывает базу по пути dbPath (":memory:" для тестов) и применяет миграции
func New(ctx context.Context, dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Одно соединение: транзакции сериализуются, поэтому сравнение версии
	// и запись в леджер внутри одной транзакции не могут пересечься
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := prepare(ctx, db); err != nil {
		return nil, errors.Join(err, db.Close())
	}
	return &Storage{db: db, now: time.Now}, nil
}

func prepare(ctx context.Context, db *sql.DB) error {
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	applied, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	for _, m := range applied {
		slog.DebugContext(ctx, "Migration applied", "version", m.Source.Version, "duration", m.Duration)
	}
	return nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// PingContext проверяет соединение для health check
func (s *Storage) PingContext(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithinTx runs fn inside one transaction and commits if fn succeeds.
// fn must use only tx: the pool has a single connection held by the transaction.
func (s *Storage) WithinTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&txStore{q: sqlTx, now: s.now}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// reader возвращает представление для чтений вне транзакции
func (s *Storage) reader() *txStore {
	return &txStore{q: s.db, now: s.now}
}

// txStore реализует storage.Tx поверх *sql.Tx (или *sql.DB для одиночных чтений)
type txStore struct {
	q   querier
	now func() time.Time
}

var (
	_ storage.Tx            = (*txStore)(nil)
	_ storage.SyncStorage   = (*Storage)(nil)
	_ storage.DeviceStorage = (*Storage)(nil)
	_ storage.UploadStorage = (*Storage)(nil)
)

// Helper functions for time/int conversion
func timeToInt(t time.Time) int64 {
	return t.UnixNano()
}

func intToTime(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

func nullTimeToInt(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func nullIntToTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := intToTime(v.Int64)
	return &t
}
