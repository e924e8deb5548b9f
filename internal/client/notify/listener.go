// Package notify подписывается на поток событий сервера и запускает
// внеплановую синхронизацию, когда данные изменились на другом устройстве.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	clientsync "github.com/iudanet/fieldsync/internal/client/sync"
	"github.com/iudanet/fieldsync/internal/models"
	"github.com/iudanet/fieldsync/pkg/api"
)

const (
	eventsPath = "/api/v1/events"

	// сервер шлет ping раз в 54 секунды
	readWait  = 70 * time.Second
	writeWait = 10 * time.Second

	DefaultMinRetryDelay = time.Second
	DefaultMaxRetryDelay = time.Minute
)

var errSessionEnded = errors.New("event stream closed")

// TokenSource выдает access token для подключения
type TokenSource interface {
	EnsureToken(ctx context.Context) (string, error)
	Invalidate(ctx context.Context) error
}

// Trigger запускает цикл синхронизации вне расписания
type Trigger interface {
	TriggerNow(ctx context.Context) (*clientsync.CycleResult, error)
}

// Config параметры подключения к потоку событий
type Config struct {
	ServerURL     string
	DeviceID      string
	MinRetryDelay time.Duration
	MaxRetryDelay time.Duration
}

// Listener держит websocket соединение с сервером и переподключается с
// экспоненциальной задержкой. Несколько событий подряд сливаются в один запуск.
type Listener struct {
	tokens  TokenSource
	trigger Trigger
	logger  *slog.Logger
	dialer  *websocket.Dialer
	pending chan struct{}
	url     string
	cfg     Config
}

// NewListener создает слушателя событий
func NewListener(cfg Config, tokens TokenSource, trigger Trigger, logger *slog.Logger) (*Listener, error) {
	wsURL, err := eventsURL(cfg.ServerURL)
	if err != nil {
		return nil, err
	}
	if cfg.MinRetryDelay <= 0 {
		cfg.MinRetryDelay = DefaultMinRetryDelay
	}
	if cfg.MaxRetryDelay < cfg.MinRetryDelay {
		cfg.MaxRetryDelay = max(DefaultMaxRetryDelay, cfg.MinRetryDelay)
	}
	return &Listener{
		tokens:  tokens,
		trigger: trigger,
		logger:  logger,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 15 * time.Second,
		},
		pending: make(chan struct{}, 1),
		url:     wsURL,
		cfg:     cfg,
	}, nil
}

// eventsURL переводит адрес сервера в адрес websocket потока
func eventsURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + eventsPath
	return u.String(), nil
}

// Run слушает события до отмены контекста
func (l *Listener) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return l.dispatch(ctx)
	})
	g.Go(func() error {
		return l.connectLoop(ctx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, clientsync.ErrSchedulerStopped) {
		return nil
	}
	return err
}

func (l *Listener) connectLoop(ctx context.Context) error {
	for {
		backoff := retry.WithJitterPercent(10,
			retry.WithCappedDuration(l.cfg.MaxRetryDelay, retry.NewExponential(l.cfg.MinRetryDelay)))

		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			connected, err := l.session(ctx)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if connected {
				// задержка после рабочей сессии начинается заново
				return errSessionEnded
			}
			l.logger.WarnContext(ctx, "Event stream unavailable", "error", err)
			return retry.RetryableError(err)
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, errSessionEnded) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.cfg.MinRetryDelay):
		}
	}
}

// session выполняет одно подключение; connected сообщает, что рукопожатие прошло
func (l *Listener) session(ctx context.Context) (connected bool, err error) {
	token, err := l.tokens.EnsureToken(ctx)
	if err != nil {
		return false, fmt.Errorf("no access token: %w", err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := l.dialer.DialContext(ctx, l.url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			if invErr := l.tokens.Invalidate(ctx); invErr != nil {
				l.logger.WarnContext(ctx, "Failed to invalidate access token", "error", invErr)
			}
		}
		return false, fmt.Errorf("failed to connect to event stream: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = conn.Close()
	})
	defer stop()

	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	l.logger.InfoContext(ctx, "Event stream connected", "url", l.url)

	// события, пропущенные без соединения, подбираются внеплановым циклом
	l.signal()

	for {
		var ev api.Event
		if err := conn.ReadJSON(&ev); err != nil {
			l.logger.InfoContext(ctx, "Event stream disconnected", "error", err)
			return true, err
		}
		if l.relevant(ev) {
			l.logger.DebugContext(ctx, "Remote change announced", "type", ev.Type, "device_id", ev.DeviceID)
			l.signal()
		}
	}
}

// relevant отбирает события, после которых на сервере есть новые данные для устройства
func (l *Listener) relevant(ev api.Event) bool {
	switch models.EventKind(ev.Type) {
	case models.EventBatchProcessed:
		return ev.DeviceID != l.cfg.DeviceID && ev.AppliedCount > 0
	case models.EventConflictResolved:
		return true
	default:
		return false
	}
}

func (l *Listener) signal() {
	select {
	case l.pending <- struct{}{}:
	default:
	}
}

// dispatch запускает синхронизацию по сигналам, по одной за раз
func (l *Listener) dispatch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.pending:
		}

		_, err := l.trigger.TriggerNow(ctx)
		switch {
		case err == nil:
		case errors.Is(err, clientsync.ErrCycleInProgress), errors.Is(err, clientsync.ErrOffline):
			l.logger.DebugContext(ctx, "Event-driven sync skipped", "error", err)
		case errors.Is(err, clientsync.ErrSchedulerStopped):
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			l.logger.WarnContext(ctx, "Event-driven sync failed", "error", err)
		}
	}
}
