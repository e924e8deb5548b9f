package sync

import (
	"context"
	"errors"
	"log/slog"
	gosync "sync"
	"time"
)

// Cycler выполняет циклы синхронизации
type Cycler interface {
	RunCycle(ctx context.Context) (*CycleResult, error)
	Online(ctx context.Context) error
}

// DefaultInterval интервал автоматической синхронизации по умолчанию
const DefaultInterval = 30 * time.Second

// Scheduler запускает циклы по таймеру и по запросу (TriggerNow).
// Stop запрещает новые циклы и ждет завершения текущего, не прерывая его.
type Scheduler struct {
	cycler   Cycler
	logger   *slog.Logger
	onResult func(*CycleResult)
	stop     chan struct{}
	interval time.Duration
	wg       gosync.WaitGroup
	mu       gosync.Mutex
	started  bool
	stopped  bool
}

// NewScheduler создает планировщик; onResult может быть nil
func NewScheduler(cycler Cycler, interval time.Duration, logger *slog.Logger, onResult func(*CycleResult)) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		cycler:   cycler,
		interval: interval,
		logger:   logger,
		onResult: onResult,
		stop:     make(chan struct{}),
	}
}

// Start запускает фоновый цикл по таймеру. Повторный вызов ничего не делает.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true

	s.wg.Add(1)
	go s.loop(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick выполняет плановый цикл; офлайн и занятость - не ошибки
func (s *Scheduler) tick(ctx context.Context) {
	if err := s.cycler.Online(ctx); err != nil {
		s.logger.DebugContext(ctx, "Scheduled sync skipped: offline", "error", err)
		return
	}

	res, err := s.cycler.RunCycle(ctx)
	if err != nil {
		if errors.Is(err, ErrCycleInProgress) {
			s.logger.DebugContext(ctx, "Scheduled sync skipped: cycle in progress")
			return
		}
		s.logger.ErrorContext(ctx, "Scheduled sync failed", "error", err)
		return
	}
	s.report(res)
}

// TriggerNow немедленно запускает цикл и возвращает его результат.
// Офлайн возвращает ErrOffline, параллельный цикл - ErrCycleInProgress.
func (s *Scheduler) TriggerNow(ctx context.Context) (*CycleResult, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, ErrSchedulerStopped
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	if err := s.cycler.Online(ctx); err != nil {
		return nil, err
	}

	res, err := s.cycler.RunCycle(ctx)
	if err != nil {
		return nil, err
	}
	s.report(res)
	return res, nil
}

// Stop останавливает таймер и ждет завершения выполняющихся циклов
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) report(res *CycleResult) {
	if s.onResult != nil && res != nil {
		s.onResult(res)
	}
}
