package sync

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCycleInProgress цикл синхронизации уже выполняется
	ErrCycleInProgress = errors.New("sync cycle already in progress")

	// ErrOffline сервер недоступен
	ErrOffline = errors.New("server is unreachable")

	// ErrSchedulerStopped планировщик остановлен
	ErrSchedulerStopped = errors.New("scheduler stopped")
)

// Phase фаза цикла синхронизации
type Phase string

const (
	PhaseAuth  Phase = "auth"
	PhasePush  Phase = "push"
	PhaseMedia Phase = "media"
	PhasePull  Phase = "pull"
)

// PhaseError ошибка одной фазы цикла
type PhaseError struct {
	Err   error
	Phase Phase
}

func (e PhaseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e PhaseError) Unwrap() error {
	return e.Err
}

// CycleResult итог одного цикла синхронизации.
// Ошибка фазы не откатывает результаты других фаз.
type CycleResult struct {
	StartedAt     time.Time
	FinishedAt    time.Time
	Errors        []PhaseError
	Pushed        int // записей outbox отправлено
	Applied       int // дельт принято сервером
	Conflicts     int // дельт ушло в конфликт
	MediaUploaded int
	Pulled        int // изменений с сервера применено локально
}

// Err объединяет ошибки всех фаз; nil если цикл прошел без ошибок
func (r *CycleResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Errors))
	for _, e := range r.Errors {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

// Duration длительность цикла
func (r *CycleResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *CycleResult) addError(phase Phase, err error) {
	r.Errors = append(r.Errors, PhaseError{Phase: phase, Err: err})
}
