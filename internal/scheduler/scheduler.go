// Package scheduler запускает периодические задачи сервиса поверх robfig/cron.
//
// Каждая задача выполняется в своей горутине cron; повторный запуск задачи,
// пока предыдущий ещё выполняется, пропускается (SkipIfStillRunning).
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Kargones/ci-telemetry/internal/pkg/logging"
)

// MinInterval — минимальный интервал задачи (разрешение cron.Every).
const MinInterval = time.Second

// ErrIntervalTooSmall возвращается Every для интервала меньше MinInterval.
var ErrIntervalTooSmall = errors.New("scheduler: interval must be at least 1s")

// Job — периодическая задача. ctx отменяется после Stop.
type Job = func(ctx context.Context)

// Scheduler — обёртка над cron.Cron.
type Scheduler struct {
	cron   *cron.Cron
	logger logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// New создаёт Scheduler. Задачи не выполняются до Start.
func New(logger logging.Logger) *Scheduler {
	logger = logging.Component(logger, "scheduler")
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
	}
}

// Every регистрирует задачу name с фиксированным интервалом.
// Повторная регистрация того же name заменяет задачу.
func (s *Scheduler) Every(name string, interval time.Duration, job Job) error {
	if interval < MinInterval {
		return fmt.Errorf("%w: %s=%s", ErrIntervalTooSmall, name, interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
	}
	s.entries[name] = s.cron.Schedule(cron.Every(interval), cron.FuncJob(func() {
		job(s.ctx)
	}))
	s.logger.Debug("задача зарегистрирована", "job", name, "interval", interval.String())
	return nil
}

// Jobs возвращает имена зарегистрированных задач.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

// Start запускает планировщик в фоне.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("планировщик запущен", "jobs", len(s.Jobs()))
}

// Stop останавливает планировщик и ждёт завершения выполняющихся задач
// не дольше ctx. После возврата context задач отменён.
func (s *Scheduler) Stop(ctx context.Context) error {
	defer s.cancel()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("планировщик остановлен")
		return nil
	case <-ctx.Done():
		s.logger.Warn("задачи не завершились до таймаута остановки")
		return ctx.Err()
	}
}

// cronLogger адаптирует logging.Logger к cron.Logger.
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
