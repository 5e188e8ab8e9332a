package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/Kargones/ci-telemetry/internal/pkg/logging"
)

// FlushJobName — имя задачи сброса счётчиков в планировщике.
const FlushJobName = "counter-flush"

// ClientSource возвращает актуальный клиент (Factory).
type ClientSource interface {
	Current() Client
}

// Scheduler — планировщик периодических задач.
type Scheduler interface {
	Every(name string, interval time.Duration, job func(ctx context.Context)) error
}

// Reconfigurer применяет новую конфигурацию телеметрии (Factory).
type Reconfigurer interface {
	Reconfigure(cfg Config) error
}

// Flusher периодически сбрасывает счётчики через текущий клиент.
// Интервал сброса совпадает с интервалом rate метрик.
type Flusher struct {
	source ClientSource
	logger logging.Logger

	// mu сериализует сброс и смену интервала.
	mu       sync.Mutex
	interval time.Duration
	sched    Scheduler
}

// NewFlusher создаёт Flusher. interval <= 0 означает DefaultFlushInterval.
func NewFlusher(source ClientSource, interval time.Duration, logger logging.Logger) *Flusher {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Flusher{
		source:   source,
		interval: interval,
		logger:   logging.Component(logger, "flusher"),
	}
}

// Schedule регистрирует периодический сброс в планировщике.
func (f *Flusher) Schedule(s Scheduler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := s.Every(FlushJobName, f.interval, f.Flush); err != nil {
		return err
	}
	f.sched = s
	return nil
}

// Reload применяет cfg через r. Если период сброса меняется, счётчики,
// накопленные за старый период, сбрасываются до переключения, а задача
// FlushJobName перерегистрируется с новым периодом.
func (f *Flusher) Reload(ctx context.Context, r Reconfigurer, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if cfg.FlushInterval == f.interval {
		return r.Reconfigure(cfg)
	}

	f.flushLocked(ctx)
	if err := r.Reconfigure(cfg); err != nil {
		return err
	}

	prev := f.interval
	f.interval = cfg.FlushInterval
	if f.sched != nil {
		if err := f.sched.Every(FlushJobName, f.interval, f.Flush); err != nil {
			return err
		}
	}
	f.logger.Info("период сброса счётчиков изменён",
		"previous", prev.String(),
		"interval", f.interval.String(),
	)
	return nil
}

// Flush выполняет один сброс. Клиент выбирается заново на каждом вызове.
func (f *Flusher) Flush(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushLocked(ctx)
}

func (f *Flusher) flushLocked(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("паника при сбросе счётчиков", "panic", r)
		}
	}()
	f.source.Current().FlushCounters(ctx)
}

// Stop выполняет финальный сброс при остановке сервиса.
func (f *Flusher) Stop(ctx context.Context) {
	f.logger.Info("финальный сброс счётчиков")
	f.Flush(ctx)
}

// Interval возвращает период сброса.
func (f *Flusher) Interval() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.interval
}
