package telemetry

import (
	"context"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/atomic"

	"github.com/Kargones/ci-telemetry/internal/counter"
	"github.com/Kargones/ci-telemetry/internal/hostname"
	"github.com/Kargones/ci-telemetry/internal/pkg/alerting"
	"github.com/Kargones/ci-telemetry/internal/pkg/logging"
	"github.com/Kargones/ci-telemetry/internal/pkg/metrics"
	"github.com/Kargones/ci-telemetry/internal/pkg/tags"
	"github.com/Kargones/ci-telemetry/internal/pkg/tracing"
)

// Deps — общие зависимости клиентов. Нулевые поля заменяются безопасными значениями.
type Deps struct {
	Counters  *counter.Store
	Hosts     HostnameResolver
	Collector metrics.Collector
	Alerter   alerting.Alerter
	Logger    logging.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Counters == nil {
		d.Counters = counter.NewStore(0)
	}
	if d.Logger == nil {
		d.Logger = logging.NewNopLogger()
	}
	if d.Hosts == nil {
		d.Hosts = hostname.NewResolver("", d.Logger)
	}
	if d.Collector == nil {
		d.Collector = metrics.NewNopCollector()
	}
	if d.Alerter == nil {
		d.Alerter = alerting.NewNopAlerter()
	}
	return d
}

// core — общая часть обоих backend'ов: счётчики, hostname, учёт отправок.
type core struct {
	backend   string
	counters  *counter.Store
	hosts     HostnameResolver
	collector metrics.Collector
	logger    logging.Logger
	interval  *atomic.Duration
	now       func() time.Time
}

func newCore(backend string, interval time.Duration, deps Deps) core {
	deps = deps.withDefaults()
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return core{
		backend:   backend,
		counters:  deps.Counters,
		hosts:     deps.Hosts,
		collector: deps.Collector,
		logger:    logging.Component(deps.Logger, "telemetry."+backend),
		interval:  atomic.NewDuration(interval),
		now:       time.Now,
	}
}

// IncrementCounter увеличивает счётчик в общем counter.Store. Не выполняет I/O.
func (c *core) IncrementCounter(name, hostname string, t tags.Set) {
	c.counters.Increment(counter.Key{Metric: name, Hostname: hostname, Tags: t})
}

// setInterval меняет период, по которому счётчики пересчитываются в rate.
func (c *core) setInterval(d time.Duration) {
	if d > 0 {
		c.interval.Store(d)
	}
}

// host возвращает hostname или имя по умолчанию для пустого значения.
func (c *core) host(hostname string) string {
	if hostname != "" {
		return hostname
	}
	return c.hosts.Hostname()
}

// record учитывает отправку в метриках конвейера и возвращает ok.
func (c *core) record(kind string, ok bool) bool {
	c.collector.RecordEmission(c.backend, kind, ok)
	return ok
}

// flush забирает счётчики и отправляет каждый как rate sample:
// value = count / interval_seconds, interval = interval_seconds.
// Ошибка отправки одного sample не прерывает остальные; его значения теряются.
func (c *core) flush(ctx context.Context, send func(context.Context, Sample) bool) {
	start := c.now()
	ctx, span := tracing.Start(ctx, "telemetry.flush", attribute.String("backend", c.backend))
	defer span.End()

	drained := c.counters.DrainAndReset()
	if len(drained) == 0 {
		c.collector.RecordFlush(0, time.Since(start))
		return
	}

	secs := c.interval.Load().Seconds()
	interval := int64(math.Round(secs))
	failed := 0
	for key, count := range drained {
		s := Sample{
			Name:     key.Metric,
			Value:    float64(count) / secs,
			Hostname: c.host(key.Hostname),
			Tags:     key.Tags,
			Kind:     KindRate,
			Interval: interval,
		}
		if !send(ctx, s) {
			failed++
		}
	}

	span.SetAttributes(attribute.Int("keys", len(drained)), attribute.Int("failed", failed))
	c.collector.RecordFlush(len(drained), time.Since(start))

	if failed > 0 {
		c.logger.Warn("часть счётчиков не отправлена, значения за интервал потеряны",
			"keys", len(drained),
			"failed", failed,
			"trace_id", tracing.TraceIDFromContext(ctx),
		)
		return
	}
	c.logger.Debug("счётчики отправлены", "keys", len(drained))
}
