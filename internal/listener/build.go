package listener

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Kargones/ci-telemetry/internal/entity/build"
	"github.com/Kargones/ci-telemetry/internal/pkg/tags"
	"github.com/Kargones/ci-telemetry/internal/pkg/tracing"
	"github.com/Kargones/ci-telemetry/internal/telemetry"
)

// Метрики сборок.
const (
	MetricJobStarted   = "jenkins.job.started"
	MetricJobCompleted = "jenkins.job.completed"
	MetricJobAborted   = "jenkins.job.aborted"
	MetricJobDuration  = "jenkins.job.duration"
	MetricSCMCheckout  = "jenkins.scm.checkout"
	CheckJobStatus     = "jenkins.job.status"
)

// Build — уведомление о сборке.
type Build struct {
	Record build.Record
	// Node — имя узла, на котором выполняется сборка.
	Node string
	// UserID — пользователь, запустивший сборку.
	UserID string
}

// metricTags — теги метрик сборки: глобальные, теги сборки, job, node, user_id.
// Номер сборки в теги метрик не входит.
func (l *Listener) metricTags(b Build) tags.Set {
	extra := []string{"job:" + b.Record.Job()}
	if b.Node != "" {
		extra = append(extra, "node:"+b.Node)
	}
	if b.UserID != "" {
		extra = append(extra, "user_id:"+b.UserID)
	}
	return l.withGlobals(b.Record.Tags()).With(extra...)
}

// eventTags дополняет теги метрик номером сборки.
func eventTags(metric tags.Set, b Build) tags.Set {
	return metric.With("build_number:" + strconv.Itoa(b.Record.Number()))
}

// OnStarted обрабатывает старт сборки.
func (l *Listener) OnStarted(ctx context.Context, b Build) {
	r := b.Record
	ctx, span := tracing.Start(ctx, "listener.build_started", attribute.String("job", r.Job()))
	defer span.End()

	t := l.metricTags(b)
	c := l.client()
	c.Event(ctx, telemetry.Event{
		Title:          fmt.Sprintf("%s build #%d started on %s", r.Job(), r.Number(), hostOrDefault(r.Hostname())),
		Text:           fmt.Sprintf("Build #%d of %s started", r.Number(), r.Job()),
		Hostname:       r.Hostname(),
		Tags:           eventTags(t, b),
		AlertType:      telemetry.AlertInfo,
		Priority:       telemetry.PriorityLow,
		AggregationKey: r.Job(),
	})
	c.IncrementCounter(MetricJobStarted, r.Hostname(), t)
}

// OnCompleted обрабатывает завершение сборки: событие, длительность,
// метрики истории, счётчики и service check статуса.
func (l *Listener) OnCompleted(ctx context.Context, b Build) {
	r := b.Record
	if !r.Result().Completed() {
		l.logger.Warn("уведомление о завершении сборки без результата пропущено",
			"job", r.Job(), "build", r.Number())
		return
	}

	ctx, span := tracing.Start(ctx, "listener.build_completed",
		attribute.String("job", r.Job()),
		attribute.String("result", r.Result().String()),
	)
	defer span.End()

	t := l.metricTags(b).With("result:" + r.Result().String())
	host := r.Hostname()
	c := l.client()

	c.Event(ctx, telemetry.Event{
		Title: fmt.Sprintf("%s build #%d %s on %s",
			r.Job(), r.Number(), r.Result(), hostOrDefault(host)),
		Text:           fmt.Sprintf("Build #%d of %s finished with %s in %.1fs", r.Number(), r.Job(), r.Result(), float64(r.DurationMillis())/1000),
		Hostname:       host,
		Tags:           eventTags(t, b),
		AlertType:      alertTypeFor(r.Result()),
		Priority:       priorityFor(r.Result()),
		AggregationKey: r.Job(),
	})
	c.Gauge(ctx, MetricJobDuration, float64(r.DurationMillis())/1000, host, t)
	l.history.Publish(ctx, c, r, host, t)
	c.IncrementCounter(MetricJobCompleted, host, t)
	c.ServiceCheck(ctx, CheckJobStatus, checkStatusFor(r.Result()), host, t)
	if r.Result() == build.ResultAborted {
		c.IncrementCounter(MetricJobAborted, host, t)
	}
}

// OnCheckout обрабатывает завершение checkout исходников.
func (l *Listener) OnCheckout(ctx context.Context, b Build) {
	r := b.Record
	t := l.metricTags(b)
	c := l.client()
	c.Event(ctx, telemetry.Event{
		Title:          fmt.Sprintf("%s build #%d checkout finished on %s", r.Job(), r.Number(), hostOrDefault(r.Hostname())),
		Text:           fmt.Sprintf("SCM checkout for build #%d of %s finished", r.Number(), r.Job()),
		Hostname:       r.Hostname(),
		Tags:           eventTags(t, b),
		AlertType:      telemetry.AlertInfo,
		Priority:       telemetry.PriorityLow,
		AggregationKey: r.Job(),
	})
	c.IncrementCounter(MetricSCMCheckout, r.Hostname(), t)
}

func alertTypeFor(r build.Result) telemetry.AlertType {
	switch r {
	case build.ResultSuccess:
		return telemetry.AlertSuccess
	case build.ResultFailure:
		return telemetry.AlertError
	case build.ResultUnstable, build.ResultAborted:
		return telemetry.AlertWarning
	default:
		return telemetry.AlertInfo
	}
}

func priorityFor(r build.Result) telemetry.Priority {
	if r == build.ResultSuccess {
		return telemetry.PriorityLow
	}
	return telemetry.PriorityNormal
}

// checkStatusFor: SUCCESS→OK, UNSTABLE→WARNING, FAILURE→CRITICAL, остальное→UNKNOWN.
func checkStatusFor(r build.Result) telemetry.CheckStatus {
	switch r {
	case build.ResultSuccess:
		return telemetry.StatusOK
	case build.ResultUnstable:
		return telemetry.StatusWarning
	case build.ResultFailure:
		return telemetry.StatusCritical
	default:
		return telemetry.StatusUnknown
	}
}

func hostOrDefault(host string) string {
	if host == "" {
		return "default host"
	}
	return host
}
