// Package history вычисляет метрики истории сборок: MTTR, MTBF, cycle time,
// lead time и feedback time.
//
// Вычисления читают цепочку build.Record и не изменяют её. Внутри все
// значения в миллисекундах, при отправке делятся на 1000 (секунды).
package history

import (
	"context"

	"github.com/Kargones/ci-telemetry/internal/entity/build"
	"github.com/Kargones/ci-telemetry/internal/pkg/logging"
	"github.com/Kargones/ci-telemetry/internal/pkg/tags"
)

// Имена метрик.
const (
	MetricLeadTime     = "jenkins.job.leadtime"
	MetricCycleTime    = "jenkins.job.cycletime"
	MetricMTTR         = "jenkins.job.mttr"
	MetricFeedbackTime = "jenkins.job.feedbacktime"
	MetricMTBF         = "jenkins.job.mtbf"
)

// MaxDepth ограничивает обход previousBuiltBuild при расчёте MTTR.
const MaxDepth = 10000

// Measurement — одно значение метрики в миллисекундах.
type Measurement struct {
	Name   string
	Millis int64
}

// Seconds возвращает значение в секундах.
func (m Measurement) Seconds() float64 {
	return float64(m.Millis) / 1000
}

// Compute возвращает метрики для завершённой сборки.
// Для выполняющейся сборки или nil результат пустой.
//
// SUCCESS: leadtime всегда, cycletime и mttr только если > 0.
// Иначе: feedbacktime всегда, mtbf только если > 0.
func Compute(r build.Record) []Measurement {
	if r == nil || !r.Result().Completed() {
		return nil
	}

	if r.Result() == build.ResultSuccess {
		mttr := MTTR(r)
		out := []Measurement{{Name: MetricLeadTime, Millis: LeadTime(r, mttr)}}
		if ct := CycleTime(r); ct > 0 {
			out = append(out, Measurement{Name: MetricCycleTime, Millis: ct})
		}
		if mttr > 0 {
			out = append(out, Measurement{Name: MetricMTTR, Millis: mttr})
		}
		return out
	}

	out := []Measurement{{Name: MetricFeedbackTime, Millis: FeedbackTime(r)}}
	if mtbf := MTBF(r); mtbf > 0 {
		out = append(out, Measurement{Name: MetricMTBF, Millis: mtbf})
	}
	return out
}

// MTTR — время от первой сборки текущей серии падений до старта r.
// 0, если предыдущая собранная сборка отсутствует или успешна.
func MTTR(r build.Record) int64 {
	first := r.PreviousBuiltBuild()
	if first == nil || first.Result() == build.ResultSuccess {
		return 0
	}
	for i := 0; i < MaxDepth; i++ {
		prev := first.PreviousBuiltBuild()
		if prev == nil || prev.Result() == build.ResultSuccess {
			break
		}
		first = prev
	}
	return r.StartTimeMillis() - first.StartTimeMillis()
}

// CycleTime — разница моментов окончания r и предыдущей успешной сборки.
func CycleTime(r build.Record) int64 {
	prev := r.PreviousSuccessfulBuild()
	if prev == nil {
		return 0
	}
	return build.EndTimeMillis(r) - build.EndTimeMillis(prev)
}

// LeadTime = длительность + mttr, где mttr — результат MTTR(r).
// Отрицательный MTTR (рассинхрон часов) не учитывается.
func LeadTime(r build.Record, mttr int64) int64 {
	return r.DurationMillis() + max(mttr, 0)
}

// FeedbackTime — длительность неуспешной сборки.
func FeedbackTime(r build.Record) int64 {
	return r.DurationMillis()
}

// MTBF — время от старта последней неупавшей сборки до старта r.
func MTBF(r build.Record) int64 {
	prev := r.PreviousNotFailedBuild()
	if prev == nil {
		return 0
	}
	return r.StartTimeMillis() - prev.StartTimeMillis()
}

// GaugeSender — часть telemetry.Client, используемая Publisher.
type GaugeSender interface {
	Gauge(ctx context.Context, name string, value float64, hostname string, t tags.Set) bool
}

// Publisher отправляет метрики истории как gauge.
type Publisher struct {
	logger logging.Logger
}

// NewPublisher создаёт Publisher.
func NewPublisher(logger logging.Logger) *Publisher {
	return &Publisher{logger: logging.Component(logger, "history")}
}

// Publish вычисляет метрики r и отправляет их в sender.
// Возвращает количество успешно отправленных значений.
func (p *Publisher) Publish(ctx context.Context, sender GaugeSender, r build.Record, hostname string, t tags.Set) int {
	measurements := Compute(r)
	sent := 0
	for _, m := range measurements {
		if sender.Gauge(ctx, m.Name, m.Seconds(), hostname, t) {
			sent++
		}
	}
	if len(measurements) > 0 {
		p.logger.Debug("метрики истории отправлены",
			"job", r.Job(),
			"build", r.Number(),
			"result", r.Result().String(),
			"sent", sent,
			"total", len(measurements),
		)
	}
	return sent
}
