// Package telemetry отправляет события, метрики и service checks сборок
// в Datadog-совместимый backend.
//
// Два backend'а реализуют Client:
//   - HTTPClient: прямой HTTP API (series, events, check_run)
//   - AgentClient: локальный relay-агент по протоколу DogStatsD
//
// Factory выбирает backend по текущей конфигурации; оба клиента делят один
// counter.Store, который периодически сбрасывается Flusher'ом как rate метрики.
package telemetry

import (
	"context"
	"time"

	"github.com/Kargones/ci-telemetry/internal/pkg/tags"
)

// Kind — тип метрики в Sample.
type Kind string

const (
	KindGauge Kind = "gauge"
	KindRate  Kind = "rate"
)

// Sample — одна метрика перед отправкой.
// Interval задаётся в секундах и используется только для KindRate.
type Sample struct {
	Name     string
	Value    float64
	Hostname string
	Tags     tags.Set
	Kind     Kind
	Interval int64
}

// AlertType события.
type AlertType string

const (
	AlertInfo    AlertType = "info"
	AlertSuccess AlertType = "success"
	AlertWarning AlertType = "warning"
	AlertError   AlertType = "error"
)

// Priority события.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Event — событие для ленты событий backend'а.
// Пустые AlertType/Priority заменяются на info/normal, нулевой Date заменяется текущим временем.
type Event struct {
	Title          string
	Text           string
	Hostname       string
	Tags           tags.Set
	AlertType      AlertType
	Priority       Priority
	AggregationKey string
	Date           time.Time
}

// CheckStatus — статус service check.
type CheckStatus int

const (
	StatusOK       CheckStatus = 0
	StatusWarning  CheckStatus = 1
	StatusCritical CheckStatus = 2
	StatusUnknown  CheckStatus = 3
)

// String возвращает имя статуса.
func (s CheckStatus) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarning:
		return "WARNING"
	case StatusCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// SourceType — source_type_name событий.
const SourceType = "jenkins"

// Client — абстракция над backend'ом телеметрии.
//
// Методы отправки никогда не возвращают ошибку и не паникуют: внутренние
// ошибки логируются, результат false. IncrementCounter не выполняет I/O.
type Client interface {
	Event(ctx context.Context, event Event) bool
	Gauge(ctx context.Context, name string, value float64, hostname string, tags tags.Set) bool
	ServiceCheck(ctx context.Context, name string, status CheckStatus, hostname string, tags tags.Set) bool
	IncrementCounter(name, hostname string, tags tags.Set)
	FlushCounters(ctx context.Context)
	Validate(ctx context.Context) bool
	Close() error
}

// HostnameResolver возвращает имя хоста по умолчанию.
type HostnameResolver interface {
	Hostname() string
}

func withDefaults(e Event, now time.Time) Event {
	if e.AlertType == "" {
		e.AlertType = AlertInfo
	}
	if e.Priority == "" {
		e.Priority = PriorityNormal
	}
	if e.Date.IsZero() {
		e.Date = now
	}
	return e
}
