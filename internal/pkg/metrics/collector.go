// Package metrics считает собственные метрики конвейера телеметрии:
// отправки в backend, сбросы счётчиков и запросы к ingest API. Метрики
// отдаются на /metrics и при остановке могут быть отправлены в Pushgateway.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/Kargones/ci-telemetry/internal/pkg/logging"
)

// Результаты операций для label result.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Collector определяет интерфейс для сбора метрик конвейера.
// Реализации: PrometheusCollector (активный) и NopCollector (no-op).
type Collector interface {
	// RecordEmission учитывает одну попытку отправки в backend.
	// backend — "http" или "agent", kind — event/gauge/rate/service_check.
	RecordEmission(backend, kind string, success bool)

	// RecordFlush учитывает один сброс счётчиков: число ключей и длительность.
	RecordFlush(keys int, duration time.Duration)

	// RecordIngest учитывает один запрос к ingest API.
	RecordIngest(route string, status int, duration time.Duration)

	// Handler возвращает http.Handler для экспозиции метрик.
	Handler() http.Handler

	// Push отправляет метрики в Pushgateway.
	// Всегда возвращает nil: ошибки логируются внутри реализации.
	Push(ctx context.Context) error
}

// NewCollector возвращает PrometheusCollector или NopCollector, если метрики выключены.
func NewCollector(cfg Config, logger logging.Logger) (Collector, error) {
	if !cfg.Enabled {
		return NewNopCollector(), nil
	}
	return NewPrometheusCollector(cfg, logger)
}
