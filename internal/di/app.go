package di

import (
	"context"

	"go.uber.org/multierr"

	"github.com/Kargones/ci-telemetry/internal/adapter/buildstore"
	"github.com/Kargones/ci-telemetry/internal/config"
	"github.com/Kargones/ci-telemetry/internal/ingest"
	"github.com/Kargones/ci-telemetry/internal/listener"
	"github.com/Kargones/ci-telemetry/internal/pkg/alerting"
	"github.com/Kargones/ci-telemetry/internal/pkg/logging"
	"github.com/Kargones/ci-telemetry/internal/pkg/metrics"
	"github.com/Kargones/ci-telemetry/internal/scheduler"
	"github.com/Kargones/ci-telemetry/internal/telemetry"
)

// App содержит инициализированные зависимости приложения.
// Создаётся через Wire DI в InitializeApp().
//
// При добавлении новых зависимостей:
// 1. Добавить поле в App struct
// 2. Создать провайдер в providers.go
// 3. Добавить провайдер в ProviderSet в wire.go
// 4. Перегенерировать wire_gen.go: go generate ./internal/di/...
type App struct {
	// Config содержит конфигурацию приложения.
	// Передаётся извне через InitializeApp().
	Config *config.Config

	// Logger предоставляет структурированное логирование.
	Logger logging.Logger

	// Alerter отправляет алерты об отклонённых учётных данных backend'а.
	// Если алертинг отключён, используется NopAlerter.
	Alerter alerting.Alerter

	// MetricsCollector собирает собственные метрики сервиса.
	// Если метрики отключены, используется NopCollector.
	MetricsCollector metrics.Collector

	// TracerShutdown завершает OTel TracerProvider и отправляет буферизированные span-ы.
	// Если трейсинг отключён, nop function.
	TracerShutdown func(context.Context) error

	// Factory выбирает клиент телеметрии по текущей конфигурации.
	Factory *telemetry.Factory

	// Flusher периодически сбрасывает счётчики через текущий клиент.
	Flusher *telemetry.Flusher

	// Scheduler выполняет периодические задачи (сброс счётчиков, статус хоста).
	Scheduler *scheduler.Scheduler

	// Store хранит историю сборок для ссылок на предыдущие сборки.
	Store buildstore.Store

	// Listener преобразует уведомления хоста в телеметрию.
	Listener *listener.Listener

	// StatusPublisher периодически публикует последний статус хоста.
	StatusPublisher *listener.StatusPublisher

	// Server принимает уведомления хоста по HTTP.
	Server *ingest.Server
}

// Start регистрирует периодические задачи и запускает планировщик.
func (a *App) Start() error {
	if err := a.Flusher.Schedule(a.Scheduler); err != nil {
		return err
	}
	if err := a.StatusPublisher.Schedule(a.Scheduler); err != nil {
		return err
	}
	a.Scheduler.Start()
	return nil
}

// Shutdown останавливает планировщик, выполняет финальный сброс счётчиков,
// отправляет метрики в Pushgateway, завершает трейсинг и закрывает клиентов.
// Все шаги выполняются даже при ошибке предыдущих.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	err = multierr.Append(err, a.Scheduler.Stop(ctx))
	a.Flusher.Stop(ctx)
	err = multierr.Append(err, a.MetricsCollector.Push(ctx))
	err = multierr.Append(err, a.TracerShutdown(ctx))
	err = multierr.Append(err, a.Factory.Close())
	err = multierr.Append(err, a.Store.Close())
	return err
}
