package di

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Kargones/ci-telemetry/internal/adapter/buildstore"
	"github.com/Kargones/ci-telemetry/internal/config"
	"github.com/Kargones/ci-telemetry/internal/counter"
	"github.com/Kargones/ci-telemetry/internal/hostname"
	"github.com/Kargones/ci-telemetry/internal/ingest"
	"github.com/Kargones/ci-telemetry/internal/listener"
	"github.com/Kargones/ci-telemetry/internal/pkg/alerting"
	"github.com/Kargones/ci-telemetry/internal/pkg/logging"
	"github.com/Kargones/ci-telemetry/internal/pkg/metrics"
	"github.com/Kargones/ci-telemetry/internal/pkg/tracing"
	"github.com/Kargones/ci-telemetry/internal/scheduler"
	"github.com/Kargones/ci-telemetry/internal/telemetry"
)

// ErrNilConfig возвращается, если InitializeApp вызван без конфигурации
// или без секции telemetry.
var ErrNilConfig = errors.New("di: конфигурация телеметрии не задана")

// defaultStoreConnectTimeout — таймаут подключения к SQL Server при старте.
const defaultStoreConnectTimeout = 30 * time.Second

// ProvideLogger создаёт Logger на основе LoggingConfig из Config.
// Если LoggingConfig == nil, используются значения по умолчанию logging.DefaultConfig().
func ProvideLogger(cfg *config.Config) logging.Logger {
	if cfg == nil || cfg.LoggingConfig == nil {
		return logging.NewLogger(logging.DefaultConfig())
	}
	return logging.NewLogger(cfg.LoggingConfig.ToLogging())
}

// ProvideAlerter создаёт Alerter на основе AlertingConfig из Config.
// Если AlertingConfig == nil или Enabled=false, возвращает NopAlerter.
// При ошибке создания Alerter возвращает NopAlerter и логирует ошибку.
func ProvideAlerter(cfg *config.Config, logger logging.Logger) alerting.Alerter {
	if cfg == nil || cfg.AlertingConfig == nil {
		return alerting.NewNopAlerter()
	}

	alerter, err := alerting.NewAlerter(cfg.AlertingConfig.ToAlerting(), logger)
	if err != nil {
		logger.Error("ошибка создания Alerter, используется NopAlerter",
			slog.String("error", err.Error()),
		)
		return alerting.NewNopAlerter()
	}

	return alerter
}

// ProvideMetricsCollector создаёт Collector на основе MetricsConfig из Config.
// Если MetricsConfig == nil или Enabled=false, возвращает NopCollector.
// При ошибке создания Collector возвращает NopCollector и логирует ошибку.
func ProvideMetricsCollector(cfg *config.Config, logger logging.Logger) metrics.Collector {
	if cfg == nil || cfg.MetricsConfig == nil {
		return metrics.NewNopCollector()
	}

	collector, err := metrics.NewCollector(cfg.MetricsConfig.ToMetrics(), logger)
	if err != nil {
		logger.Error("ошибка создания MetricsCollector, используется NopCollector",
			slog.String("error", err.Error()),
		)
		return metrics.NewNopCollector()
	}

	return collector
}

// ProvideTracerProvider создаёт и инициализирует OTel TracerProvider.
// Возвращает shutdown function для graceful завершения.
// Если TracingConfig == nil или Enabled=false, возвращает nop shutdown.
// При ошибке создания TracerProvider возвращает nop shutdown и логирует ошибку.
func ProvideTracerProvider(cfg *config.Config, logger logging.Logger) func(context.Context) error {
	if cfg == nil || cfg.TracingConfig == nil {
		return tracing.NewNopTracerProvider()
	}

	shutdown, err := tracing.NewTracerProvider(cfg.TracingConfig.ToTracing(), logger)
	if err != nil {
		logger.Error("ошибка инициализации tracing, используется nop provider",
			slog.String("error", err.Error()),
		)
		return tracing.NewNopTracerProvider()
	}

	return shutdown
}

// ProvideHostnameResolver создаёт кэширующий resolver имени хоста.
func ProvideHostnameResolver(cfg *config.Config, logger logging.Logger) *hostname.Resolver {
	configured := ""
	if cfg != nil && cfg.TelemetryConfig != nil {
		configured = cfg.TelemetryConfig.Hostname
	}
	return hostname.NewResolver(configured, logger)
}

// ProvideCounterStore создаёт общее хранилище счётчиков обоих backend'ов.
func ProvideCounterStore() *counter.Store {
	return counter.NewStore(0)
}

// ProvideTelemetryFactory создаёт Factory клиентов телеметрии.
// Некорректная секция telemetry возвращается как ошибка инициализации.
func ProvideTelemetryFactory(
	cfg *config.Config,
	counters *counter.Store,
	hosts *hostname.Resolver,
	collector metrics.Collector,
	alerter alerting.Alerter,
	logger logging.Logger,
) (*telemetry.Factory, error) {
	if cfg == nil || cfg.TelemetryConfig == nil {
		return nil, ErrNilConfig
	}
	return telemetry.NewFactory(cfg.TelemetryConfig.ToTelemetry(), telemetry.Deps{
		Counters:  counters,
		Hosts:     hosts,
		Collector: collector,
		Alerter:   alerter,
		Logger:    logger,
	}, nil)
}

// ProvideFlusher создаёт Flusher с интервалом из конфигурации Factory.
func ProvideFlusher(factory *telemetry.Factory, logger logging.Logger) *telemetry.Flusher {
	return telemetry.NewFlusher(factory, factory.Config().FlushInterval, logger)
}

// ProvideScheduler создаёт планировщик периодических задач.
func ProvideScheduler(logger logging.Logger) *scheduler.Scheduler {
	return scheduler.New(logger)
}

// ProvideBuildStore создаёт хранилище истории сборок: SQL Server при
// driver=mssql, иначе память. Подключение к SQL Server выполняется сразу.
func ProvideBuildStore(cfg *config.Config, logger logging.Logger) (buildstore.Store, error) {
	if cfg == nil || cfg.StoreConfig == nil {
		return buildstore.NewMemoryStore(0), nil
	}
	sc := cfg.StoreConfig
	if sc.Driver != config.StoreDriverMSSQL {
		return buildstore.NewMemoryStore(sc.MemoryLimit), nil
	}

	store, err := buildstore.NewMSSQLStore(sc.MSSQLOptions())
	if err != nil {
		return nil, err
	}

	timeout := sc.MSSQL.Timeout
	if timeout <= 0 {
		timeout = defaultStoreConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := store.Connect(ctx); err != nil {
		return nil, err
	}
	if sc.MSSQL.EnsureSchema {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	logger.Info("история сборок хранится в SQL Server",
		slog.String("server", sc.MSSQL.Server),
		slog.String("database", sc.MSSQL.Database),
	)
	return store, nil
}

// ProvideBuildResolver создаёт Resolver ссылок на предыдущие сборки.
func ProvideBuildResolver(store buildstore.Store, cfg *config.Config, logger logging.Logger) *buildstore.Resolver {
	size := 0
	if cfg != nil && cfg.StoreConfig != nil {
		size = cfg.StoreConfig.CacheSize
	}
	return buildstore.NewResolver(store, size, logger)
}

// ProvideListener создаёт Listener уведомлений хоста.
func ProvideListener(factory *telemetry.Factory, logger logging.Logger) *listener.Listener {
	return listener.New(factory, logger)
}

// ProvideStatusPublisher создаёт публикатор статуса хоста.
func ProvideStatusPublisher(factory *telemetry.Factory, cfg *config.Config, logger logging.Logger) *listener.StatusPublisher {
	var interval time.Duration
	if cfg != nil && cfg.IngestConfig != nil {
		interval = cfg.IngestConfig.HostStatusInterval
	}
	return listener.NewStatusPublisher(factory, interval, logger)
}

// ProvideIngestServer создаёт HTTP сервер приёма уведомлений.
// Сервер не слушает порт до вызова Serve/ListenAndServe.
func ProvideIngestServer(
	cfg *config.Config,
	l *listener.Listener,
	status *listener.StatusPublisher,
	store buildstore.Store,
	resolver *buildstore.Resolver,
	collector metrics.Collector,
	logger logging.Logger,
) (*ingest.Server, error) {
	ingestCfg := ingest.DefaultConfig()
	if cfg != nil && cfg.IngestConfig != nil {
		ingestCfg = cfg.IngestConfig.ToIngest()
	}
	return ingest.NewServer(ingestCfg, ingest.Deps{
		Listener:  l,
		Status:    status,
		Store:     store,
		Resolver:  resolver,
		Collector: collector,
		Logger:    logger,
	})
}
