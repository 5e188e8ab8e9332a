package config

import (
	"log/slog"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/Kargones/ci-telemetry/internal/pkg/metrics"
	"github.com/Kargones/ci-telemetry/internal/pkg/urlutil"
)

// MetricsConfig содержит настройки собственных Prometheus метрик сервиса.
type MetricsConfig struct {
	// Enabled — включены ли метрики (по умолчанию false).
	Enabled bool `yaml:"enabled" env:"CT_METRICS_ENABLED" env-default:"false"`

	// PushgatewayURL — URL Prometheus Pushgateway для push при остановке.
	// Пусто: только /metrics.
	// Пример: "http://pushgateway:9091"
	PushgatewayURL string `yaml:"pushgatewayUrl" env:"CT_METRICS_PUSHGATEWAY_URL"`

	// JobName — имя job для группировки метрик.
	JobName string `yaml:"jobName" env:"CT_METRICS_JOB_NAME" env-default:"ci-telemetry"`

	// Timeout — таймаут HTTP запросов к Pushgateway.
	Timeout time.Duration `yaml:"timeout" env:"CT_METRICS_TIMEOUT" env-default:"10s"`

	// InstanceLabel — переопределение instance label.
	// Если пусто, используется hostname.
	InstanceLabel string `yaml:"instanceLabel" env:"CT_METRICS_INSTANCE"`
}

// getDefaultMetricsConfig возвращает конфигурацию метрик по умолчанию.
// Метрики отключены по умолчанию.
func getDefaultMetricsConfig() *MetricsConfig {
	d := metrics.DefaultConfig()
	return &MetricsConfig{
		Enabled: d.Enabled,
		JobName: d.JobName,
		Timeout: d.Timeout,
	}
}

// loadMetricsConfig загружает конфигурацию метрик из AppConfig, переменных окружения или устанавливает значения по умолчанию.
// Переменные окружения CT_METRICS_* переопределяют значения из AppConfig.
func loadMetricsConfig(l *slog.Logger, cfg *Config) *MetricsConfig {
	if cfg.AppConfig != nil && cfg.AppConfig.Metrics != nil {
		metricsConfig := cfg.AppConfig.Metrics
		if err := cleanenv.ReadEnv(metricsConfig); err != nil {
			l.Warn("Ошибка загрузки Metrics конфигурации из переменных окружения",
				slog.String("error", err.Error()),
			)
		}
		l.Info("Metrics конфигурация загружена из AppConfig",
			slog.Bool("enabled", metricsConfig.Enabled),
			slog.String("pushgateway_url", maskOptionalURL(metricsConfig.PushgatewayURL)),
			slog.String("job_name", metricsConfig.JobName),
		)
		return metricsConfig
	}

	metricsConfig := getDefaultMetricsConfig()

	if err := cleanenv.ReadEnv(metricsConfig); err != nil {
		l.Warn("Ошибка загрузки Metrics конфигурации из переменных окружения",
			slog.String("error", err.Error()),
		)
	}

	l.Debug("Metrics конфигурация: используются значения по умолчанию",
		slog.Bool("enabled", metricsConfig.Enabled),
	)

	return metricsConfig
}

// validateMetricsConfig проверяет секцию правилами пакета metrics.
func validateMetricsConfig(mc *MetricsConfig) error {
	c := mc.ToMetrics()
	return c.Validate()
}

// ToMetrics конвертирует секцию в metrics.Config.
func (mc *MetricsConfig) ToMetrics() metrics.Config {
	return metrics.Config{
		Enabled:        mc.Enabled,
		PushgatewayURL: mc.PushgatewayURL,
		JobName:        mc.JobName,
		Timeout:        mc.Timeout,
		InstanceLabel:  mc.InstanceLabel,
	}
}

func maskOptionalURL(raw string) string {
	if raw == "" {
		return ""
	}
	return urlutil.MaskURL(raw)
}
