package config

import (
	"log/slog"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/Kargones/ci-telemetry/internal/constants"
	"github.com/Kargones/ci-telemetry/internal/pkg/tracing"
)

// TracingConfig содержит настройки OpenTelemetry трейсинга.
type TracingConfig struct {
	// Enabled включает отправку трейсов в OTLP бэкенд.
	Enabled bool `yaml:"enabled" env:"CT_TRACING_ENABLED" env-default:"false"`

	// Endpoint — URL OTLP HTTP endpoint (например, http://jaeger:4318).
	Endpoint string `yaml:"endpoint" env:"CT_TRACING_ENDPOINT"`

	// ServiceName — имя сервиса для resource attributes.
	ServiceName string `yaml:"serviceName" env:"CT_TRACING_SERVICE_NAME" env-default:"ci-telemetry"`

	// Environment — окружение (production, staging, development).
	Environment string `yaml:"environment" env:"CT_TRACING_ENVIRONMENT" env-default:"production"`

	// Insecure — использовать HTTP вместо HTTPS для OTLP endpoint.
	Insecure bool `yaml:"insecure" env:"CT_TRACING_INSECURE" env-default:"false"`

	// Timeout — таймаут для экспорта трейсов.
	Timeout time.Duration `yaml:"timeout" env:"CT_TRACING_TIMEOUT" env-default:"5s"`

	// SamplingRate — доля сэмплируемых трейсов (0.0 — ни один, 1.0 — все).
	SamplingRate float64 `yaml:"samplingRate" env:"CT_TRACING_SAMPLING_RATE" env-default:"1.0"`
}

// getDefaultTracingConfig возвращает конфигурацию трейсинга по умолчанию.
// Трейсинг отключён по умолчанию.
func getDefaultTracingConfig() *TracingConfig {
	d := tracing.DefaultConfig()
	return &TracingConfig{
		Enabled:      d.Enabled,
		ServiceName:  d.ServiceName,
		Environment:  d.Environment,
		Insecure:     d.Insecure,
		Timeout:      d.Timeout,
		SamplingRate: d.SamplingRate,
	}
}

// loadTracingConfig загружает конфигурацию трейсинга из AppConfig, переменных окружения или устанавливает значения по умолчанию.
// Переменные окружения CT_TRACING_* переопределяют значения из AppConfig.
func loadTracingConfig(l *slog.Logger, cfg *Config) *TracingConfig {
	if cfg.AppConfig != nil && cfg.AppConfig.Tracing != nil {
		tracingConfig := cfg.AppConfig.Tracing
		if err := cleanenv.ReadEnv(tracingConfig); err != nil {
			l.Warn("Ошибка загрузки Tracing конфигурации из переменных окружения",
				slog.String("error", err.Error()),
			)
		}
		l.Debug("Tracing конфигурация загружена из AppConfig",
			slog.Bool("enabled", tracingConfig.Enabled),
			slog.String("endpoint", tracingConfig.Endpoint),
			slog.String("service_name", tracingConfig.ServiceName),
		)
		return tracingConfig
	}

	tracingConfig := getDefaultTracingConfig()

	if err := cleanenv.ReadEnv(tracingConfig); err != nil {
		l.Warn("Ошибка загрузки Tracing конфигурации из переменных окружения",
			slog.String("error", err.Error()),
		)
	}

	l.Debug("Tracing конфигурация: используются значения по умолчанию",
		slog.Bool("enabled", tracingConfig.Enabled),
	)

	return tracingConfig
}

// validateTracingConfig проверяет секцию правилами пакета tracing.
func validateTracingConfig(tc *TracingConfig) error {
	c := tc.ToTracing()
	return c.Validate()
}

// ToTracing конвертирует секцию в tracing.Config. Version берётся из сборки.
func (tc *TracingConfig) ToTracing() tracing.Config {
	return tracing.Config{
		Enabled:      tc.Enabled,
		Endpoint:     tc.Endpoint,
		ServiceName:  tc.ServiceName,
		Version:      constants.Version,
		Environment:  tc.Environment,
		Insecure:     tc.Insecure,
		Timeout:      tc.Timeout,
		SamplingRate: tc.SamplingRate,
	}
}
