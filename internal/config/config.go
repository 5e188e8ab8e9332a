// Package config загружает конфигурацию ci-telemetry.
//
// Источники применяются в порядке: YAML файл из CT_CONFIG_FILE (необязателен),
// затем переменные окружения CT_* через cleanenv. Каждая секция загружается
// отдельно тройкой load/default/validate. Некорректная необязательная секция
// заменяется значениями по умолчанию с предупреждением; некорректная секция
// telemetry делает запуск невозможным.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Kargones/ci-telemetry/internal/constants"
	"github.com/Kargones/ci-telemetry/internal/pkg/apperrors"
)

// AppConfig — содержимое YAML файла конфигурации.
// Отсутствующая в файле секция остаётся nil.
type AppConfig struct {
	Telemetry *TelemetryConfig `yaml:"telemetry"`
	Ingest    *IngestConfig    `yaml:"ingest"`
	Store     *StoreConfig     `yaml:"store"`
	Logging   *LoggingConfig   `yaml:"logging"`
	Metrics   *MetricsConfig   `yaml:"metrics"`
	Tracing   *TracingConfig   `yaml:"tracing"`
	Alerting  *AlertingConfig  `yaml:"alerting"`
}

// Config — загруженная конфигурация приложения.
// После успешного Load все секции не nil.
type Config struct {
	// ConfigFile — путь к YAML файлу, пусто если файл не задан.
	ConfigFile string

	// AppConfig — содержимое YAML файла, nil если файл не задан.
	AppConfig *AppConfig

	TelemetryConfig *TelemetryConfig
	IngestConfig    *IngestConfig
	StoreConfig     *StoreConfig
	LoggingConfig   *LoggingConfig
	MetricsConfig   *MetricsConfig
	TracingConfig   *TracingConfig
	AlertingConfig  *AlertingConfig
}

// Load загружает конфигурацию из файла и переменных окружения.
// l используется только для сообщений о самой загрузке; nil допустим.
func Load(l *slog.Logger) (*Config, error) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	cfg := &Config{ConfigFile: os.Getenv(constants.EnvConfigFile)}

	if cfg.ConfigFile != "" {
		app, err := loadAppConfig(cfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg.AppConfig = app
		l.Info("Конфигурация загружена из файла", slog.String("path", cfg.ConfigFile))
	}

	var err error
	if cfg.TelemetryConfig, err = loadTelemetryConfig(l, cfg); err != nil {
		return nil, err
	}

	cfg.IngestConfig = loadIngestConfig(l, cfg)
	if err = validateIngestConfig(cfg.IngestConfig); err != nil {
		l.Warn("Некорректная Ingest конфигурация, используются значения по умолчанию",
			slog.String("error", err.Error()),
		)
		cfg.IngestConfig = getDefaultIngestConfig()
	}

	cfg.StoreConfig = loadStoreConfig(l, cfg)
	if err = validateStoreConfig(cfg.StoreConfig); err != nil {
		l.Warn("Некорректная Store конфигурация, используются значения по умолчанию",
			slog.String("error", err.Error()),
		)
		cfg.StoreConfig = getDefaultStoreConfig()
	}

	cfg.LoggingConfig = loadLoggingConfig(l, cfg)
	if err = validateLoggingConfig(cfg.LoggingConfig); err != nil {
		l.Warn("Некорректная Logging конфигурация, используются значения по умолчанию",
			slog.String("error", err.Error()),
		)
		cfg.LoggingConfig = getDefaultLoggingConfig()
	}

	cfg.MetricsConfig = loadMetricsConfig(l, cfg)
	if err = validateMetricsConfig(cfg.MetricsConfig); err != nil {
		l.Warn("Некорректная Metrics конфигурация, метрики отключены",
			slog.String("error", err.Error()),
		)
		cfg.MetricsConfig = getDefaultMetricsConfig()
	}

	cfg.TracingConfig = loadTracingConfig(l, cfg)
	if err = validateTracingConfig(cfg.TracingConfig); err != nil {
		l.Warn("Некорректная Tracing конфигурация, трейсинг отключён",
			slog.String("error", err.Error()),
		)
		cfg.TracingConfig = getDefaultTracingConfig()
	}

	cfg.AlertingConfig = loadAlertingConfig(l, cfg)
	if err = validateAlertingConfig(cfg.AlertingConfig); err != nil {
		l.Warn("Некорректная Alerting конфигурация, алертинг отключён",
			slog.String("error", err.Error()),
		)
		cfg.AlertingConfig = getDefaultAlertingConfig()
	}

	return cfg, nil
}

// loadAppConfig читает и разбирает YAML файл.
// Явно указанный, но нечитаемый файл считается ошибкой загрузки.
func loadAppConfig(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrConfigLoad,
			fmt.Sprintf("не удалось прочитать файл конфигурации %s", path), err)
	}
	var app AppConfig
	if err := yaml.Unmarshal(data, &app); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrConfigParse,
			fmt.Sprintf("не удалось разобрать файл конфигурации %s", path), err)
	}
	return &app, nil
}
