package config

import (
	"log/slog"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/Kargones/ci-telemetry/internal/pkg/apperrors"
	"github.com/Kargones/ci-telemetry/internal/pkg/urlutil"
	"github.com/Kargones/ci-telemetry/internal/telemetry"
)

// TelemetryConfig содержит настройки доставки телеметрии.
type TelemetryConfig struct {
	// Backend — "http" (прямой API) или "agent" (локальный DogStatsD агент).
	Backend string `yaml:"backend" env:"CT_BACKEND" env-default:"http"`

	// APIURL — базовый URL API для http backend.
	APIURL string `yaml:"apiUrl" env:"CT_API_URL" env-default:"https://api.datadoghq.com/api/"`

	// APIKey — ключ API. Не логируется.
	APIKey string `yaml:"apiKey" env:"CT_API_KEY"`

	// HTTPTimeout — таймаут одного запроса к API.
	HTTPTimeout time.Duration `yaml:"httpTimeout" env:"CT_HTTP_TIMEOUT" env-default:"60s"`

	// AgentHost, AgentPort: адрес агента для agent backend.
	AgentHost string `yaml:"agentHost" env:"CT_AGENT_HOST" env-default:"localhost"`
	AgentPort int    `yaml:"agentPort" env:"CT_AGENT_PORT" env-default:"8125"`

	// AgentSocket — путь к unix сокету агента, имеет приоритет над host/port.
	AgentSocket string `yaml:"agentSocket" env:"CT_AGENT_SOCKET"`

	// Hostname — имя хоста в телеметрии. Пусто — системное имя.
	Hostname string `yaml:"hostname" env:"CT_HOSTNAME"`

	// GlobalTags — теги всех отправок, в env через запятую.
	GlobalTags []string `yaml:"globalTags" env:"CT_GLOBAL_TAGS" env-separator:","`

	// FlushInterval — период сброса счётчиков.
	FlushInterval time.Duration `yaml:"flushInterval" env:"CT_FLUSH_INTERVAL" env-default:"10s"`
}

// getDefaultTelemetryConfig возвращает конфигурацию телеметрии по умолчанию.
// Значения совпадают с telemetry.DefaultConfig().
func getDefaultTelemetryConfig() *TelemetryConfig {
	d := telemetry.DefaultConfig()
	return &TelemetryConfig{
		Backend:       d.Backend,
		APIURL:        d.APIURL,
		HTTPTimeout:   d.HTTPTimeout,
		AgentHost:     d.AgentHost,
		AgentPort:     d.AgentPort,
		FlushInterval: d.FlushInterval,
	}
}

// loadTelemetryConfig загружает секцию telemetry. В отличие от остальных секций
// ошибки здесь не заменяются значениями по умолчанию: без рабочего backend'а
// запускаться нет смысла.
func loadTelemetryConfig(l *slog.Logger, cfg *Config) (*TelemetryConfig, error) {
	tc := getDefaultTelemetryConfig()
	source := "defaults"
	if cfg.AppConfig != nil && cfg.AppConfig.Telemetry != nil {
		tc = cfg.AppConfig.Telemetry
		source = "file"
	}

	if err := cleanenv.ReadEnv(tc); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrConfigParse,
			"некорректные переменные окружения CT_* телеметрии", err)
	}
	if err := validateTelemetryConfig(tc); err != nil {
		return nil, err
	}

	l.Info("Telemetry конфигурация загружена",
		slog.String("source", source),
		slog.String("backend", tc.Backend),
		slog.String("api_url", urlutil.MaskURL(tc.APIURL)),
		slog.Bool("api_key_set", tc.APIKey != ""),
		slog.Duration("flush_interval", tc.FlushInterval),
	)
	return tc, nil
}

// validateTelemetryConfig проверяет секцию правилами пакета telemetry.
func validateTelemetryConfig(tc *TelemetryConfig) error {
	c := tc.ToTelemetry()
	if err := c.Validate(); err != nil {
		return apperrors.NewAppError(apperrors.ErrConfigValidate,
			"некорректная конфигурация телеметрии", err)
	}
	return nil
}

// ToTelemetry конвертирует секцию в telemetry.Config.
func (tc *TelemetryConfig) ToTelemetry() telemetry.Config {
	return telemetry.Config{
		Backend:       tc.Backend,
		APIURL:        tc.APIURL,
		APIKey:        tc.APIKey,
		HTTPTimeout:   tc.HTTPTimeout,
		AgentHost:     tc.AgentHost,
		AgentPort:     tc.AgentPort,
		AgentSocket:   tc.AgentSocket,
		Hostname:      tc.Hostname,
		GlobalTags:    append([]string(nil), tc.GlobalTags...),
		FlushInterval: tc.FlushInterval,
	}
}
