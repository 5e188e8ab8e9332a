package config

import (
	"log/slog"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/Kargones/ci-telemetry/internal/pkg/alerting"
)

// AlertingConfig содержит настройки для алертинга.
type AlertingConfig struct {
	// Enabled — включён ли алертинг (по умолчанию false).
	Enabled bool `yaml:"enabled" env:"CT_ALERTING_ENABLED" env-default:"false"`

	// RateLimitWindow — минимальный интервал между алертами одного типа.
	RateLimitWindow time.Duration `yaml:"rateLimitWindow" env:"CT_ALERTING_RATE_LIMIT_WINDOW" env-default:"15m"`

	// Webhook — конфигурация webhook канала.
	Webhook WebhookChannelConfig `yaml:"webhook"`
}

// WebhookChannelConfig содержит настройки webhook канала.
type WebhookChannelConfig struct {
	// Enabled — включён ли webhook канал.
	Enabled bool `yaml:"enabled" env:"CT_ALERTING_WEBHOOK_ENABLED" env-default:"false"`

	// URLs — список URL для отправки webhook.
	// Алерт отправляется на все указанные URL.
	URLs []string `yaml:"urls" env:"CT_ALERTING_WEBHOOK_URLS" env-separator:","`

	// Headers — дополнительные HTTP заголовки (Authorization, X-Api-Key).
	// Только из YAML.
	Headers map[string]string `yaml:"headers"`

	// Timeout — таймаут HTTP запросов.
	// По умолчанию: 10 секунд.
	Timeout time.Duration `yaml:"timeout" env:"CT_ALERTING_WEBHOOK_TIMEOUT" env-default:"10s"`

	// MaxRetries — максимальное количество повторных попыток.
	// По умолчанию: 3.
	MaxRetries int `yaml:"maxRetries" env:"CT_ALERTING_WEBHOOK_MAX_RETRIES" env-default:"3"`

	// RetryBackoff — начальная пауза между попытками.
	RetryBackoff time.Duration `yaml:"retryBackoff" env:"CT_ALERTING_WEBHOOK_RETRY_BACKOFF" env-default:"1s"`
}

// getDefaultAlertingConfig возвращает конфигурацию алертинга по умолчанию.
// Алертинг отключён по умолчанию.
func getDefaultAlertingConfig() *AlertingConfig {
	return &AlertingConfig{
		Enabled:         false,
		RateLimitWindow: alerting.DefaultRateLimitWindow,
		Webhook: WebhookChannelConfig{
			Enabled:      false,
			Timeout:      alerting.DefaultWebhookTimeout,
			MaxRetries:   alerting.DefaultMaxRetries,
			RetryBackoff: alerting.DefaultRetryBackoff,
		},
	}
}

// loadAlertingConfig загружает конфигурацию алертинга из AppConfig, переменных окружения или устанавливает значения по умолчанию.
// Переменные окружения CT_ALERTING_* переопределяют значения из AppConfig.
func loadAlertingConfig(l *slog.Logger, cfg *Config) *AlertingConfig {
	if cfg.AppConfig != nil && cfg.AppConfig.Alerting != nil {
		alertingConfig := cfg.AppConfig.Alerting
		if err := cleanenv.ReadEnv(alertingConfig); err != nil {
			l.Warn("Ошибка загрузки Alerting конфигурации из переменных окружения",
				slog.String("error", err.Error()),
			)
		}
		l.Info("Alerting конфигурация загружена из AppConfig",
			slog.Bool("enabled", alertingConfig.Enabled),
			slog.Bool("webhook_enabled", alertingConfig.Webhook.Enabled),
			slog.Int("webhook_urls", len(alertingConfig.Webhook.URLs)),
		)
		return alertingConfig
	}

	alertingConfig := getDefaultAlertingConfig()

	if err := cleanenv.ReadEnv(alertingConfig); err != nil {
		l.Warn("Ошибка загрузки Alerting конфигурации из переменных окружения",
			slog.String("error", err.Error()),
		)
	}

	l.Debug("Alerting конфигурация: используются значения по умолчанию",
		slog.Bool("enabled", alertingConfig.Enabled),
	)

	return alertingConfig
}

// validateAlertingConfig проверяет секцию правилами пакета alerting
// (формат URL, заголовки без CR/LF).
func validateAlertingConfig(ac *AlertingConfig) error {
	c := ac.ToAlerting()
	return c.Validate()
}

// ToAlerting конвертирует секцию в alerting.Config.
func (ac *AlertingConfig) ToAlerting() alerting.Config {
	return alerting.Config{
		Enabled:         ac.Enabled,
		RateLimitWindow: ac.RateLimitWindow,
		Webhook: alerting.WebhookConfig{
			Enabled:      ac.Webhook.Enabled,
			URLs:         append([]string(nil), ac.Webhook.URLs...),
			Headers:      ac.Webhook.Headers,
			Timeout:      ac.Webhook.Timeout,
			MaxRetries:   ac.Webhook.MaxRetries,
			RetryBackoff: ac.Webhook.RetryBackoff,
		},
	}
}
