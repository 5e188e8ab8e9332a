// Package alerting отправляет операционные алерты самого сервиса, например
// об отклонённом backend'ом API ключе. Алерты одного кода ограничиваются
// окном RateLimitWindow, доставка идёт через webhook.
package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Kargones/ci-telemetry/internal/pkg/logging"
)

// DefaultRateLimitWindow — интервал между алертами одного кода по умолчанию.
const DefaultRateLimitWindow = 15 * time.Minute

// ErrInvalidConfig оборачивает ошибки валидации Config и WebhookConfig.
var ErrInvalidConfig = errors.New("alerting: некорректная конфигурация")

// Severity — уровень алерта, передаётся в payload как есть.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert описывает один алерт. Message и Backend не должны содержать секретов.
type Alert struct {
	// ErrorCode — код apperrors, по нему работает rate limiting.
	ErrorCode string
	Message   string
	TraceID   string
	// Timestamp по умолчанию равен моменту отправки.
	Timestamp time.Time
	Component string
	Backend   string
	Severity  Severity
}

// Alerter доставляет алерты. Send возвращает nil даже при ошибке доставки:
// ошибки логируются и не влияют на вызывающий код.
type Alerter interface {
	Send(ctx context.Context, alert Alert) error
}

// NopAlerter отбрасывает алерты. Используется при выключенном алертинге.
type NopAlerter struct{}

func NewNopAlerter() Alerter {
	return &NopAlerter{}
}

func (*NopAlerter) Send(context.Context, Alert) error {
	return nil
}

// Config содержит настройки алертинга.
type Config struct {
	Enabled bool

	// RateLimitWindow — минимальный интервал между алертами одного ErrorCode.
	// Ноль заменяется DefaultRateLimitWindow.
	RateLimitWindow time.Duration

	Webhook WebhookConfig
}

// DefaultConfig возвращает выключенный алертинг с настройками webhook по умолчанию.
func DefaultConfig() Config {
	return Config{
		RateLimitWindow: DefaultRateLimitWindow,
		Webhook: WebhookConfig{
			Timeout:      DefaultWebhookTimeout,
			MaxRetries:   DefaultMaxRetries,
			RetryBackoff: DefaultRetryBackoff,
		},
	}
}

// Validate проверяет конфигурацию. Выключенный алертинг всегда корректен.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.RateLimitWindow < 0 {
		return fmt.Errorf("%w: отрицательное окно rate limiting %s", ErrInvalidConfig, c.RateLimitWindow)
	}
	return c.Webhook.Validate()
}

// NewAlerter возвращает WebhookAlerter с rate limiting или NopAlerter, если
// алертинг или webhook канал выключены.
func NewAlerter(cfg Config, logger logging.Logger) (Alerter, error) {
	logger = logging.Component(logger, "alerting")

	if !cfg.Enabled {
		return NewNopAlerter(), nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Webhook.Enabled {
		logger.Warn("алертинг включён без webhook канала, алерты не отправляются")
		return NewNopAlerter(), nil
	}

	window := cfg.RateLimitWindow
	if window == 0 {
		window = DefaultRateLimitWindow
	}
	return NewWebhookAlerter(cfg.Webhook, NewRateLimiter(window), logger)
}
