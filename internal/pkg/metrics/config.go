package metrics

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// ErrInvalidConfig оборачивает все ошибки валидации Config.
var ErrInvalidConfig = errors.New("metrics: некорректная конфигурация")

// Config содержит настройки собственных метрик сервиса.
type Config struct {
	Enabled bool

	// PushgatewayURL включает push при остановке, например http://pushgateway:9091.
	// /metrics работает и без него.
	PushgatewayURL string

	// JobName группирует метрики в Pushgateway.
	JobName string

	// Timeout ограничивает запрос к Pushgateway.
	Timeout time.Duration

	// InstanceLabel переопределяет label instance. Пусто: hostname.
	InstanceLabel string
}

// Validate проверяет конфигурацию. Выключенные метрики всегда корректны.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.PushgatewayURL != "" {
		u, err := url.Parse(c.PushgatewayURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: pushgateway URL должен содержать схему и host", ErrInvalidConfig)
		}
	}
	if c.JobName == "" {
		return fmt.Errorf("%w: не задано имя job", ErrInvalidConfig)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout должен быть положительным, получено %s", ErrInvalidConfig, c.Timeout)
	}
	return nil
}

// DefaultConfig возвращает конфигурацию по умолчанию (метрики выключены).
func DefaultConfig() Config {
	return Config{
		JobName: "ci-telemetry",
		Timeout: 10 * time.Second,
	}
}
