package tracing

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
)

// ErrInvalidConfig оборачивает все ошибки валидации Config.
var ErrInvalidConfig = errors.New("tracing: некорректная конфигурация")

// Config содержит настройки экспорта спанов.
type Config struct {
	Enabled bool

	// Endpoint — OTLP HTTP endpoint вида http://collector:4318. Путь, если
	// указан, заменяет стандартный /v1/traces.
	Endpoint string

	ServiceName string
	Version     string
	Environment string

	// Insecure отключает TLS. Схема http в Endpoint включает его автоматически.
	Insecure bool

	Timeout time.Duration

	// SamplingRate — доля сэмплируемых корневых спанов, от 0 до 1.
	SamplingRate float64
}

// DefaultConfig возвращает конфигурацию по умолчанию (трейсинг выключен).
func DefaultConfig() Config {
	return Config{
		ServiceName:  "ci-telemetry",
		Environment:  "production",
		Timeout:      5 * time.Second,
		SamplingRate: 1.0,
	}
}

// Validate проверяет конфигурацию. Выключенный трейсинг всегда корректен.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if _, err := c.exporterOptions(); err != nil {
		return err
	}
	switch {
	case c.ServiceName == "":
		return fmt.Errorf("%w: не задано имя сервиса", ErrInvalidConfig)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout должен быть положительным, получено %s", ErrInvalidConfig, c.Timeout)
	case c.SamplingRate < 0 || c.SamplingRate > 1:
		return fmt.Errorf("%w: sampling rate должен быть от 0 до 1, получено %g", ErrInvalidConfig, c.SamplingRate)
	}
	return nil
}

// exporterOptions разбирает Endpoint в опции otlptracehttp: WithEndpoint
// принимает только host:port, путь передаётся отдельно.
func (c *Config) exporterOptions() ([]otlptracehttp.Option, error) {
	if c.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint обязателен когда трейсинг включён", ErrInvalidConfig)
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: endpoint %q должен быть URL с host", ErrInvalidConfig, c.Endpoint)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: неподдерживаемая схема endpoint %q", ErrInvalidConfig, u.Scheme)
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(u.Host),
		otlptracehttp.WithTimeout(c.Timeout),
	}
	if p := strings.TrimSuffix(u.Path, "/"); p != "" {
		opts = append(opts, otlptracehttp.WithURLPath(p))
	}
	if c.Insecure || u.Scheme == "http" {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts, nil
}
