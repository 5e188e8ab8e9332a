package metrics

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Kargones/ci-telemetry/internal/pkg/logging"
	"github.com/Kargones/ci-telemetry/internal/pkg/urlutil"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "ci_telemetry"

// PrometheusCollector реализует Collector с Prometheus метриками.
type PrometheusCollector struct {
	config   Config
	logger   logging.Logger
	registry *prometheus.Registry

	emissions     *prometheus.CounterVec
	flushKeys     prometheus.Histogram
	flushDuration prometheus.Histogram
	ingest        *prometheus.HistogramVec

	// Instance label (hostname)
	instance string
}

// NewPrometheusCollector создаёт PrometheusCollector.
// Регистрирует метрики:
//   - ci_telemetry_emissions_total{backend,kind,result} (counter)
//   - ci_telemetry_flush_keys (histogram)
//   - ci_telemetry_flush_duration_seconds (histogram)
//   - ci_telemetry_ingest_request_duration_seconds{route,code} (histogram)
func NewPrometheusCollector(config Config, logger logging.Logger) (*PrometheusCollector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	logger = logging.Component(logger, "metrics")

	instance := config.InstanceLabel
	if instance == "" {
		hostname, err := os.Hostname()
		if err != nil {
			logger.Warn("не удалось получить hostname для metrics instance label, используется 'unknown'",
				"error", err.Error())
			hostname = "unknown"
		}
		instance = hostname
	}

	emissions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emissions_total",
			Help:      "Telemetry emissions by backend, kind and result",
		},
		[]string{"backend", "kind", "result"},
	)

	flushKeys := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "flush_keys",
		Help:      "Number of counter keys drained per flush",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	})

	flushDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "flush_duration_seconds",
		Help:      "Duration of a counter flush in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})

	ingest := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_request_duration_seconds",
			Help:      "Duration of ingest API requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "code"},
	)

	// Register вместо MustRegister: ошибка возможна только при дублировании имён.
	registry := prometheus.NewRegistry()
	collectors := []prometheus.Collector{emissions, flushKeys, flushDuration, ingest}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("ошибка регистрации метрики: %w", err)
		}
	}

	return &PrometheusCollector{
		config:        config,
		logger:        logger,
		registry:      registry,
		emissions:     emissions,
		flushKeys:     flushKeys,
		flushDuration: flushDuration,
		ingest:        ingest,
		instance:      instance,
	}, nil
}

// maxLabelLength — максимальная длина значения label для защиты от cardinality explosion.
const maxLabelLength = 128

// sanitizeLabel обрезает значение label до допустимой длины и удаляет
// контрольные символы, которые могут нарушить Prometheus text format.
// Обрезка выполняется по рунам для корректной работы с UTF-8.
func sanitizeLabel(value string) string {
	clean := strings.Map(func(r rune) rune {
		if r < 0x20 {
			return '_'
		}
		return r
	}, value)

	runes := []rune(clean)
	if len(runes) > maxLabelLength {
		return string(runes[:maxLabelLength])
	}
	return clean
}

// RecordEmission учитывает одну попытку отправки.
func (c *PrometheusCollector) RecordEmission(backend, kind string, success bool) {
	result := ResultOK
	if !success {
		result = ResultError
	}
	c.emissions.WithLabelValues(sanitizeLabel(backend), sanitizeLabel(kind), result).Inc()
}

// RecordFlush учитывает один сброс счётчиков.
func (c *PrometheusCollector) RecordFlush(keys int, duration time.Duration) {
	c.flushKeys.Observe(float64(keys))
	c.flushDuration.Observe(duration.Seconds())
}

// RecordIngest учитывает запрос к ingest API. route содержит шаблон маршрута, а не фактический путь.
func (c *PrometheusCollector) RecordIngest(route string, status int, duration time.Duration) {
	c.ingest.WithLabelValues(sanitizeLabel(route), strconv.Itoa(status)).Observe(duration.Seconds())
}

// Handler возвращает promhttp handler для собственного registry.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Push отправляет метрики в Pushgateway.
// Возвращает nil даже при ошибке, ошибки логируются.
func (c *PrometheusCollector) Push(ctx context.Context) error {
	if c.config.PushgatewayURL == "" {
		c.logger.Debug("metrics: pushgateway URL not configured, skipping push")
		return nil
	}

	select {
	case <-ctx.Done():
		c.logger.Debug("metrics push отменён")
		return nil
	default:
	}

	pusher := push.New(c.config.PushgatewayURL, c.config.JobName).
		Gatherer(c.registry).
		Grouping("instance", c.instance)

	pushCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if err := pusher.PushContext(pushCtx); err != nil {
		c.logger.Error("ошибка отправки метрик в Pushgateway",
			"error", err.Error(),
			"url", urlutil.MaskURL(c.config.PushgatewayURL),
			"job", c.config.JobName,
		)
		return nil
	}

	c.logger.Info("метрики отправлены в Pushgateway",
		"url", urlutil.MaskURL(c.config.PushgatewayURL),
		"job", c.config.JobName,
		"instance", c.instance,
	)
	return nil
}

// Registry возвращает внутренний registry (используется в тестах).
func (c *PrometheusCollector) Registry() *prometheus.Registry {
	return c.registry
}
