package di

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/ci-telemetry/internal/adapter/buildstore"
	"github.com/Kargones/ci-telemetry/internal/config"
	"github.com/Kargones/ci-telemetry/internal/listener"
	"github.com/Kargones/ci-telemetry/internal/pkg/alerting"
	"github.com/Kargones/ci-telemetry/internal/pkg/logging"
	"github.com/Kargones/ci-telemetry/internal/pkg/metrics"
	"github.com/Kargones/ci-telemetry/internal/telemetry"
)

// agentConfig — минимальная конфигурация без сетевого I/O при инициализации:
// agent backend подключается лениво.
func agentConfig() *config.Config {
	return &config.Config{
		TelemetryConfig: &config.TelemetryConfig{
			Backend:       telemetry.BackendAgent,
			AgentHost:     "127.0.0.1",
			AgentPort:     8125,
			Hostname:      "ci-master",
			GlobalTags:    []string{"env:test"},
			FlushInterval: 10 * time.Second,
		},
		LoggingConfig: &config.LoggingConfig{
			Level:  "debug",
			Format: "text",
		},
		IngestConfig: &config.IngestConfig{
			ListenAddr:         "127.0.0.1:0",
			MaxBodyBytes:       1 << 20,
			ReadTimeout:        time.Second,
			WriteTimeout:       time.Second,
			ShutdownTimeout:    time.Second,
			HostStatusInterval: 30 * time.Second,
		},
		StoreConfig: &config.StoreConfig{
			Driver:      config.StoreDriverMemory,
			MemoryLimit: 10,
			CacheSize:   16,
		},
	}
}

func TestInitializeApp_FullPipeline(t *testing.T) {
	// Arrange
	cfg := agentConfig()

	// Act
	app, err := InitializeApp(cfg)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Same(t, cfg, app.Config)
	assert.NotNil(t, app.Logger)
	assert.IsType(t, &alerting.NopAlerter{}, app.Alerter)
	assert.IsType(t, &metrics.NopCollector{}, app.MetricsCollector)
	assert.NotNil(t, app.TracerShutdown)
	assert.IsType(t, &buildstore.MemoryStore{}, app.Store)
	assert.NotNil(t, app.Listener)
	assert.NotNil(t, app.Server)

	assert.IsType(t, &telemetry.AgentClient{}, app.Factory.Current())
	assert.Equal(t, "ci-master", app.Factory.Hostname())
	assert.True(t, app.Factory.GlobalTags().Contains("env:test"))
	assert.Equal(t, 10*time.Second, app.Flusher.Interval())
}

func TestApp_StartAndShutdown(t *testing.T) {
	app, err := InitializeApp(agentConfig())
	require.NoError(t, err)

	require.NoError(t, app.Start())
	assert.ElementsMatch(t,
		[]string{telemetry.FlushJobName, listener.HostStatusJobName},
		app.Scheduler.Jobs())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, app.Shutdown(ctx))
}

func TestInitializeApp_NilConfig(t *testing.T) {
	app, err := InitializeApp(nil)

	assert.ErrorIs(t, err, ErrNilConfig)
	assert.Nil(t, app)
}

func TestInitializeApp_InvalidTelemetry(t *testing.T) {
	cfg := agentConfig()
	cfg.TelemetryConfig.Backend = telemetry.BackendHTTP
	cfg.TelemetryConfig.APIURL = telemetry.DefaultAPIURL

	_, err := InitializeApp(cfg)

	assert.ErrorIs(t, err, telemetry.ErrAPIKeyRequired)
}

func TestProvideLogger_WithNilConfig(t *testing.T) {
	logger := ProvideLogger(nil)

	require.NotNil(t, logger)
	assert.NotPanics(t, func() { logger.Info("тест") })
}

func TestProvideAlerter(t *testing.T) {
	logger := logging.NewNopLogger()

	assert.IsType(t, &alerting.NopAlerter{}, ProvideAlerter(nil, logger))

	cfg := &config.Config{AlertingConfig: &config.AlertingConfig{
		Enabled: true,
		Webhook: config.WebhookChannelConfig{Enabled: true, URLs: []string{"ftp://bad"}},
	}}
	assert.IsType(t, &alerting.NopAlerter{}, ProvideAlerter(cfg, logger), "ошибка конфигурации даёт NopAlerter")

	cfg.AlertingConfig.Webhook.URLs = []string{"https://hooks.example.com/ci"}
	assert.IsType(t, &alerting.WebhookAlerter{}, ProvideAlerter(cfg, logger))
}

func TestProvideMetricsCollector(t *testing.T) {
	logger := logging.NewNopLogger()

	assert.IsType(t, &metrics.NopCollector{}, ProvideMetricsCollector(nil, logger))

	cfg := &config.Config{MetricsConfig: &config.MetricsConfig{
		Enabled: true,
		JobName: "ci-telemetry",
		Timeout: time.Second,
	}}
	assert.IsType(t, &metrics.PrometheusCollector{}, ProvideMetricsCollector(cfg, logger))
}

func TestProvideTracerProvider_Disabled(t *testing.T) {
	shutdown := ProvideTracerProvider(&config.Config{TracingConfig: &config.TracingConfig{}}, logging.NewNopLogger())

	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestProvideBuildStore(t *testing.T) {
	logger := logging.NewNopLogger()

	store, err := ProvideBuildStore(nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &buildstore.MemoryStore{}, store)

	cfg := &config.Config{StoreConfig: &config.StoreConfig{Driver: config.StoreDriverMSSQL}}
	_, err = ProvideBuildStore(cfg, logger)
	assert.ErrorIs(t, err, buildstore.ErrServerMissing)
}
