package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/ci-telemetry/internal/constants"
	"github.com/Kargones/ci-telemetry/internal/pkg/apperrors"
	"github.com/Kargones/ci-telemetry/internal/telemetry"
)

// isolateEnv снимает все CT_* переменные на время теста.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, value, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, constants.EnvPrefix) {
			continue
		}
		require.NoError(t, os.Unsetenv(key))
		t.Cleanup(func() { _ = os.Setenv(key, value) })
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ci-telemetry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolateEnv(t)
	t.Setenv("CT_API_KEY", "secret")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Nil(t, cfg.AppConfig)
	assert.Equal(t, telemetry.BackendHTTP, cfg.TelemetryConfig.Backend)
	assert.Equal(t, telemetry.DefaultAPIURL, cfg.TelemetryConfig.APIURL)
	assert.Equal(t, "secret", cfg.TelemetryConfig.APIKey)
	assert.Equal(t, 10*time.Second, cfg.TelemetryConfig.FlushInterval)
	assert.Equal(t, "127.0.0.1:8127", cfg.IngestConfig.ListenAddr)
	assert.Equal(t, 10*time.Second, cfg.IngestConfig.HostStatusInterval)
	assert.Equal(t, StoreDriverMemory, cfg.StoreConfig.Driver)
	assert.Equal(t, "info", cfg.LoggingConfig.Level)
	assert.False(t, cfg.MetricsConfig.Enabled)
	assert.False(t, cfg.TracingConfig.Enabled)
	assert.False(t, cfg.AlertingConfig.Enabled)
}

func TestLoad_MissingAPIKeyIsFatal(t *testing.T) {
	isolateEnv(t)

	_, err := Load(nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrConfigValidate, apperrors.CodeOf(err))
	assert.ErrorIs(t, err, telemetry.ErrAPIKeyRequired)
}

func TestLoad_InvalidEnvValue(t *testing.T) {
	isolateEnv(t)
	t.Setenv("CT_API_KEY", "secret")
	t.Setenv("CT_FLUSH_INTERVAL", "soon")

	_, err := Load(nil)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrConfigParse, apperrors.CodeOf(err))
}

func TestLoad_FromFileWithEnvOverride(t *testing.T) {
	isolateEnv(t)
	path := writeConfigFile(t, `
telemetry:
  backend: agent
  agentPort: 9125
  hostname: ci-master
  globalTags: ["env:prod", "team:ci"]
  flushInterval: 20s
ingest:
  listenAddr: ":9000"
  hostStatusInterval: 30s
store:
  driver: mssql
  mssql:
    server: sql.local
    user: ci
    password: p@ss
    disableEncrypt: true
logging:
  level: debug
  format: json
alerting:
  enabled: true
  webhook:
    enabled: true
    urls: ["https://hooks.example.com/ci"]
    headers:
      X-Api-Key: k
`)
	t.Setenv(constants.EnvConfigFile, path)
	t.Setenv("CT_AGENT_HOST", "agent.local")

	cfg, err := Load(nil)
	require.NoError(t, err)

	require.NotNil(t, cfg.AppConfig)
	assert.Equal(t, path, cfg.ConfigFile)

	tc := cfg.TelemetryConfig.ToTelemetry()
	assert.Equal(t, telemetry.BackendAgent, tc.Backend)
	assert.Equal(t, "agent.local:9125", tc.AgentAddress(), "env перекрывает файл")
	assert.Equal(t, "ci-master", tc.Hostname)
	assert.Equal(t, []string{"env:prod", "team:ci"}, tc.GlobalTags)
	assert.Equal(t, 20*time.Second, tc.FlushInterval)
	assert.Equal(t, telemetry.DefaultAPIURL, tc.APIURL, "пропущенные поля получают env-default")

	assert.Equal(t, ":9000", cfg.IngestConfig.ToIngest().ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.IngestConfig.HostStatusInterval)
	assert.Equal(t, int64(1<<20), cfg.IngestConfig.MaxBodyBytes)

	assert.Equal(t, StoreDriverMSSQL, cfg.StoreConfig.Driver)
	opts := cfg.StoreConfig.MSSQLOptions()
	assert.Equal(t, "sql.local", opts.Server)
	assert.Equal(t, 1433, opts.Port)
	assert.Equal(t, "ci_telemetry", opts.Database)
	assert.False(t, opts.Encrypt)

	lc := cfg.LoggingConfig.ToLogging()
	assert.Equal(t, "debug", lc.Level)
	assert.Equal(t, "json", lc.Format)
	assert.NotEmpty(t, lc.FilePath)

	ac := cfg.AlertingConfig.ToAlerting()
	assert.True(t, ac.Enabled)
	assert.Equal(t, []string{"https://hooks.example.com/ci"}, ac.Webhook.URLs)
	assert.Equal(t, "k", ac.Webhook.Headers["X-Api-Key"])
	assert.Equal(t, 15*time.Minute, ac.RateLimitWindow)
}

func TestLoad_InvalidOptionalSectionsFallBackToDefaults(t *testing.T) {
	isolateEnv(t)
	path := writeConfigFile(t, `
telemetry:
  apiKey: from-file
ingest:
  listenAddr: nope
store:
  driver: redis
logging:
  level: verbose
metrics:
  enabled: true
  pushgatewayUrl: "::bad"
tracing:
  enabled: true
alerting:
  enabled: true
  webhook:
    enabled: true
`)
	t.Setenv(constants.EnvConfigFile, path)

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.TelemetryConfig.APIKey)
	assert.Equal(t, getDefaultIngestConfig(), cfg.IngestConfig)
	assert.Equal(t, getDefaultStoreConfig(), cfg.StoreConfig)
	assert.Equal(t, getDefaultLoggingConfig(), cfg.LoggingConfig)
	assert.Equal(t, getDefaultMetricsConfig(), cfg.MetricsConfig)
	assert.Equal(t, getDefaultTracingConfig(), cfg.TracingConfig)
	assert.Equal(t, getDefaultAlertingConfig(), cfg.AlertingConfig)
}

func TestLoad_FileErrors(t *testing.T) {
	tests := []struct {
		name     string
		path     func(t *testing.T) string
		wantCode string
	}{
		{
			name:     "missing file",
			path:     func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.yaml") },
			wantCode: apperrors.ErrConfigLoad,
		},
		{
			name:     "malformed yaml",
			path:     func(t *testing.T) string { return writeConfigFile(t, "telemetry: [") },
			wantCode: apperrors.ErrConfigParse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			t.Setenv("CT_API_KEY", "secret")
			t.Setenv(constants.EnvConfigFile, tt.path(t))

			_, err := Load(nil)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
		})
	}
}

func TestValidateStoreConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(sc *StoreConfig)
		wantErr bool
	}{
		{name: "memory defaults", mutate: func(*StoreConfig) {}},
		{name: "mssql with server", mutate: func(sc *StoreConfig) {
			sc.Driver = StoreDriverMSSQL
			sc.MSSQL.Server = "db"
		}},
		{name: "mssql without server", mutate: func(sc *StoreConfig) { sc.Driver = StoreDriverMSSQL }, wantErr: true},
		{name: "mssql bad port", mutate: func(sc *StoreConfig) {
			sc.Driver = StoreDriverMSSQL
			sc.MSSQL.Server = "db"
			sc.MSSQL.Port = 70000
		}, wantErr: true},
		{name: "unknown driver", mutate: func(sc *StoreConfig) { sc.Driver = "redis" }, wantErr: true},
		{name: "zero cache", mutate: func(sc *StoreConfig) { sc.CacheSize = 0 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := getDefaultStoreConfig()
			tt.mutate(sc)
			err := validateStoreConfig(sc)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTelemetryConfig_ToTelemetryCopiesTags(t *testing.T) {
	tc := getDefaultTelemetryConfig()
	tc.GlobalTags = []string{"env:prod"}

	out := tc.ToTelemetry()
	tc.GlobalTags[0] = "env:dev"

	assert.Equal(t, []string{"env:prod"}, out.GlobalTags)
}

func TestIngestConfig_HostStatusIntervalTooSmall(t *testing.T) {
	ic := getDefaultIngestConfig()
	ic.HostStatusInterval = 100 * time.Millisecond

	assert.Error(t, validateIngestConfig(ic))
}
