package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/Kargones/ci-telemetry/internal/ingest"
	"github.com/Kargones/ci-telemetry/internal/listener"
	"github.com/Kargones/ci-telemetry/internal/scheduler"
)

// IngestConfig содержит настройки HTTP API приёма уведомлений от CI хоста.
type IngestConfig struct {
	// ListenAddr — адрес HTTP сервера (host:port).
	ListenAddr string `yaml:"listenAddr" env:"CT_INGEST_LISTEN_ADDR" env-default:"127.0.0.1:8127"`

	// MaxBodyBytes — предельный размер тела запроса.
	MaxBodyBytes int64 `yaml:"maxBodyBytes" env:"CT_INGEST_MAX_BODY_BYTES" env-default:"1048576"`

	ReadTimeout     time.Duration `yaml:"readTimeout" env:"CT_INGEST_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" env:"CT_INGEST_WRITE_TIMEOUT" env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"CT_INGEST_SHUTDOWN_TIMEOUT" env-default:"10s"`

	// HostStatusInterval — период публикации состояния хоста (очередь, executors, узлы).
	HostStatusInterval time.Duration `yaml:"hostStatusInterval" env:"CT_HOST_STATUS_INTERVAL" env-default:"10s"`
}

func getDefaultIngestConfig() *IngestConfig {
	d := ingest.DefaultConfig()
	return &IngestConfig{
		ListenAddr:         d.ListenAddr,
		MaxBodyBytes:       d.MaxBodyBytes,
		ReadTimeout:        d.ReadTimeout,
		WriteTimeout:       d.WriteTimeout,
		ShutdownTimeout:    d.ShutdownTimeout,
		HostStatusInterval: listener.DefaultHostStatusInterval,
	}
}

// loadIngestConfig загружает секцию ingest из AppConfig или значений по умолчанию.
// Переменные окружения CT_INGEST_* переопределяют оба источника.
func loadIngestConfig(l *slog.Logger, cfg *Config) *IngestConfig {
	ic := getDefaultIngestConfig()
	if cfg.AppConfig != nil && cfg.AppConfig.Ingest != nil {
		ic = cfg.AppConfig.Ingest
	}
	if err := cleanenv.ReadEnv(ic); err != nil {
		l.Warn("Ошибка загрузки Ingest конфигурации из переменных окружения",
			slog.String("error", err.Error()),
		)
	}
	l.Debug("Ingest конфигурация",
		slog.String("listen_addr", ic.ListenAddr),
		slog.Duration("host_status_interval", ic.HostStatusInterval),
	)
	return ic
}

func validateIngestConfig(ic *IngestConfig) error {
	c := ic.ToIngest()
	if err := c.Validate(); err != nil {
		return err
	}
	if ic.HostStatusInterval < scheduler.MinInterval {
		return fmt.Errorf("ingest: hostStatusInterval должен быть не меньше %s", scheduler.MinInterval)
	}
	return nil
}

// ToIngest конвертирует секцию в ingest.Config.
func (ic *IngestConfig) ToIngest() ingest.Config {
	return ingest.Config{
		ListenAddr:      ic.ListenAddr,
		MaxBodyBytes:    ic.MaxBodyBytes,
		ReadTimeout:     ic.ReadTimeout,
		WriteTimeout:    ic.WriteTimeout,
		ShutdownTimeout: ic.ShutdownTimeout,
	}
}
