package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/Kargones/ci-telemetry/internal/adapter/buildstore"
)

// Драйверы хранилища истории сборок.
const (
	StoreDriverMemory = "memory"
	StoreDriverMSSQL  = "mssql"
)

// StoreConfig содержит настройки хранилища истории сборок.
type StoreConfig struct {
	// Driver — "memory" или "mssql".
	Driver string `yaml:"driver" env:"CT_STORE_DRIVER" env-default:"memory"`

	// MemoryLimit — сколько последних сборок каждого job хранить в памяти.
	MemoryLimit int `yaml:"memoryLimit" env:"CT_STORE_MEMORY_LIMIT" env-default:"500"`

	// CacheSize — размер LRU кэша ссылок на предыдущие сборки.
	CacheSize int `yaml:"cacheSize" env:"CT_STORE_CACHE_SIZE" env-default:"4096"`

	MSSQL MSSQLStoreConfig `yaml:"mssql"`
}

// MSSQLStoreConfig содержит параметры подключения к SQL Server.
type MSSQLStoreConfig struct {
	Server   string `yaml:"server" env:"CT_STORE_MSSQL_SERVER"`
	Port     int    `yaml:"port" env:"CT_STORE_MSSQL_PORT" env-default:"1433"`
	User     string `yaml:"user" env:"CT_STORE_MSSQL_USER"`
	Password string `yaml:"password" env:"CT_STORE_MSSQL_PASSWORD"`
	Database string `yaml:"database" env:"CT_STORE_MSSQL_DATABASE" env-default:"ci_telemetry"`

	Timeout time.Duration `yaml:"timeout" env:"CT_STORE_MSSQL_TIMEOUT" env-default:"30s"`

	// DisableEncrypt отключает TLS. Выражено через отрицание, чтобы значение
	// false из YAML не перекрывалось env-default.
	DisableEncrypt bool `yaml:"disableEncrypt" env:"CT_STORE_MSSQL_DISABLE_ENCRYPT"`

	// EnsureSchema создаёт таблицу истории при старте, если её нет.
	EnsureSchema bool `yaml:"ensureSchema" env:"CT_STORE_MSSQL_ENSURE_SCHEMA"`
}

func getDefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		Driver:      StoreDriverMemory,
		MemoryLimit: buildstore.DefaultMemoryLimit,
		CacheSize:   buildstore.DefaultCacheSize,
		MSSQL: MSSQLStoreConfig{
			Port:     1433,
			Database: "ci_telemetry",
			Timeout:  30 * time.Second,
		},
	}
}

func loadStoreConfig(l *slog.Logger, cfg *Config) *StoreConfig {
	sc := getDefaultStoreConfig()
	if cfg.AppConfig != nil && cfg.AppConfig.Store != nil {
		sc = cfg.AppConfig.Store
	}
	if err := cleanenv.ReadEnv(sc); err != nil {
		l.Warn("Ошибка загрузки Store конфигурации из переменных окружения",
			slog.String("error", err.Error()),
		)
	}
	l.Debug("Store конфигурация",
		slog.String("driver", sc.Driver),
		slog.String("server", sc.MSSQL.Server),
	)
	return sc
}

func validateStoreConfig(sc *StoreConfig) error {
	switch sc.Driver {
	case StoreDriverMemory:
	case StoreDriverMSSQL:
		if sc.MSSQL.Server == "" {
			return errors.New("store: mssql.server обязателен при driver=mssql")
		}
		if sc.MSSQL.Port < 1 || sc.MSSQL.Port > 65535 {
			return fmt.Errorf("store: некорректный порт %d", sc.MSSQL.Port)
		}
	default:
		return fmt.Errorf("store: неизвестный driver %q", sc.Driver)
	}
	if sc.MemoryLimit <= 0 || sc.CacheSize <= 0 {
		return errors.New("store: memoryLimit и cacheSize должны быть положительными")
	}
	return nil
}

// MSSQLOptions конвертирует секцию mssql в параметры buildstore.
func (sc *StoreConfig) MSSQLOptions() buildstore.MSSQLOptions {
	return buildstore.MSSQLOptions{
		Server:   sc.MSSQL.Server,
		Port:     sc.MSSQL.Port,
		User:     sc.MSSQL.User,
		Password: sc.MSSQL.Password,
		Database: sc.MSSQL.Database,
		Timeout:  sc.MSSQL.Timeout,
	}.WithEncrypt(!sc.MSSQL.DisableEncrypt)
}
