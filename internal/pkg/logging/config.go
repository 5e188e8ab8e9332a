package logging

import (
	"fmt"
	"log/slog"
)

// Форматы, уровни и назначения вывода.
const (
	FormatJSON = "json"
	FormatText = "text"

	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"

	OutputStderr = "stderr"
	OutputFile   = "file"
)

// Значения Config по умолчанию. Секция logging конфигурации берёт их отсюда.
const (
	DefaultLevel      = LevelInfo
	DefaultFormat     = FormatText
	DefaultOutput     = OutputStderr
	DefaultFilePath   = "/var/log/ci-telemetry.log"
	DefaultMaxSize    = 100 // MB
	DefaultMaxBackups = 3
	DefaultMaxAge     = 7 // дней
	DefaultCompress   = true
)

// Config содержит настройки логирования. Пустые поля означают значения по умолчанию.
type Config struct {
	Format string
	Level  string
	Output string

	// FilePath и параметры ротации используются только при Output=file.
	FilePath   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// DefaultConfig возвращает Config со значениями по умолчанию.
func DefaultConfig() Config {
	return Config{
		Level:      DefaultLevel,
		Format:     DefaultFormat,
		Output:     DefaultOutput,
		FilePath:   DefaultFilePath,
		MaxSize:    DefaultMaxSize,
		MaxBackups: DefaultMaxBackups,
		MaxAge:     DefaultMaxAge,
		Compress:   DefaultCompress,
	}
}

// Validate проверяет значения полей.
func (c Config) Validate() error {
	if c.Level != "" {
		if _, ok := lookupLevel(c.Level); !ok {
			return fmt.Errorf("недопустимый logging level %q", c.Level)
		}
	}
	switch c.Format {
	case "", FormatJSON, FormatText:
	default:
		return fmt.Errorf("недопустимый logging format %q", c.Format)
	}
	switch c.Output {
	case "", OutputStderr:
	case OutputFile:
		if c.FilePath == "" {
			return fmt.Errorf("logging output=file требует filePath")
		}
	default:
		return fmt.Errorf("недопустимый logging output %q", c.Output)
	}
	return nil
}

// ParseLevel переводит уровень в slog.Level. Неизвестный уровень даёт Info.
func ParseLevel(level string) slog.Level {
	l, _ := lookupLevel(level)
	return l
}

func lookupLevel(level string) (slog.Level, bool) {
	switch level {
	case LevelDebug:
		return slog.LevelDebug, true
	case LevelInfo:
		return slog.LevelInfo, true
	case LevelWarn:
		return slog.LevelWarn, true
	case LevelError:
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
