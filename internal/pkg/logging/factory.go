package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Kargones/ci-telemetry/internal/constants"
)

// NewLogger создаёт Logger сервиса. Все записи получают атрибуты service и version.
// Ошибки настройки файла не фатальны: логи уходят в stderr с предупреждением.
func NewLogger(cfg Config) Logger {
	var w io.Writer = os.Stderr
	switch cfg.Output {
	case OutputFile:
		w = newRotatingWriter(cfg)
	case OutputStderr, "":
	default:
		bootstrapWarn("неизвестный logging output %q, логи пишутся в stderr", cfg.Output)
	}
	return NewLoggerWithWriter(cfg, w).With("service", constants.ServiceName, "version", constants.Version)
}

// NewLoggerWithWriter создаёт Logger, пишущий в w, без атрибутов сервиса.
func NewLoggerWithWriter(cfg Config, w io.Writer) Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if cfg.Format == FormatJSON {
		return FromSlog(slog.New(slog.NewJSONHandler(w, opts)))
	}
	return FromSlog(slog.New(slog.NewTextHandler(w, opts)))
}

// newRotatingWriter возвращает lumberjack writer, создавая директорию файла.
func newRotatingWriter(cfg Config) io.Writer {
	if cfg.FilePath == "" {
		bootstrapWarn("logging output=file без filePath, логи пишутся в stderr")
		return os.Stderr
	}
	if dir := filepath.Dir(cfg.FilePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			bootstrapWarn("не удалось создать директорию логов %q: %v, логи пишутся в stderr", dir, err)
			return os.Stderr
		}
	}

	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
}

// bootstrapWarn пишет в stderr до того, как logger создан.
func bootstrapWarn(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, "WARNING: "+format+"\n", args...)
}
