// Package logging — структурированное логирование сервиса поверх log/slog.
// Логи пишутся в stderr или в файл с ротацией, stdout занят выводом команд.
package logging

import "log/slog"

// Logger — структурированный логгер с key-value атрибутами:
//
//	logger.Info("счётчики отправлены", "keys", n, "backend", "agent")
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	// Warn — для ошибок, после которых работа продолжается: неудачная
	// отправка, fallback hostname, отклонённая секция конфигурации.
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// ComponentKey — имя атрибута, которым помечаются записи компонента.
const ComponentKey = "component"

// Component возвращает logger с атрибутом component=<name>.
// При nil logger возвращает NopLogger, чтобы конструкторы не проверяли nil.
func Component(logger Logger, name string) Logger {
	if logger == nil {
		return NewNopLogger()
	}
	return logger.With(ComponentKey, name)
}

// FromSlog оборачивает *slog.Logger. nil означает slog.Default().
func FromSlog(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return slogLogger{l}
}

type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

func (s slogLogger) With(args ...any) Logger {
	return slogLogger{s.l.With(args...)}
}

// NewNopLogger возвращает Logger, который ничего не пишет.
func NewNopLogger() Logger {
	return slogLogger{slog.New(slog.DiscardHandler)}
}

