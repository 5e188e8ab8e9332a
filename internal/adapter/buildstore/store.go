// Package buildstore хранит завершённые сборки и отвечает на запросы
// "ближайшая предыдущая сборка job'а с условием", из которых строятся
// ссылки previousBuiltBuild/previousSuccessfulBuild/previousNotFailedBuild.
//
// Реализации: MemoryStore (ограниченная история в памяти) и MSSQLStore.
package buildstore

import (
	"context"
	"errors"
	"strings"

	"github.com/Kargones/ci-telemetry/internal/entity/build"
	"github.com/Kargones/ci-telemetry/internal/pkg/tags"
)

// Ошибки хранилища.
var (
	ErrInvalidEntry  = errors.New("buildstore: job name and positive build number are required")
	ErrNotConnected  = errors.New("buildstore: connection not established")
	ErrServerMissing = errors.New("buildstore: server is required")
	ErrInvalidPort   = errors.New("buildstore: port must be between 1 and 65535")
)

// Entry — сохранённая сборка.
type Entry struct {
	Job        string
	Number     int
	StartedAt  int64 // unix ms
	DurationMs int64
	Result     build.Result
	Hostname   string
	Tags       tags.Set
}

// Validate проверяет обязательные поля.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.Job) == "" || e.Number <= 0 {
		return ErrInvalidEntry
	}
	return nil
}

// Filter — условие поиска предыдущей сборки.
type Filter int

const (
	// FilterBuilt — сборка действительно выполнялась (не NOT_BUILT).
	FilterBuilt Filter = iota
	// FilterSuccessful — результат SUCCESS.
	FilterSuccessful
	// FilterNotFailed — завершена и результат не FAILURE.
	FilterNotFailed
)

// Matches проверяет результат сборки на соответствие фильтру.
func (f Filter) Matches(r build.Result) bool {
	switch f {
	case FilterBuilt:
		return r.Built()
	case FilterSuccessful:
		return r == build.ResultSuccess
	case FilterNotFailed:
		return r.NotFailed()
	default:
		return false
	}
}

// String возвращает имя фильтра для логов.
func (f Filter) String() string {
	switch f {
	case FilterBuilt:
		return "built"
	case FilterSuccessful:
		return "successful"
	case FilterNotFailed:
		return "not_failed"
	default:
		return "unknown"
	}
}

// Store — хранилище истории сборок.
type Store interface {
	// Save сохраняет сборку; повторное сохранение того же номера перезаписывает запись.
	Save(ctx context.Context, e Entry) error
	// Previous возвращает ближайшую сборку job с номером меньше before,
	// удовлетворяющую filter. found=false, если такой нет.
	Previous(ctx context.Context, job string, before int, filter Filter) (e Entry, found bool, err error)
	// Close освобождает ресурсы.
	Close() error
}
