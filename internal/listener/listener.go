// Package listener преобразует уведомления хоста CI (сборки, SCM, узлы,
// безопасность, изменения конфигурации) в события, метрики и service checks.
//
// Listener не хранит состояния между вызовами и безопасен для параллельного
// использования: хост вызывает его из своих рабочих потоков.
package listener

import (
	"github.com/Kargones/ci-telemetry/internal/history"
	"github.com/Kargones/ci-telemetry/internal/pkg/logging"
	"github.com/Kargones/ci-telemetry/internal/pkg/tags"
	"github.com/Kargones/ci-telemetry/internal/telemetry"
)

// Source — источник актуального клиента и глобальных тегов (telemetry.Factory).
type Source interface {
	telemetry.ClientSource
	GlobalTags() tags.Set
}

// Listener отправляет телеметрию по уведомлениям хоста.
type Listener struct {
	source  Source
	history *history.Publisher
	logger  logging.Logger
}

// New создаёт Listener.
func New(source Source, logger logging.Logger) *Listener {
	return &Listener{
		source:  source,
		history: history.NewPublisher(logger),
		logger:  logging.Component(logger, "listener"),
	}
}

// client возвращает клиент, выбранный по текущей конфигурации.
func (l *Listener) client() telemetry.Client {
	return l.source.Current()
}

// withGlobals объединяет t с глобальными тегами конфигурации.
func (l *Listener) withGlobals(t tags.Set) tags.Set {
	return l.source.GlobalTags().Merge(t)
}

// userOrAnonymous возвращает имя пользователя для заголовков событий.
func userOrAnonymous(user string) string {
	if user == "" {
		return "anonymous"
	}
	return user
}
