package listener

import (
	"context"
	"fmt"

	"github.com/Kargones/ci-telemetry/internal/pkg/tags"
	"github.com/Kargones/ci-telemetry/internal/telemetry"
)

// MetricConfigChanged — счётчик изменений конфигурации хоста.
const MetricConfigChanged = "jenkins.config.changed"

// ConfigChange — уведомление об изменении файла конфигурации хоста.
type ConfigChange struct {
	File   string
	UserID string
}

// OnConfigChanged обрабатывает изменение конфигурации.
// Изменения от системного пользователя отправляются с низким приоритетом.
func (l *Listener) OnConfigChanged(ctx context.Context, e ConfigChange) {
	user := userOrAnonymous(e.UserID)
	t := l.withGlobals(tags.New("user_id:" + user))

	priority := telemetry.PriorityNormal
	if user == "SYSTEM" {
		priority = telemetry.PriorityLow
	}

	c := l.client()
	c.Event(ctx, telemetry.Event{
		Title:          fmt.Sprintf("User %s changed file %s", user, e.File),
		Text:           fmt.Sprintf("User %s changed file %s", user, e.File),
		Tags:           t,
		AlertType:      telemetry.AlertWarning,
		Priority:       priority,
		AggregationKey: e.File,
	})
	c.IncrementCounter(MetricConfigChanged, "", t)
}
