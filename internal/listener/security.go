package listener

import (
	"context"
	"fmt"

	"github.com/Kargones/ci-telemetry/internal/pkg/tags"
	"github.com/Kargones/ci-telemetry/internal/telemetry"
)

// SecurityKind — тип события безопасности.
type SecurityKind string

const (
	SecurityAuthenticated SecurityKind = "authenticated"
	SecurityAccessDenied  SecurityKind = "access_denied"
	SecurityLogout        SecurityKind = "logout"
)

// ParseSecurityKind проверяет имя события.
func ParseSecurityKind(s string) (SecurityKind, bool) {
	switch k := SecurityKind(s); k {
	case SecurityAuthenticated, SecurityAccessDenied, SecurityLogout:
		return k, true
	}
	return "", false
}

// Metric возвращает имя счётчика: jenkins.user.<kind>.
func (k SecurityKind) Metric() string {
	return "jenkins.user." + string(k)
}

// SecurityEvent — уведомление о входе, отказе в доступе или выходе пользователя.
type SecurityEvent struct {
	Kind   SecurityKind
	UserID string
}

// OnSecurity обрабатывает событие безопасности.
func (l *Listener) OnSecurity(ctx context.Context, e SecurityEvent) {
	user := userOrAnonymous(e.UserID)
	t := l.withGlobals(tags.New("user_id:" + user))

	var title string
	alert := telemetry.AlertSuccess
	switch e.Kind {
	case SecurityAccessDenied:
		title = fmt.Sprintf("User %s failed to authenticate", user)
		alert = telemetry.AlertError
	case SecurityLogout:
		title = fmt.Sprintf("User %s logout", user)
	default:
		title = fmt.Sprintf("User %s authenticated", user)
	}

	c := l.client()
	c.Event(ctx, telemetry.Event{
		Title:          title,
		Text:           title,
		Tags:           t,
		AlertType:      alert,
		Priority:       telemetry.PriorityLow,
		AggregationKey: user,
	})
	c.IncrementCounter(e.Kind.Metric(), "", t)
}
