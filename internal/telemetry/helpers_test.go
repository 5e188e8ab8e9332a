package telemetry

import (
	"context"
	"sync"

	"github.com/Kargones/ci-telemetry/internal/pkg/alerting"
)

// staticHost — HostnameResolver с фиксированным именем.
type staticHost string

func (h staticHost) Hostname() string { return string(h) }

// recordingAlerter запоминает отправленные алерты.
type recordingAlerter struct {
	mu     sync.Mutex
	alerts []alerting.Alert
}

func (a *recordingAlerter) Send(_ context.Context, alert alerting.Alert) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alert)
	return nil
}

func (a *recordingAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.alerts)
}
