package listener

import (
	"context"
	"time"

	"go.uber.org/atomic"

	"github.com/Kargones/ci-telemetry/internal/pkg/logging"
	"github.com/Kargones/ci-telemetry/internal/telemetry"
)

// HostStatusJobName — имя задачи публикации статуса хоста в планировщике.
const HostStatusJobName = "host-status"

// DefaultHostStatusInterval — период публикации по умолчанию.
const DefaultHostStatusInterval = 10 * time.Second

// HostStatus — последний статус очереди, исполнителей и узлов, сообщённый хостом.
type HostStatus struct {
	QueueSize      int `json:"queue_size"`
	QueueBuildable int `json:"queue_buildable"`
	QueueStuck     int `json:"queue_stuck"`
	QueueBlocked   int `json:"queue_blocked"`
	ExecutorsBusy  int `json:"executors_busy"`
	ExecutorsFree  int `json:"executors_free"`
	NodesOnline    int `json:"nodes_online"`
	NodesOffline   int `json:"nodes_offline"`
}

// gauges возвращает пары имя → значение в фиксированном порядке.
func (s HostStatus) gauges() []struct {
	name  string
	value int
} {
	return []struct {
		name  string
		value int
	}{
		{"jenkins.queue.size", s.QueueSize},
		{"jenkins.queue.buildable", s.QueueBuildable},
		{"jenkins.queue.stuck", s.QueueStuck},
		{"jenkins.queue.blocked", s.QueueBlocked},
		{"jenkins.executor.count", s.ExecutorsBusy + s.ExecutorsFree},
		{"jenkins.executor.in_use", s.ExecutorsBusy},
		{"jenkins.executor.free", s.ExecutorsFree},
		{"jenkins.node.count", s.NodesOnline + s.NodesOffline},
		{"jenkins.node.online", s.NodesOnline},
		{"jenkins.node.offline", s.NodesOffline},
	}
}

// StatusPublisher периодически публикует последний HostStatus как gauge.
// Update вызывается из обработчиков ingest, Publish из планировщика.
type StatusPublisher struct {
	source   Source
	interval time.Duration
	last     *atomic.Pointer[HostStatus]
	rounds   *atomic.Int64
	logger   logging.Logger
}

// NewStatusPublisher создаёт StatusPublisher. interval <= 0 означает DefaultHostStatusInterval.
func NewStatusPublisher(source Source, interval time.Duration, logger logging.Logger) *StatusPublisher {
	if interval <= 0 {
		interval = DefaultHostStatusInterval
	}
	return &StatusPublisher{
		source:   source,
		interval: interval,
		last:     atomic.NewPointer[HostStatus](nil),
		rounds:   atomic.NewInt64(0),
		logger:   logging.Component(logger, "hoststatus"),
	}
}

// Update запоминает статус для следующей публикации.
func (p *StatusPublisher) Update(s HostStatus) {
	p.last.Store(&s)
}

// Last возвращает последний статус; ok=false, если хост его ещё не сообщал.
func (p *StatusPublisher) Last() (HostStatus, bool) {
	s := p.last.Load()
	if s == nil {
		return HostStatus{}, false
	}
	return *s, true
}

// Schedule регистрирует периодическую публикацию.
func (p *StatusPublisher) Schedule(s telemetry.Scheduler) error {
	return s.Every(HostStatusJobName, p.interval, p.Publish)
}

// Publish отправляет gauge по последнему статусу. Без статуса ничего не делает.
func (p *StatusPublisher) Publish(ctx context.Context) {
	s, ok := p.Last()
	if !ok {
		return
	}
	t := p.source.GlobalTags()
	c := p.source.Current()

	failed := 0
	for _, g := range s.gauges() {
		if !c.Gauge(ctx, g.name, float64(g.value), "", t) {
			failed++
		}
	}
	round := p.rounds.Inc()
	if failed > 0 {
		p.logger.Warn("статус хоста отправлен не полностью", "failed", failed, "round", round)
	}
}
