package telemetry

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/DataDog/datadog-go/v5/statsd"
	"go.uber.org/atomic"

	"github.com/Kargones/ci-telemetry/internal/pkg/tags"
)

// StatsdSender — используемая часть statsd.ClientInterface.
// Узкий интерфейс позволяет подменять relay в тестах.
type StatsdSender interface {
	Gauge(name string, value float64, tags []string, rate float64) error
	Count(name string, value int64, tags []string, rate float64) error
	Event(e *statsd.Event) error
	ServiceCheck(sc *statsd.ServiceCheck) error
	Close() error
}

var _ StatsdSender = (*statsd.Client)(nil)

// Dialer открывает соединение с relay по адресу datadog-go ("host:port" или "unix:///path").
type Dialer func(addr string) (StatsdSender, error)

// DialStatsd — Dialer по умолчанию на datadog-go. Собственная телеметрия клиента отключена.
func DialStatsd(addr string) (StatsdSender, error) {
	return statsd.New(addr, statsd.WithoutTelemetry())
}

type agentState int

const (
	stateStopped agentState = iota
	stateRunning
)

func (s agentState) String() string {
	if s == stateRunning {
		return "running"
	}
	return "stopped"
}

// AgentClient — backend локального relay-агента (DogStatsD).
//
// Состояние Stopped/Running защищено одним mutex; единственная точка входа:
// ensureRunning. Любая ошибка отправки переводит клиент в Stopped и закрывает
// handle ровно один раз; следующий вызов открывает соединение заново.
type AgentClient struct {
	core
	dial Dialer

	mu    sync.Mutex
	addr  string
	state agentState
	conn  StatsdSender

	// opens — сколько раз открывалось соединение (диагностика).
	opens *atomic.Int64
}

var _ Client = (*AgentClient)(nil)

// NewAgentClient создаёт AgentClient. Соединение открывается лениво при первой отправке.
// dial == nil означает DialStatsd.
func NewAgentClient(cfg Config, deps Deps, dial Dialer) *AgentClient {
	if dial == nil {
		dial = DialStatsd
	}
	return &AgentClient{
		core:  newCore(BackendAgent, cfg.FlushInterval, deps),
		dial:  dial,
		addr:  cfg.AgentAddress(),
		state: stateStopped,
		opens: atomic.NewInt64(0),
	}
}

// ensureRunning возвращает открытый handle, при необходимости открывая его.
// force закрывает текущий handle и открывает новый.
func (c *AgentClient) ensureRunning(force bool) (StatsdSender, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if force {
		c.stopLocked()
	}
	if c.state == stateRunning && c.conn != nil {
		return c.conn, nil
	}

	conn, err := c.dial(c.addr)
	if err != nil {
		c.state = stateStopped
		return nil, fmt.Errorf("%w: %w", ErrAgentUnavailable, err)
	}
	c.conn = conn
	c.state = stateRunning
	c.opens.Inc()
	c.logger.Info("соединение с relay открыто", "addr", c.addr, "opens", c.opens.Load())
	return conn, nil
}

// stopLocked закрывает handle и переводит клиент в Stopped. Вызывается под mu.
func (c *AgentClient) stopLocked() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Debug("ошибка закрытия соединения с relay", "error", err.Error())
		}
		c.conn = nil
	}
	c.state = stateStopped
}

// markFailed переводит клиент в Stopped, если conn всё ещё текущий handle.
// Параллельные ошибки на одном handle закрывают его один раз.
func (c *AgentClient) markFailed(conn StatsdSender) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.stopLocked()
	}
}

// emit выполняет send на текущем handle с учётом состояния и метрик.
func (c *AgentClient) emit(kind string, send func(StatsdSender) error) bool {
	conn, err := c.ensureRunning(false)
	if err != nil {
		c.logger.Warn("relay недоступен", "kind", kind, "addr", c.addr, "error", err.Error())
		return c.record(kind, false)
	}
	if err := send(conn); err != nil {
		c.markFailed(conn)
		c.logger.Warn("ошибка отправки в relay, соединение будет открыто заново",
			"kind", kind, "addr", c.addr, "error", err.Error())
		return c.record(kind, false)
	}
	return c.record(kind, true)
}

// Reinitialize принудительно переоткрывает соединение (после смены конфигурации).
func (c *AgentClient) Reinitialize() bool {
	if _, err := c.ensureRunning(true); err != nil {
		c.logger.Warn("не удалось переоткрыть соединение с relay", "addr", c.addr, "error", err.Error())
		return false
	}
	return true
}

// SetAddress меняет адрес relay; новый адрес используется при следующем открытии.
func (c *AgentClient) SetAddress(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addr = addr
}

// State возвращает "running" или "stopped".
func (c *AgentClient) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.String()
}

// Event отправляет событие с указанным hostname.
func (c *AgentClient) Event(_ context.Context, e Event) bool {
	e = withDefaults(e, c.now())
	ev := statsd.NewEvent(e.Title, e.Text)
	ev.Timestamp = e.Date
	ev.Hostname = c.host(e.Hostname)
	ev.AggregationKey = e.AggregationKey
	ev.Priority = statsd.EventPriority(e.Priority)
	ev.AlertType = statsd.EventAlertType(e.AlertType)
	ev.SourceTypeName = SourceType
	ev.Tags = e.Tags.Strings()

	return c.emit("event", func(s StatsdSender) error { return s.Event(ev) })
}

// Gauge отправляет gauge. Hostname передаётся тегом host:, который агент
// использует вместо собственного имени.
func (c *AgentClient) Gauge(_ context.Context, name string, value float64, hostname string, t tags.Set) bool {
	tagList := withHostTag(t.Strings(), c.host(hostname))
	return c.emit(string(KindGauge), func(s StatsdSender) error {
		return s.Gauge(name, value, tagList, 1)
	})
}

// ServiceCheck отправляет service check с указанным hostname.
func (c *AgentClient) ServiceCheck(_ context.Context, name string, status CheckStatus, hostname string, t tags.Set) bool {
	sc := statsd.NewServiceCheck(name, statsd.ServiceCheckStatus(status))
	sc.Timestamp = c.now()
	sc.Hostname = c.host(hostname)
	sc.Tags = t.Strings()

	return c.emit("service_check", func(s StatsdSender) error { return s.ServiceCheck(sc) })
}

// FlushCounters сбрасывает общий counter.Store. Rate отправляется как DogStatsD count
// round(value*interval): агент сам нормализует count в rate.
func (c *AgentClient) FlushCounters(ctx context.Context) {
	c.flush(ctx, c.sendSample)
}

func (c *AgentClient) sendSample(_ context.Context, s Sample) bool {
	tagList := withHostTag(s.Tags.Strings(), s.Hostname)
	if s.Kind == KindGauge {
		return c.emit(string(KindGauge), func(conn StatsdSender) error {
			return conn.Gauge(s.Name, s.Value, tagList, 1)
		})
	}
	n := int64(math.Round(s.Value * float64(s.Interval)))
	return c.emit(string(KindRate), func(conn StatsdSender) error {
		return conn.Count(s.Name, n, tagList, 1)
	})
}

func withHostTag(tagList []string, hostname string) []string {
	if hostname == "" {
		return tagList
	}
	return append(tagList, "host:"+hostname)
}

// Validate для relay всегда true: агент не проверяет ключи.
func (c *AgentClient) Validate(context.Context) bool {
	return true
}

// Close закрывает handle. Клиент остаётся пригодным: следующий вызов откроет его заново.
func (c *AgentClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	return nil
}
