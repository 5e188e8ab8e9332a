// Package telemetrytest предоставляет тестовые утилиты для пакета telemetry:
// мок-реализацию Client, записывающую все вызовы.
package telemetrytest

import (
	"context"
	"sync"

	"github.com/Kargones/ci-telemetry/internal/counter"
	"github.com/Kargones/ci-telemetry/internal/pkg/tags"
	"github.com/Kargones/ci-telemetry/internal/telemetry"
)

// Compile-time проверки реализации интерфейсов
var (
	_ telemetry.Client       = (*MockClient)(nil)
	_ telemetry.ClientSource = (*Source)(nil)
)

// Gauge — записанный вызов Gauge.
type Gauge struct {
	Name     string
	Value    float64
	Hostname string
	Tags     tags.Set
}

// Check — записанный вызов ServiceCheck.
type Check struct {
	Name     string
	Status   telemetry.CheckStatus
	Hostname string
	Tags     tags.Set
}

// MockClient — мок-реализация telemetry.Client.
// Функциональные поля переопределяют поведение; по умолчанию вызовы
// записываются и возвращают true. Счётчики пишутся в настоящий counter.Store.
type MockClient struct {
	EventFunc        func(ctx context.Context, e telemetry.Event) bool
	GaugeFunc        func(ctx context.Context, name string, value float64, hostname string, t tags.Set) bool
	ServiceCheckFunc func(ctx context.Context, name string, status telemetry.CheckStatus, hostname string, t tags.Set) bool
	FlushFunc        func(ctx context.Context)
	ValidateFunc     func(ctx context.Context) bool

	mu       sync.Mutex
	events   []telemetry.Event
	gauges   []Gauge
	checks   []Check
	flushes  int
	closed   bool
	counters *counter.Store
}

// NewMockClient создаёт MockClient с пустым counter.Store.
func NewMockClient() *MockClient {
	return &MockClient{counters: counter.NewStore(1)}
}

// Event записывает событие.
func (m *MockClient) Event(ctx context.Context, e telemetry.Event) bool {
	m.mu.Lock()
	m.events = append(m.events, e)
	m.mu.Unlock()
	if m.EventFunc != nil {
		return m.EventFunc(ctx, e)
	}
	return true
}

// Gauge записывает gauge.
func (m *MockClient) Gauge(ctx context.Context, name string, value float64, hostname string, t tags.Set) bool {
	m.mu.Lock()
	m.gauges = append(m.gauges, Gauge{Name: name, Value: value, Hostname: hostname, Tags: t})
	m.mu.Unlock()
	if m.GaugeFunc != nil {
		return m.GaugeFunc(ctx, name, value, hostname, t)
	}
	return true
}

// ServiceCheck записывает service check.
func (m *MockClient) ServiceCheck(ctx context.Context, name string, status telemetry.CheckStatus, hostname string, t tags.Set) bool {
	m.mu.Lock()
	m.checks = append(m.checks, Check{Name: name, Status: status, Hostname: hostname, Tags: t})
	m.mu.Unlock()
	if m.ServiceCheckFunc != nil {
		return m.ServiceCheckFunc(ctx, name, status, hostname, t)
	}
	return true
}

// IncrementCounter увеличивает счётчик во внутреннем counter.Store.
func (m *MockClient) IncrementCounter(name, hostname string, t tags.Set) {
	m.store().Increment(counter.Key{Metric: name, Hostname: hostname, Tags: t})
}

// FlushCounters учитывает вызов; по умолчанию счётчики не сбрасываются.
func (m *MockClient) FlushCounters(ctx context.Context) {
	m.mu.Lock()
	m.flushes++
	m.mu.Unlock()
	if m.FlushFunc != nil {
		m.FlushFunc(ctx)
	}
}

// Validate возвращает true при отсутствии ValidateFunc.
func (m *MockClient) Validate(ctx context.Context) bool {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx)
	}
	return true
}

// Close помечает клиент закрытым.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockClient) store() *counter.Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = counter.NewStore(1)
	}
	return m.counters
}

// -------------------------------------------------------------------
// Accessors
// -------------------------------------------------------------------

// Events возвращает копию записанных событий.
func (m *MockClient) Events() []telemetry.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]telemetry.Event(nil), m.events...)
}

// Gauges возвращает копию записанных gauge.
func (m *MockClient) Gauges() []Gauge {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Gauge(nil), m.gauges...)
}

// GaugeValues возвращает значения gauge по имени в порядке вызовов.
func (m *MockClient) GaugeValues(name string) []float64 {
	var out []float64
	for _, g := range m.Gauges() {
		if g.Name == name {
			out = append(out, g.Value)
		}
	}
	return out
}

// Checks возвращает копию записанных service checks.
func (m *MockClient) Checks() []Check {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Check(nil), m.checks...)
}

// Counters забирает накопленные счётчики (metric → сумма по всем ключам).
func (m *MockClient) Counters() map[string]int64 {
	out := make(map[string]int64)
	for k, v := range m.store().DrainAndReset() {
		out[k.Metric] += v
	}
	return out
}

// CounterKeys забирает накопленные счётчики с полными ключами.
func (m *MockClient) CounterKeys() map[counter.Key]int64 {
	return m.store().DrainAndReset()
}

// Flushes возвращает число вызовов FlushCounters.
func (m *MockClient) Flushes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

// Closed сообщает, вызывался ли Close.
func (m *MockClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Source — telemetry.ClientSource, всегда возвращающий один клиент.
// Tags возвращаются как глобальные теги (аналог Factory.GlobalTags).
type Source struct {
	Client telemetry.Client
	Tags   tags.Set
}

// Current возвращает Client.
func (s *Source) Current() telemetry.Client {
	return s.Client
}

// GlobalTags возвращает Tags.
func (s *Source) GlobalTags() tags.Set {
	return s.Tags
}
