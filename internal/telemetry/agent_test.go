package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/ci-telemetry/internal/pkg/tags"
)

var errSend = errors.New("sendto: connection refused")

// fakeStatsd — StatsdSender, записывающий отправки.
type fakeStatsd struct {
	mu      sync.Mutex
	fail    bool
	closes  int
	gauges  map[string]float64
	counts  map[string]int64
	events  []*statsd.Event
	checks  []*statsd.ServiceCheck
	lastTag []string
}

func newFakeStatsd() *fakeStatsd {
	return &fakeStatsd{gauges: map[string]float64{}, counts: map[string]int64{}}
}

func (f *fakeStatsd) result() error {
	if f.fail {
		return errSend
	}
	return nil
}

func (f *fakeStatsd) Gauge(name string, value float64, t []string, _ float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gauges[name] = value
	f.lastTag = t
	return f.result()
}

func (f *fakeStatsd) Count(name string, value int64, t []string, _ float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[name] += value
	f.lastTag = t
	return f.result()
}

func (f *fakeStatsd) Event(e *statsd.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return f.result()
}

func (f *fakeStatsd) ServiceCheck(sc *statsd.ServiceCheck) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks = append(f.checks, sc)
	return f.result()
}

func (f *fakeStatsd) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeStatsd) setFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = v
}

func (f *fakeStatsd) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// fakeDialer выдаёт новый fakeStatsd на каждое открытие.
type fakeDialer struct {
	mu    sync.Mutex
	err   error
	addrs []string
	conns []*fakeStatsd
}

func (d *fakeDialer) dial(addr string) (StatsdSender, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addrs = append(d.addrs, addr)
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeStatsd()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) opened() []*fakeStatsd {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*fakeStatsd(nil), d.conns...)
}

func newTestAgentClient(t *testing.T, d *fakeDialer) *AgentClient {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Backend = BackendAgent
	require.NoError(t, cfg.Validate())
	return NewAgentClient(cfg, Deps{Hosts: staticHost("ci-master")}, d.dial)
}

func TestAgentClient_LazyOpen(t *testing.T) {
	d := &fakeDialer{}
	c := newTestAgentClient(t, d)

	assert.Equal(t, "stopped", c.State())
	assert.Empty(t, d.opened(), "соединение не открывается до первой отправки")

	require.True(t, c.Gauge(context.Background(), "jenkins.queue.size", 3, "ignored", tags.New("a:1")))
	require.True(t, c.Gauge(context.Background(), "jenkins.queue.size", 4, "", tags.Set{}))

	conns := d.opened()
	require.Len(t, conns, 1, "повторные отправки используют открытый handle")
	assert.Equal(t, "running", c.State())
	assert.Equal(t, []string{"localhost:8125"}, d.addrs)
	assert.Equal(t, 4.0, conns[0].gauges["jenkins.queue.size"])
}

func TestAgentClient_FailureStopsAndReopens(t *testing.T) {
	d := &fakeDialer{}
	c := newTestAgentClient(t, d)
	ctx := context.Background()

	require.True(t, c.ServiceCheck(ctx, "jenkins.up", StatusOK, "", tags.Set{}))
	first := d.opened()[0]
	first.setFail(true)

	assert.False(t, c.ServiceCheck(ctx, "jenkins.up", StatusOK, "", tags.Set{}))
	assert.Equal(t, "stopped", c.State())
	assert.Equal(t, 1, first.closeCount())

	require.True(t, c.ServiceCheck(ctx, "jenkins.up", StatusCritical, "", tags.Set{}))
	conns := d.opened()
	require.Len(t, conns, 2, "после ошибки соединение открывается заново")
	assert.Equal(t, 1, first.closeCount(), "старый handle закрывается ровно один раз")

	require.Len(t, conns[1].checks, 1)
	assert.Equal(t, statsd.Critical, conns[1].checks[0].Status)
	assert.Equal(t, "ci-master", conns[1].checks[0].Hostname)
}

func TestAgentClient_ConcurrentFailuresCloseOnce(t *testing.T) {
	d := &fakeDialer{}
	c := newTestAgentClient(t, d)
	ctx := context.Background()

	require.True(t, c.Gauge(ctx, "g", 1, "", tags.Set{}))
	first := d.opened()[0]
	first.setFail(true)

	conn, err := c.ensureRunning(false)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.markFailed(conn)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, first.closeCount())
	assert.Equal(t, "stopped", c.State())
}

func TestAgentClient_DialError(t *testing.T) {
	d := &fakeDialer{err: errors.New("dial unix /var/run/dsd.socket: no such file")}
	c := newTestAgentClient(t, d)

	assert.False(t, c.Event(context.Background(), Event{Title: "t"}))
	assert.Equal(t, "stopped", c.State())
	assert.False(t, c.Reinitialize())
	_, err := c.ensureRunning(false)
	assert.ErrorIs(t, err, ErrAgentUnavailable)

	d.mu.Lock()
	d.err = nil
	d.mu.Unlock()
	assert.True(t, c.Event(context.Background(), Event{Title: "t"}))
	assert.Equal(t, "running", c.State())
}

func TestAgentClient_Reinitialize(t *testing.T) {
	d := &fakeDialer{}
	c := newTestAgentClient(t, d)

	require.True(t, c.Gauge(context.Background(), "g", 1, "", tags.Set{}))
	c.SetAddress("unix:///var/run/datadog/dsd.socket")
	require.True(t, c.Reinitialize())

	conns := d.opened()
	require.Len(t, conns, 2)
	assert.Equal(t, 1, conns[0].closeCount())
	assert.Equal(t, "unix:///var/run/datadog/dsd.socket", d.addrs[1])
	assert.Equal(t, "running", c.State())
}

func TestAgentClient_EventFields(t *testing.T) {
	d := &fakeDialer{}
	c := newTestAgentClient(t, d)

	require.True(t, c.Event(context.Background(), Event{
		Title:          "build finished",
		Text:           "ok",
		Hostname:       "node-7",
		Tags:           tags.New("job:x"),
		AlertType:      AlertSuccess,
		Priority:       PriorityLow,
		AggregationKey: "x",
	}))

	ev := d.opened()[0].events[0]
	assert.Equal(t, "build finished", ev.Title)
	assert.Equal(t, "node-7", ev.Hostname)
	assert.Equal(t, statsd.Success, ev.AlertType)
	assert.Equal(t, statsd.Low, ev.Priority)
	assert.Equal(t, SourceType, ev.SourceTypeName)
	assert.Equal(t, []string{"job:x"}, ev.Tags)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestAgentClient_FlushRateAsCount(t *testing.T) {
	d := &fakeDialer{}
	c := newTestAgentClient(t, d)

	for i := 0; i < 7; i++ {
		c.IncrementCounter("jenkins.job.completed", "", tags.New("result:SUCCESS"))
	}
	c.FlushCounters(context.Background())

	conns := d.opened()
	require.Len(t, conns, 1)
	assert.Equal(t, int64(7), conns[0].counts["jenkins.job.completed"], "rate 0.7/с за 10с = 7")
	assert.Equal(t, []string{"result:SUCCESS", "host:ci-master"}, conns[0].lastTag)
}

func TestAgentClient_HostTag(t *testing.T) {
	tests := []struct {
		name     string
		hostname string
		tags     tags.Set
		want     []string
	}{
		{name: "явный hostname", hostname: "node-7", tags: tags.New("job:a"), want: []string{"job:a", "host:node-7"}},
		{name: "hostname по умолчанию", hostname: "", tags: tags.New("job:a"), want: []string{"job:a", "host:ci-master"}},
		{name: "без тегов", hostname: "node-7", tags: tags.Set{}, want: []string{"host:node-7"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDialer{}
			c := newTestAgentClient(t, d)

			require.True(t, c.Gauge(context.Background(), "jenkins.job.duration", 12, tt.hostname, tt.tags))
			assert.Equal(t, tt.want, d.opened()[0].lastTag)

			c.IncrementCounter("jenkins.job.completed", tt.hostname, tt.tags)
			c.FlushCounters(context.Background())
			assert.Equal(t, tt.want, d.opened()[0].lastTag)
		})
	}
}

func TestAgentClient_CloseAndValidate(t *testing.T) {
	d := &fakeDialer{}
	c := newTestAgentClient(t, d)

	assert.True(t, c.Validate(context.Background()))
	require.True(t, c.Gauge(context.Background(), "g", 1, "", tags.Set{}))
	require.NoError(t, c.Close())
	assert.Equal(t, "stopped", c.State())
	assert.Equal(t, 1, d.opened()[0].closeCount())

	require.NoError(t, c.Close(), "повторный Close безопасен")
	assert.Equal(t, 1, d.opened()[0].closeCount())
}
