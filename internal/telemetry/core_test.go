package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/ci-telemetry/internal/pkg/metrics"
	"github.com/Kargones/ci-telemetry/internal/pkg/tags"
)

// flushRecorder — send-функция для core.flush.
type flushRecorder struct {
	mu      sync.Mutex
	samples []Sample
	fail    map[string]bool
}

func (r *flushRecorder) send(_ context.Context, s Sample) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
	return !r.fail[s.Name]
}

func (r *flushRecorder) byName(name string) (Sample, bool) {
	for _, s := range r.samples {
		if s.Name == name {
			return s, true
		}
	}
	return Sample{}, false
}

func TestCore_FlushComputesRate(t *testing.T) {
	c := newCore(BackendHTTP, 10*time.Second, Deps{Hosts: staticHost("default-host")})
	for i := 0; i < 5; i++ {
		c.IncrementCounter("jenkins.job.completed", "node-1", tags.New("result:SUCCESS"))
	}
	c.IncrementCounter("jenkins.scm.checkout", "", tags.Set{})

	r := &flushRecorder{}
	c.flush(context.Background(), r.send)
	require.Len(t, r.samples, 2)

	s, ok := r.byName("jenkins.job.completed")
	require.True(t, ok)
	assert.Equal(t, KindRate, s.Kind)
	assert.InDelta(t, 0.5, s.Value, 1e-9)
	assert.Equal(t, int64(10), s.Interval)
	assert.Equal(t, "node-1", s.Hostname)
	assert.True(t, s.Tags.Equal(tags.New("result:SUCCESS")))

	s, ok = r.byName("jenkins.scm.checkout")
	require.True(t, ok)
	assert.Equal(t, "default-host", s.Hostname, "пустой hostname ключа заменяется resolver'ом")
	assert.InDelta(t, 0.1, s.Value, 1e-9)
}

func TestCore_FlushEmptyDoesNothing(t *testing.T) {
	c := newCore(BackendAgent, 0, Deps{})
	r := &flushRecorder{}
	c.flush(context.Background(), r.send)

	assert.Empty(t, r.samples)
	assert.Equal(t, DefaultFlushInterval, c.interval.Load())
}

func TestCore_FlushFailureContinuesAndDrops(t *testing.T) {
	c := newCore(BackendHTTP, 10*time.Second, Deps{})
	c.IncrementCounter("a", "h", tags.Set{})
	c.IncrementCounter("b", "h", tags.Set{})
	c.IncrementCounter("c", "h", tags.Set{})

	r := &flushRecorder{fail: map[string]bool{"b": true}}
	c.flush(context.Background(), r.send)
	assert.Len(t, r.samples, 3, "ошибка одного ключа не прерывает сброс")

	r2 := &flushRecorder{}
	c.flush(context.Background(), r2.send)
	assert.Empty(t, r2.samples, "значения упавшего ключа не повторяются")
}

func TestCore_RecordsEmissions(t *testing.T) {
	collector, err := metrics.NewPrometheusCollector(metrics.Config{Enabled: true, JobName: "test", Timeout: time.Second}, nil)
	require.NoError(t, err)
	c := newCore(BackendAgent, time.Second, Deps{Collector: collector})

	assert.True(t, c.record("gauge", true))
	assert.False(t, c.record("gauge", false))
}
