package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/Kargones/ci-telemetry/internal/pkg/logging"
)

func TestEvery_RejectsSmallInterval(t *testing.T) {
	s := New(logging.NewNopLogger())
	err := s.Every("fast", 100*time.Millisecond, func(context.Context) {})
	assert.ErrorIs(t, err, ErrIntervalTooSmall)
}

func TestEvery_ReplacesByName(t *testing.T) {
	s := New(logging.NewNopLogger())
	require.NoError(t, s.Every("flush", time.Second, func(context.Context) {}))
	require.NoError(t, s.Every("flush", 2*time.Second, func(context.Context) {}))
	require.NoError(t, s.Every("host-status", time.Second, func(context.Context) {}))

	assert.ElementsMatch(t, []string{"flush", "host-status"}, s.Jobs())
	assert.Len(t, s.cron.Entries(), 2)
}

func TestScheduler_RunsAndStops(t *testing.T) {
	s := New(logging.NewNopLogger())
	runs := atomic.NewInt64(0)
	ctxSeen := make(chan context.Context, 1)

	require.NoError(t, s.Every("tick", time.Second, func(ctx context.Context) {
		if runs.Inc() == 1 {
			ctxSeen <- ctx
		}
	}))
	s.Start()

	var jobCtx context.Context
	select {
	case jobCtx = <-ctxSeen:
	case <-time.After(3 * time.Second):
		t.Fatal("задача не была запущена")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))

	assert.GreaterOrEqual(t, runs.Load(), int64(1))
	assert.Error(t, jobCtx.Err(), "context задач отменяется после Stop")
}

// TestScheduler_SkipIfStillRunning проверяет, что задача не перекрывается сама с собой.
func TestScheduler_SkipIfStillRunning(t *testing.T) {
	s := New(logging.NewNopLogger())
	active := atomic.NewInt64(0)
	maxActive := atomic.NewInt64(0)
	release := make(chan struct{})

	require.NoError(t, s.Every("slow", time.Second, func(context.Context) {
		n := active.Inc()
		defer active.Dec()
		if n > maxActive.Load() {
			maxActive.Store(n)
		}
		<-release
	}))
	s.Start()

	time.Sleep(2500 * time.Millisecond)
	close(release)

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	assert.Equal(t, int64(1), maxActive.Load())
}
