package listener

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kargones/ci-telemetry/internal/entity/build"
	"github.com/Kargones/ci-telemetry/internal/history"
	"github.com/Kargones/ci-telemetry/internal/pkg/tags"
	"github.com/Kargones/ci-telemetry/internal/telemetry"
	"github.com/Kargones/ci-telemetry/internal/telemetry/telemetrytest"
)

func newTestListener() (*Listener, *telemetrytest.MockClient) {
	mock := telemetrytest.NewMockClient()
	src := &telemetrytest.Source{Client: mock, Tags: tags.New("env:prod")}
	return New(src, nil), mock
}

func completedBuild(status build.Result) Build {
	last := build.Chain(
		&build.Snapshot{JobName: "app/main", BuildNumber: 1, StartedAt: 0, DurationMs: 1000, Status: build.ResultFailure},
		&build.Snapshot{JobName: "app/main", BuildNumber: 2, StartedAt: 60000, DurationMs: 5000, Status: status,
			Host: "node-1.ci", TagSet: tags.New("branch:main")},
	)
	return Build{Record: last, Node: "linux-1", UserID: "alice"}
}

func TestOnStarted(t *testing.T) {
	l, mock := newTestListener()
	b := Build{Record: &build.Snapshot{JobName: "app/main", BuildNumber: 7, Host: "node-1.ci"}, Node: "linux-1"}

	l.OnStarted(context.Background(), b)

	events := mock.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "app/main build #7 started on node-1.ci", events[0].Title)
	assert.True(t, events[0].Tags.Contains("build_number:7"))
	assert.Equal(t, "app/main", events[0].AggregationKey)

	keys := mock.CounterKeys()
	require.Len(t, keys, 1)
	for k, v := range keys {
		assert.Equal(t, MetricJobStarted, k.Metric)
		assert.Equal(t, "node-1.ci", k.Hostname)
		assert.Equal(t, []string{"env:prod", "job:app/main", "node:linux-1"}, k.Tags.Strings())
		assert.Equal(t, int64(1), v)
	}
}

func TestOnCompleted_Success(t *testing.T) {
	l, mock := newTestListener()
	l.OnCompleted(context.Background(), completedBuild(build.ResultSuccess))

	events := mock.Events()
	require.Len(t, events, 1)
	assert.Equal(t, telemetry.AlertSuccess, events[0].AlertType)
	assert.Equal(t, telemetry.PriorityLow, events[0].Priority)
	assert.Equal(t, "app/main build #2 SUCCESS on node-1.ci", events[0].Title)

	assert.Equal(t, []float64{5}, mock.GaugeValues(MetricJobDuration))
	assert.Equal(t, []float64{60}, mock.GaugeValues(history.MetricMTTR))
	assert.Equal(t, []float64{65}, mock.GaugeValues(history.MetricLeadTime))

	checks := mock.Checks()
	require.Len(t, checks, 1)
	assert.Equal(t, CheckJobStatus, checks[0].Name)
	assert.Equal(t, telemetry.StatusOK, checks[0].Status)
	assert.True(t, checks[0].Tags.Contains("result:SUCCESS"))
	assert.True(t, checks[0].Tags.Contains("env:prod"))
	assert.True(t, checks[0].Tags.Contains("user_id:alice"))
	assert.False(t, checks[0].Tags.Contains("build_number:2"), "номер сборки только в тегах события")

	assert.Equal(t, map[string]int64{MetricJobCompleted: 1}, mock.Counters())
}

func TestOnCompleted_StatusMapping(t *testing.T) {
	tests := []struct {
		result build.Result
		status telemetry.CheckStatus
		alert  telemetry.AlertType
		abort  bool
	}{
		{build.ResultFailure, telemetry.StatusCritical, telemetry.AlertError, false},
		{build.ResultUnstable, telemetry.StatusWarning, telemetry.AlertWarning, false},
		{build.ResultAborted, telemetry.StatusUnknown, telemetry.AlertWarning, true},
		{build.ResultNotBuilt, telemetry.StatusUnknown, telemetry.AlertInfo, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.result), func(t *testing.T) {
			l, mock := newTestListener()
			l.OnCompleted(context.Background(), completedBuild(tt.result))

			require.Len(t, mock.Checks(), 1)
			assert.Equal(t, tt.status, mock.Checks()[0].Status)
			assert.Equal(t, tt.alert, mock.Events()[0].AlertType)
			assert.Equal(t, []float64{5}, mock.GaugeValues(history.MetricFeedbackTime))

			counters := mock.Counters()
			assert.Equal(t, int64(1), counters[MetricJobCompleted])
			if tt.abort {
				assert.Equal(t, int64(1), counters[MetricJobAborted])
			} else {
				assert.NotContains(t, counters, MetricJobAborted)
			}
		})
	}
}

func TestOnCompleted_RunningSkipped(t *testing.T) {
	l, mock := newTestListener()
	l.OnCompleted(context.Background(), Build{Record: &build.Snapshot{JobName: "x"}})

	assert.Empty(t, mock.Events())
	assert.Empty(t, mock.Checks())
}

func TestOnCompleted_FailingClientDoesNotPanic(t *testing.T) {
	l, mock := newTestListener()
	mock.EventFunc = func(context.Context, telemetry.Event) bool { return false }
	mock.GaugeFunc = func(context.Context, string, float64, string, tags.Set) bool { return false }

	assert.NotPanics(t, func() {
		l.OnCompleted(context.Background(), completedBuild(build.ResultFailure))
	})
	assert.Len(t, mock.Checks(), 1, "ошибка события не прерывает остальные отправки")
}

func TestOnCheckout(t *testing.T) {
	l, mock := newTestListener()
	l.OnCheckout(context.Background(), completedBuild(build.ResultRunning))

	require.Len(t, mock.Events(), 1)
	assert.Contains(t, mock.Events()[0].Title, "checkout finished")
	assert.Equal(t, map[string]int64{MetricSCMCheckout: 1}, mock.Counters())
}

func TestOnNode(t *testing.T) {
	l, mock := newTestListener()
	l.OnNode(context.Background(), NodeEvent{Name: "linux-2", State: NodeLaunchFailure, Cause: "ssh timeout"})

	events := mock.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "Jenkins node linux-2 is failed to launch", events[0].Title)
	assert.Equal(t, "Jenkins node linux-2 is failed to launch: ssh timeout", events[0].Text)
	assert.Equal(t, telemetry.AlertError, events[0].AlertType)
	assert.Equal(t, map[string]int64{"jenkins.computer.launch_failure": 1}, mock.Counters())
}

func TestParseNodeStateAndSecurityKind(t *testing.T) {
	st, ok := ParseNodeState("temporarily_offline")
	assert.True(t, ok)
	assert.Equal(t, NodeTemporarilyOffline, st)
	_, ok = ParseNodeState("rebooting")
	assert.False(t, ok)

	k, ok := ParseSecurityKind("access_denied")
	assert.True(t, ok)
	assert.Equal(t, "jenkins.user.access_denied", k.Metric())
	_, ok = ParseSecurityKind("sudo")
	assert.False(t, ok)
}

func TestOnSecurity(t *testing.T) {
	l, mock := newTestListener()
	l.OnSecurity(context.Background(), SecurityEvent{Kind: SecurityAccessDenied, UserID: "bob"})
	l.OnSecurity(context.Background(), SecurityEvent{Kind: SecurityLogout})

	events := mock.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "User bob failed to authenticate", events[0].Title)
	assert.Equal(t, telemetry.AlertError, events[0].AlertType)
	assert.Equal(t, "User anonymous logout", events[1].Title)

	assert.Equal(t, map[string]int64{
		"jenkins.user.access_denied": 1,
		"jenkins.user.logout":        1,
	}, mock.Counters())
}

func TestOnConfigChanged(t *testing.T) {
	l, mock := newTestListener()
	l.OnConfigChanged(context.Background(), ConfigChange{File: "config.xml", UserID: "SYSTEM"})

	events := mock.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "User SYSTEM changed file config.xml", events[0].Title)
	assert.Equal(t, telemetry.PriorityLow, events[0].Priority)
	assert.Equal(t, map[string]int64{MetricConfigChanged: 1}, mock.Counters())
}

func TestStatusPublisher(t *testing.T) {
	mock := telemetrytest.NewMockClient()
	src := &telemetrytest.Source{Client: mock, Tags: tags.New("env:prod")}
	p := NewStatusPublisher(src, 0, nil)

	p.Publish(context.Background())
	assert.Empty(t, mock.Gauges(), "без статуса публикация пропускается")

	p.Update(HostStatus{QueueSize: 4, QueueStuck: 1, ExecutorsBusy: 3, ExecutorsFree: 5, NodesOnline: 2, NodesOffline: 1})
	p.Publish(context.Background())

	assert.Equal(t, []float64{4}, mock.GaugeValues("jenkins.queue.size"))
	assert.Equal(t, []float64{8}, mock.GaugeValues("jenkins.executor.count"))
	assert.Equal(t, []float64{3}, mock.GaugeValues("jenkins.node.count"))
	assert.Len(t, mock.Gauges(), 10)
	for _, g := range mock.Gauges() {
		assert.True(t, g.Tags.Equal(tags.New("env:prod")))
	}
}

type fakeScheduler struct {
	name     string
	interval time.Duration
}

func (s *fakeScheduler) Every(name string, interval time.Duration, _ func(context.Context)) error {
	s.name, s.interval = name, interval
	return nil
}

func TestStatusPublisher_Schedule(t *testing.T) {
	p := NewStatusPublisher(&telemetrytest.Source{Client: telemetrytest.NewMockClient()}, 30*time.Second, nil)
	s := &fakeScheduler{}
	require.NoError(t, p.Schedule(s))
	assert.Equal(t, HostStatusJobName, s.name)
	assert.Equal(t, 30*time.Second, s.interval)
}
