package listener

import (
	"context"
	"fmt"

	"github.com/Kargones/ci-telemetry/internal/pkg/tags"
	"github.com/Kargones/ci-telemetry/internal/telemetry"
)

// NodeState — изменение состояния узла (computer) хоста.
type NodeState string

const (
	NodeOnline             NodeState = "online"
	NodeOffline            NodeState = "offline"
	NodeTemporarilyOnline  NodeState = "temporarily_online"
	NodeTemporarilyOffline NodeState = "temporarily_offline"
	NodeLaunchFailure      NodeState = "launch_failure"
)

// ParseNodeState проверяет имя состояния.
func ParseNodeState(s string) (NodeState, bool) {
	switch st := NodeState(s); st {
	case NodeOnline, NodeOffline, NodeTemporarilyOnline, NodeTemporarilyOffline, NodeLaunchFailure:
		return st, true
	}
	return "", false
}

// Metric возвращает имя счётчика состояния: jenkins.computer.<state>.
func (s NodeState) Metric() string {
	return "jenkins.computer." + string(s)
}

// NodeEvent — уведомление об изменении состояния узла.
type NodeEvent struct {
	Name  string
	State NodeState
	// Cause — причина (для offline и launch_failure), если хост её передал.
	Cause string
}

// OnNode обрабатывает изменение состояния узла.
func (l *Listener) OnNode(ctx context.Context, e NodeEvent) {
	t := l.withGlobals(tags.New("node_name:" + e.Name))
	title := fmt.Sprintf("Jenkins node %s is %s", e.Name, nodeTitle(e.State))
	text := title
	if e.Cause != "" {
		text += ": " + e.Cause
	}

	c := l.client()
	c.Event(ctx, telemetry.Event{
		Title:          title,
		Text:           text,
		Tags:           t,
		AlertType:      nodeAlertType(e.State),
		Priority:       telemetry.PriorityNormal,
		AggregationKey: e.Name,
	})
	c.IncrementCounter(e.State.Metric(), "", t)
}

func nodeTitle(s NodeState) string {
	switch s {
	case NodeTemporarilyOnline:
		return "temporarily online"
	case NodeTemporarilyOffline:
		return "temporarily offline"
	case NodeLaunchFailure:
		return "failed to launch"
	default:
		return string(s)
	}
}

func nodeAlertType(s NodeState) telemetry.AlertType {
	switch s {
	case NodeOnline:
		return telemetry.AlertSuccess
	case NodeOffline, NodeTemporarilyOffline:
		return telemetry.AlertWarning
	case NodeLaunchFailure:
		return telemetry.AlertError
	default:
		return telemetry.AlertInfo
	}
}
