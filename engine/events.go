package engine

import (
	"time"

	"nodeconsole/model"
	"nodeconsole/node"
)

// EventType identifies the kind of event emitted by the Engine.
type EventType int

const (
	// Snapshot events
	EventNodeConfigChanged EventType = iota + 1
	EventFullNodeChanged
	EventLastTaskChanged

	// Poller events
	EventBusyChanged
	EventRefreshFailed

	// Push events
	EventNetworkActivity
	EventTasksUpdated
	EventPushStatus
)

// Name is the event's wire name on the SSE stream.
func (t EventType) Name() string {
	switch t {
	case EventNodeConfigChanged:
		return "node-config"
	case EventFullNodeChanged:
		return "full-node"
	case EventLastTaskChanged:
		return "last-task"
	case EventBusyChanged:
		return "busy"
	case EventRefreshFailed:
		return "refresh-failed"
	case EventNetworkActivity:
		return "network-activity"
	case EventTasksUpdated:
		return "tasks-update"
	case EventPushStatus:
		return "push-status"
	default:
		return "unknown"
	}
}

// Event is the envelope emitted by the Engine's EventBus.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   any
}

type NodeConfigEvent struct {
	Seq    uint64            `json:"seq"`
	Config *model.NodeConfig `json:"node_config"`
}

type FullNodeEvent struct {
	Seq  uint64          `json:"seq"`
	Node *model.FullNode `json:"full_node"`
}

// LastTaskEvent carries the whole config so subscribers see the task next to
// the id it belongs to.
type LastTaskEvent struct {
	Seq    uint64            `json:"seq"`
	Config *model.NodeConfig `json:"node_config"`
}

type BusyEvent struct {
	node.Flags
}

type RefreshFailedEvent struct {
	Seq   uint64 `json:"seq"`
	Error string `json:"error"`
}

type NetworkActivityEvent struct {
	Data model.NetworkActivityData `json:"data"`
}

type TasksUpdatedEvent struct {
	NodeID string       `json:"node_id"`
	Tasks  []model.Task `json:"tasks"`
}

// PushStatusEvent reports a push topic connecting, opening or failing.
type PushStatusEvent struct {
	Topic string `json:"topic"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}
