// Package push subscribes to the hub's server-push topics and turns their
// messages into refetch signals and network activity samples.
package push

import (
	"encoding/json"
	"fmt"
	"net/url"

	"nodeconsole/model"
)

// Message types and actions sent by the hub.
const (
	TypeNetworkActivity = "network_activity"
	TypeTaskUpdate      = "task_update"
	ActionRefetch       = "refetch"
)

// Message is one push payload. Data is only set on network activity messages.
type Message struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp,omitempty"`
	NodeID    string          `json:"node_id,omitempty"`
	Action    string          `json:"action,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func DecodeMessage(b []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return Message{}, fmt.Errorf("push decode: %w", err)
	}
	return m, nil
}

// NetworkActivity decodes the aggregate carried by a network activity message.
func (m Message) NetworkActivity() (model.NetworkActivityData, error) {
	var d model.NetworkActivityData
	if m.Type != TypeNetworkActivity {
		return d, fmt.Errorf("push: %q message carries no network activity", m.Type)
	}
	if len(m.Data) == 0 {
		return d, fmt.Errorf("push: network activity message without data")
	}
	if err := json.Unmarshal(m.Data, &d); err != nil {
		return d, fmt.Errorf("push decode network activity: %w", err)
	}
	return d, nil
}

// IsRefetchFor reports whether m asks nodeID to re-pull its state. Task
// update streams carry every node's traffic.
func (m Message) IsRefetchFor(nodeID string) bool {
	return m.Type == TypeTaskUpdate && m.Action == ActionRefetch &&
		nodeID != "" && m.NodeID == nodeID
}

// TopicKind selects one of the hub's push topics.
type TopicKind int

const (
	NetworkActivityTopic TopicKind = iota + 1
	TaskUpdatesTopic
)

// Topic is a push topic, scoped to a node for task updates.
type Topic struct {
	Kind   TopicKind
	NodeID string
}

func NetworkActivity() Topic {
	return Topic{Kind: NetworkActivityTopic}
}

func TaskUpdates(nodeID string) Topic {
	return Topic{Kind: TaskUpdatesTopic, NodeID: nodeID}
}

func (t Topic) String() string {
	switch t.Kind {
	case NetworkActivityTopic:
		return "network_activity"
	case TaskUpdatesTopic:
		return "task_updates?node_id=" + url.QueryEscape(t.NodeID)
	default:
		return "unknown"
	}
}
