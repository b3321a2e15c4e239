// Package snapshot holds the merged node view built from the local agent and
// the hub. State only changes through Reduce.
package snapshot

import (
	"nodeconsole/equality"
	"nodeconsole/model"
)

// State is the merged view. A State value is never mutated after it has been
// returned from Reduce; a transition that changes something returns a new one.
type State struct {
	NodeConfig *model.NodeConfig `json:"node_config"`
	FullNode   *model.FullNode   `json:"full_node"`
}

// ActionType identifies a state transition.
type ActionType int

const (
	SetNodeConfig ActionType = iota + 1
	SetLastTask
	SetFullNode
)

func (t ActionType) String() string {
	switch t {
	case SetNodeConfig:
		return "SET_NODE_CONFIG"
	case SetLastTask:
		return "SET_LAST_TASK"
	case SetFullNode:
		return "SET_FULL_NODE"
	default:
		return "UNKNOWN"
	}
}

// Action is one requested transition. Only the field matching Type is read.
type Action struct {
	Type       ActionType
	NodeConfig *model.NodeConfig
	LastTask   *model.TaskAssignment
	FullNode   *model.FullNode
}

func NodeConfigAction(c *model.NodeConfig) Action {
	return Action{Type: SetNodeConfig, NodeConfig: c}
}

func LastTaskAction(t *model.TaskAssignment) Action {
	return Action{Type: SetLastTask, LastTask: t}
}

func FullNodeAction(n *model.FullNode) Action {
	return Action{Type: SetFullNode, FullNode: n}
}

// Fields that change on every poll without meaning anything to consumers.
var (
	nodeConfigVolatile = []string{"resource_usage", "last_task"}
	fullNodeVolatile   = []string{"resourceAvailable"}
)

// Reduce applies a to s. It returns s itself when the action changes nothing,
// so callers can detect a no-op by pointer comparison.
func Reduce(s *State, a Action) *State {
	if s == nil {
		s = &State{}
	}
	switch a.Type {
	case SetNodeConfig:
		return reduceNodeConfig(s, a.NodeConfig)
	case SetLastTask:
		return reduceLastTask(s, a.LastTask)
	case SetFullNode:
		return reduceFullNode(s, a.FullNode)
	default:
		return s
	}
}

func reduceNodeConfig(s *State, in *model.NodeConfig) *State {
	prev := s.NodeConfig
	if in == nil {
		if prev == nil {
			return s
		}
		return &State{FullNode: s.FullNode}
	}
	if prev != nil && prev.LastTaskID == in.LastTaskID &&
		equality.EqualExcept(prev, in, nodeConfigVolatile...) {
		return s
	}

	next := *in
	next.LastTask = nil
	// The agent never sends last_task; keep the detail we already fetched as
	// long as it still describes the same task.
	if prev != nil && prev.LastTaskID == in.LastTaskID {
		next.LastTask = prev.LastTask
	}
	return &State{NodeConfig: &next, FullNode: s.FullNode}
}

func reduceLastTask(s *State, t *model.TaskAssignment) *State {
	cfg := s.NodeConfig
	if cfg == nil {
		return s
	}
	// A detail that resolves after the config moved on to another task is stale.
	if t != nil && t.ID != "" && t.ID != cfg.LastTaskID {
		return s
	}
	if cfg.LastTask == t {
		return s
	}
	if cfg.LastTask != nil && t != nil && equality.Equal(*cfg.LastTask, *t) {
		return s
	}

	next := *cfg
	next.LastTask = t
	return &State{NodeConfig: &next, FullNode: s.FullNode}
}

func reduceFullNode(s *State, in *model.FullNode) *State {
	prev := s.FullNode
	if in == nil {
		if prev == nil {
			return s
		}
		return &State{NodeConfig: s.NodeConfig}
	}
	if prev != nil && equality.EqualExcept(prev, in, fullNodeVolatile...) {
		return s
	}
	next := *in
	return &State{NodeConfig: s.NodeConfig, FullNode: &next}
}
