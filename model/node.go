package model

// Node registration states reported by the local agent.
const (
	NodeUnregistered = "unregistered"
	NodeRegistered   = "registered"
)

// ResourceUsage is the agent's current CPU/RAM consumption.
type ResourceUsage struct {
	CPU float64 `json:"cpu"`
	RAM float64 `json:"ram"`
}

// NodeConfig is the local agent's view of this node. LastTask is never sent by
// the agent; it is attached after a separate hub lookup and must be carried
// across replacements while LastTaskID stays the same.
type NodeConfig struct {
	NodeID        string          `json:"node_id,omitempty"`
	Status        string          `json:"status"`
	IsRunning     bool            `json:"is_running,omitempty"`
	LastTaskID    string          `json:"last_task_id,omitempty"`
	LastTask      *TaskAssignment `json:"last_task,omitempty"`
	ResourceUsage *ResourceUsage  `json:"resource_usage,omitempty"`
}

// Registered reports whether the agent knows its hub identity.
func (c *NodeConfig) Registered() bool {
	return c != nil && c.NodeID != ""
}

// Resources is a CPU/RAM pair used for capacity and availability.
type Resources struct {
	CPU float64 `json:"cpu"`
	RAM float64 `json:"ram"`
}

// FullNode is the hub's descriptive and trust record for a node.
type FullNode struct {
	Name              string    `json:"name"`
	Status            string    `json:"status"`
	ResourceCapacity  Resources `json:"resourceCapacity"`
	ResourceAvailable Resources `json:"resourceAvailable"`
	IPAddress         string    `json:"ipAddress"`
	TrustIndex        float64   `json:"trustIndex"`
}

// TrustLevel buckets a 0-10 trust index for display.
func TrustLevel(v float64) string {
	switch {
	case v >= 8:
		return "High"
	case v >= 5:
		return "Moderate"
	default:
		return "Low"
	}
}
