package model

// NetworkActivityData is the fleet-wide aggregate pushed by the hub. It has no
// identity and replaces the previous sample wholesale.
type NetworkActivityData struct {
	ActiveNodes       int     `json:"active_nodes"`
	TotalCPU          float64 `json:"total_cpu"`
	TotalRAM          float64 `json:"total_ram"`
	PendingTasks      int     `json:"pending_tasks"`
	InQueueTasks      int     `json:"in_queue_tasks"`
	InProgressTasks   int     `json:"in_progress_tasks"`
	CompletedTasks    int     `json:"completed_tasks"`
	ValidatedTasks    int     `json:"validated_tasks"`
	FailedTasks       int     `json:"failed_tasks"`
	AverageTrustIndex float64 `json:"average_trust_index"`
}
