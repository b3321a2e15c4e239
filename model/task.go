package model

import "strings"

// Assignment statuses derived from a hub task record.
const (
	AssignmentPending    = "pending"
	AssignmentInProgress = "in_progress"
	AssignmentCompleted  = "completed"
)

// Task statuses on the task-listing surface.
const (
	TaskValidating = "validating"
	TaskPending    = "pending"
	TaskInQueue    = "in_queue"
	TaskInProgress = "in_progress"
	TaskCompleted  = "completed"
	TaskValidated  = "validated"
	TaskFailed     = "failed"
	TaskInvalid    = "invalid"
)

// TaskAssignment is the execution record of a task on one node.
type TaskAssignment struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at,omitempty"`
	Status      string `json:"status"`
}

// AssignmentStatus derives the assignment status from its completion time.
func AssignmentStatus(completedAt string) string {
	if completedAt != "" {
		return AssignmentCompleted
	}
	return AssignmentInProgress
}

// ContainerSpec describes what a task runs.
type ContainerSpec struct {
	Image   string `json:"image"`
	Command string `json:"command"`
}

// TaskResult is the validated outcome of a task.
type TaskResult struct {
	TrustScore      *float64 `json:"trust_score,omitempty"`
	ValidatedOutput string   `json:"validated_output,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// Task is the full submission record.
type Task struct {
	ID                   string        `json:"id"`
	Status               string        `json:"status"`
	CreatedAt            string        `json:"created_at"`
	UpdatedAt            string        `json:"updated_at,omitempty"`
	Description          string        `json:"description"`
	ContainerSpec        ContainerSpec `json:"container_spec"`
	ResourceRequirements Resources     `json:"resource_requirements"`
	TrustIndexRequired   *float64      `json:"trust_index_required,omitempty"`
	OverlapCount         *int          `json:"overlap_count,omitempty"`
	Result               *TaskResult   `json:"result,omitempty"`
}

// SubmitTaskPayload is the body of a task submission.
type SubmitTaskPayload struct {
	Description          string        `json:"description"`
	ContainerSpec        ContainerSpec `json:"container_spec"`
	ResourceRequirements Resources     `json:"resource_requirements"`
	TrustIndexRequired   float64       `json:"trust_index_required"`
	OverlapCount         int           `json:"overlap_count"`
	SubmittedBy          string        `json:"submitted_by"`
}

// TaskStatusLabel turns a status into its display form.
func TaskStatusLabel(status string) string {
	if status == TaskInvalid {
		return "Invalid Docker Image"
	}
	words := strings.Split(strings.Replace(status, "_", " ", 1), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// UpdatedLabel is the caption shown next to a task's updated_at.
func UpdatedLabel(status string) string {
	switch status {
	case TaskValidated:
		return "Result validated at:"
	case TaskCompleted:
		return "All results submitted and awaiting validation since:"
	case TaskValidating:
		return "Docker image submitted and awaiting validation since:"
	default:
		return "Last update at:"
	}
}
