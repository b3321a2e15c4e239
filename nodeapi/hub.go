package nodeapi

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"nodeconsole/model"
)

// DefaultHubTimeout bounds calls to the hub.
const DefaultHubTimeout = 5 * time.Second

// HubClient calls the central hub service.
type HubClient struct {
	*client
}

func NewHubClient(baseURL string, timeout time.Duration) *HubClient {
	if timeout <= 0 {
		timeout = DefaultHubTimeout
	}
	return &HubClient{client: newClient("hub", baseURL, timeout)}
}

// hubResources accepts both the {cpu,ram} and {free_cpu,free_ram} spellings
// the hub uses for resource maps.
type hubResources map[string]float64

func (r hubResources) resources() model.Resources {
	pick := func(keys ...string) float64 {
		for _, k := range keys {
			if v, ok := r[k]; ok {
				return v
			}
		}
		return 0
	}
	return model.Resources{
		CPU: pick("cpu", "free_cpu"),
		RAM: pick("ram", "free_ram"),
	}
}

type hubNode struct {
	Name              string       `json:"name"`
	Status            string       `json:"status"`
	ResourcesCapacity hubResources `json:"resources_capacity"`
	FreeResources     hubResources `json:"free_resources"`
	IPAddress         string       `json:"ip_address"`
	TrustIndex        float64      `json:"trust_index"`
}

// FullNode fetches the hub's record for a node.
func (c *HubClient) FullNode(ctx context.Context, nodeID string) (*model.FullNode, error) {
	var n hubNode
	if err := c.get(ctx, "/nodes/"+url.PathEscape(nodeID), &n); err != nil {
		return nil, err
	}
	return &model.FullNode{
		Name:              n.Name,
		Status:            n.Status,
		ResourceCapacity:  n.ResourcesCapacity.resources(),
		ResourceAvailable: n.FreeResources.resources(),
		IPAddress:         n.IPAddress,
		TrustIndex:        n.TrustIndex,
	}, nil
}

type hubTask struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Assignment  *struct {
		StartedAt   *string `json:"started_at"`
		CompletedAt *string `json:"completed_at"`
	} `json:"assignment"`
}

// TaskDetails fetches a task and derives its assignment on nodeID.
func (c *HubClient) TaskDetails(ctx context.Context, taskID, nodeID string) (*model.TaskAssignment, error) {
	path := fmt.Sprintf("/tasks/%s?node_id=%s", url.PathEscape(taskID), url.QueryEscape(nodeID))
	var t hubTask
	if err := c.get(ctx, path, &t); err != nil {
		return nil, err
	}
	a := &model.TaskAssignment{ID: t.ID, Description: t.Description}
	if t.Assignment != nil {
		if t.Assignment.StartedAt != nil {
			a.StartedAt = *t.Assignment.StartedAt
		}
		if t.Assignment.CompletedAt != nil {
			a.CompletedAt = *t.Assignment.CompletedAt
		}
	}
	a.Status = model.AssignmentStatus(a.CompletedAt)
	return a, nil
}

// SubmittedTasks lists the tasks submitted by nodeID.
func (c *HubClient) SubmittedTasks(ctx context.Context, nodeID string) ([]model.Task, error) {
	var tasks []model.Task
	if err := c.get(ctx, "/tasks/submitted_tasks?node_id="+url.QueryEscape(nodeID), &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	return tasks, nil
}

// SubmitResponse is the hub's answer to a task submission.
type SubmitResponse struct {
	Message string `json:"message"`
	TaskID  string `json:"task_id"`
}

// SubmitTask submits a new task on behalf of a registered node.
func (c *HubClient) SubmitTask(ctx context.Context, p *model.SubmitTaskPayload) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.post(ctx, "/tasks/submit_task/", p, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
