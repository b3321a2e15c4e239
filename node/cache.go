package node

import (
	"context"
	"sync"

	"nodeconsole/model"
)

// TaskFetcher looks up a task's assignment on a node.
type TaskFetcher interface {
	TaskDetails(ctx context.Context, taskID, nodeID string) (*model.TaskAssignment, error)
}

// DetailCache gates task detail lookups on the id of the most recently
// requested task. A task's identity never changes once assigned, so a
// repeated request for the held id is answered without a network call, even
// while the first fetch is still in flight.
type DetailCache struct {
	fetcher TaskFetcher

	mu   sync.Mutex
	held string
}

func NewDetailCache(fetcher TaskFetcher) *DetailCache {
	return &DetailCache{fetcher: fetcher}
}

// Request fetches the detail for taskID unless it is already held. fresh is
// false when the request was deduplicated; the caller then has nothing to
// commit.
func (c *DetailCache) Request(ctx context.Context, taskID, nodeID string) (task *model.TaskAssignment, fresh bool, err error) {
	c.mu.Lock()
	if taskID == "" || taskID == c.held {
		c.mu.Unlock()
		return nil, false, nil
	}
	c.held = taskID
	c.mu.Unlock()

	task, err = c.fetcher.TaskDetails(ctx, taskID, nodeID)
	if err != nil {
		c.Forget(taskID)
		return nil, false, err
	}
	return task, true, nil
}

// Forget releases taskID so the next request fetches it again.
func (c *DetailCache) Forget(taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held == taskID {
		c.held = ""
	}
}

// Held returns the id of the most recently requested task.
func (c *DetailCache) Held() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.held
}
