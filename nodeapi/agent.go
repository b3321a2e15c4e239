package nodeapi

import (
	"context"
	"time"

	"nodeconsole/model"
)

// DefaultAgentTimeout bounds calls to the local agent.
const DefaultAgentTimeout = 15 * time.Second

// AgentClient calls the node agent running next to this process.
type AgentClient struct {
	*client
}

func NewAgentClient(baseURL string, timeout time.Duration) *AgentClient {
	if timeout <= 0 {
		timeout = DefaultAgentTimeout
	}
	return &AgentClient{client: newClient("agent", baseURL, timeout)}
}

// NodeConfig fetches the agent's view of this node.
func (c *AgentClient) NodeConfig(ctx context.Context) (*model.NodeConfig, error) {
	var cfg model.NodeConfig
	if err := c.get(ctx, "/node", &cfg); err != nil {
		return nil, err
	}
	// The agent never owns the task detail.
	cfg.LastTask = nil
	return &cfg, nil
}

// Register asks the agent to register this node with the hub under name.
func (c *AgentClient) Register(ctx context.Context, name string) error {
	return c.post(ctx, "/node/register", map[string]string{"name": name}, nil)
}

// Start starts the agent's task runner.
func (c *AgentClient) Start(ctx context.Context) error {
	return c.post(ctx, "/node/start", nil, nil)
}

// Stop stops the agent's task runner.
func (c *AgentClient) Stop(ctx context.Context) error {
	return c.post(ctx, "/node/stop", nil, nil)
}
