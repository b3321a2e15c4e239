package nodeapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodeconsole/model"
)

func testServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestAgentNodeConfig(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/node" {
			t.Errorf("path = %q, want /api/node", r.URL.Path)
		}
		w.Write([]byte(`{"status":"registered","node_id":"n1","is_running":true,"last_task_id":"t1",
			"resource_usage":{"cpu":12.5,"ram":40},"last_task":{"id":"bogus"}}`))
	})
	c := NewAgentClient(srv.URL+"/api/", time.Second)

	cfg, err := c.NodeConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "n1", cfg.NodeID)
	assert.True(t, cfg.IsRunning)
	assert.Equal(t, "t1", cfg.LastTaskID)
	assert.Equal(t, 12.5, cfg.ResourceUsage.CPU)
	assert.Nil(t, cfg.LastTask)
}

func TestAgentUnregistered(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"unregistered","message":"Node is not registered."}`))
	})
	c := NewAgentClient(srv.URL, 0)

	cfg, err := c.NodeConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.NodeUnregistered, cfg.Status)
	assert.False(t, cfg.Registered())
}

func TestAgentActions(t *testing.T) {
	var got []string
	var name string
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		got = append(got, r.URL.Path)
		if r.URL.Path == "/node/register" {
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			name = body["name"]
		}
		w.WriteHeader(http.StatusOK)
	})
	c := NewAgentClient(srv.URL, time.Second)
	ctx := context.Background()

	require.NoError(t, c.Register(ctx, "alpha"))
	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Stop(ctx))
	assert.Equal(t, []string{"/node/register", "/node/start", "/node/stop"}, got)
	assert.Equal(t, "alpha", name)
}

func TestStatusError(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Node already registered"}`, http.StatusConflict)
	})
	c := NewAgentClient(srv.URL, time.Second)

	err := c.Register(context.Background(), "alpha")
	require.Error(t, err)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusConflict, se.Code)
	assert.Equal(t, "agent", se.Service)
	assert.Equal(t, "/node/register", se.Path)
	assert.Contains(t, err.Error(), "Node already registered")
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHubClient(url, time.Second).FullNode(context.Background(), "n1")
	require.Error(t, err)
	var se *StatusError
	assert.False(t, errors.As(err, &se))
}

func TestHubFullNode(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/nodes/n1" {
			t.Errorf("path = %q, want /nodes/n1", r.URL.Path)
		}
		w.Write([]byte(`{"name":"alpha","status":"active",
			"resources_capacity":{"cpu":8,"ram":16},
			"free_resources":{"free_cpu":3.5,"free_ram":6},
			"ip_address":"10.0.0.2","trust_index":8.25}`))
	})
	c := NewHubClient(srv.URL, time.Second)

	n, err := c.FullNode(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, &model.FullNode{
		Name:              "alpha",
		Status:            "active",
		ResourceCapacity:  model.Resources{CPU: 8, RAM: 16},
		ResourceAvailable: model.Resources{CPU: 3.5, RAM: 6},
		IPAddress:         "10.0.0.2",
		TrustIndex:        8.25,
	}, n)
}

func TestHubTaskDetails(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tasks/t1" {
			t.Errorf("path = %q, want /tasks/t1", r.URL.Path)
		}
		if r.URL.Query().Get("node_id") != "n1" {
			t.Errorf("node_id = %q, want n1", r.URL.Query().Get("node_id"))
		}
		w.Write([]byte(`{"id":"t1","description":"render",
			"assignment":{"node_id":"n1","started_at":"2024-05-01T10:00:00Z","completed_at":null}}`))
	})
	c := NewHubClient(srv.URL, time.Second)

	a, err := c.TaskDetails(context.Background(), "t1", "n1")
	require.NoError(t, err)
	assert.Equal(t, "t1", a.ID)
	assert.Equal(t, "2024-05-01T10:00:00Z", a.StartedAt)
	assert.Empty(t, a.CompletedAt)
	assert.Equal(t, model.AssignmentInProgress, a.Status)
}

func TestHubTaskDetailsCompletedWithoutAssignment(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"t2","description":"x","assignment":{"message":"No assignment found for this node."}}`))
	})
	a, err := NewHubClient(srv.URL, time.Second).TaskDetails(context.Background(), "t2", "n1")
	require.NoError(t, err)
	assert.Empty(t, a.StartedAt)
	assert.Equal(t, model.AssignmentInProgress, a.Status)

	srv2 := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"t3","description":"x","assignment":{"started_at":"a","completed_at":"b"}}`))
	})
	a, err = NewHubClient(srv2.URL, time.Second).TaskDetails(context.Background(), "t3", "n1")
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentCompleted, a.Status)
	assert.Equal(t, "b", a.CompletedAt)
}

func TestHubSubmittedTasks(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tasks/submitted_tasks" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`[{"id":"t1","status":"in_queue","created_at":"2024-05-01T10:00:00Z","description":"d",
			"container_spec":{"image":"alpine","command":"echo hi"},
			"resource_requirements":{"cpu":1,"ram":2},"trust_index_required":5,"overlap_count":2}]`))
	})
	tasks, err := NewHubClient(srv.URL, time.Second).SubmittedTasks(context.Background(), "n1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "alpine", tasks[0].ContainerSpec.Image)
	require.NotNil(t, tasks[0].OverlapCount)
	assert.Equal(t, 2, *tasks[0].OverlapCount)
}

func TestHubSubmitTask(t *testing.T) {
	srv := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tasks/submit_task/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var p model.SubmitTaskPayload
		json.NewDecoder(r.Body).Decode(&p)
		if p.SubmittedBy != "n1" || p.ContainerSpec.Image != "alpine" {
			t.Errorf("payload = %+v", p)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"message":"Task submitted and queued for validation","task_id":"t9"}`))
	})
	resp, err := NewHubClient(srv.URL, time.Second).SubmitTask(context.Background(), &model.SubmitTaskPayload{
		Description:   "d",
		ContainerSpec: model.ContainerSpec{Image: "alpine", Command: "echo"},
		SubmittedBy:   "n1",
	})
	require.NoError(t, err)
	assert.Equal(t, "t9", resp.TaskID)
}

func TestReconfigure(t *testing.T) {
	c := NewHubClient("http://a/", time.Second)
	assert.Equal(t, "http://a", c.BaseURL())
	c.Reconfigure("http://b/", 2*time.Second)
	assert.Equal(t, "http://b", c.BaseURL())
	assert.Equal(t, 2*time.Second, c.httpClient.Timeout)

	c.Reconfigure("http://c", 0)
	assert.Equal(t, "http://c", c.BaseURL())
	assert.Equal(t, 2*time.Second, c.httpClient.Timeout)
}
