package snapshot

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodeconsole/model"
)

func registered(lastTaskID string) *model.NodeConfig {
	return &model.NodeConfig{
		NodeID:        "n1",
		Status:        model.NodeRegistered,
		IsRunning:     true,
		LastTaskID:    lastTaskID,
		ResourceUsage: &model.ResourceUsage{CPU: 12, RAM: 30},
	}
}

func TestSetNodeConfigIdempotent(t *testing.T) {
	s1 := Reduce(&State{}, NodeConfigAction(registered("t1")))
	require.NotNil(t, s1.NodeConfig)

	s2 := Reduce(s1, NodeConfigAction(registered("t1")))
	assert.Same(t, s1, s2, "same payload must not commit again")
}

func TestSetNodeConfigIgnoresResourceUsage(t *testing.T) {
	s1 := Reduce(&State{}, NodeConfigAction(registered("t1")))

	in := registered("t1")
	in.ResourceUsage = &model.ResourceUsage{CPU: 99, RAM: 99}
	s2 := Reduce(s1, NodeConfigAction(in))
	assert.Same(t, s1, s2)
}

func TestSetNodeConfigCarriesLastTask(t *testing.T) {
	task := &model.TaskAssignment{ID: "t1", Description: "render", Status: model.AssignmentInProgress}
	s := Reduce(&State{}, NodeConfigAction(registered("t1")))
	s = Reduce(s, LastTaskAction(task))
	require.Same(t, task, s.NodeConfig.LastTask)

	changed := registered("t1")
	changed.IsRunning = false
	next := Reduce(s, NodeConfigAction(changed))
	require.NotSame(t, s, next)
	assert.False(t, next.NodeConfig.IsRunning)
	assert.Same(t, task, next.NodeConfig.LastTask, "last_task survives while last_task_id is unchanged")
	assert.NotSame(t, changed, next.NodeConfig, "incoming payload is copied, not stored")

	moved := Reduce(next, NodeConfigAction(registered("t2")))
	require.NotSame(t, next, moved)
	assert.Equal(t, "t2", moved.NodeConfig.LastTaskID)
	assert.Nil(t, moved.NodeConfig.LastTask, "a new task invalidates the old detail")
}

func TestSetNodeConfigDropsStrayLastTask(t *testing.T) {
	in := registered("t1")
	in.LastTask = &model.TaskAssignment{ID: "t1"}
	s := Reduce(&State{}, NodeConfigAction(in))
	assert.Nil(t, s.NodeConfig.LastTask)
}

func TestSetNodeConfigKeepsFullNode(t *testing.T) {
	node := &model.FullNode{Name: "alpha"}
	s := Reduce(&State{}, FullNodeAction(node))
	s = Reduce(s, NodeConfigAction(registered("")))
	assert.Equal(t, "alpha", s.FullNode.Name)
}

func TestSetLastTaskWithoutConfig(t *testing.T) {
	s := &State{}
	next := Reduce(s, LastTaskAction(&model.TaskAssignment{ID: "t1"}))
	assert.Same(t, s, next)
}

func TestSetLastTaskRejectsMismatchedID(t *testing.T) {
	s := Reduce(&State{}, NodeConfigAction(registered("t2")))
	next := Reduce(s, LastTaskAction(&model.TaskAssignment{ID: "t1"}))
	assert.Same(t, s, next)
	assert.Nil(t, next.NodeConfig.LastTask)
}

func TestSetLastTaskLeavesOtherFields(t *testing.T) {
	s := Reduce(&State{}, NodeConfigAction(registered("t1")))
	task := &model.TaskAssignment{ID: "t1", StartedAt: "2024-01-01T00:00:00Z", Status: model.AssignmentInProgress}
	next := Reduce(s, LastTaskAction(task))

	want := *s.NodeConfig
	want.LastTask = task
	if diff := cmp.Diff(&want, next.NodeConfig); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, s.NodeConfig.LastTask, "previous state is not mutated")

	again := Reduce(next, LastTaskAction(&model.TaskAssignment{ID: "t1", StartedAt: "2024-01-01T00:00:00Z", Status: model.AssignmentInProgress}))
	assert.Same(t, next, again, "an equal detail is a no-op")
}

func TestSetFullNode(t *testing.T) {
	base := &model.FullNode{
		Name:              "alpha",
		Status:            "active",
		ResourceCapacity:  model.Resources{CPU: 8, RAM: 16},
		ResourceAvailable: model.Resources{CPU: 4, RAM: 8},
		IPAddress:         "10.0.0.2",
		TrustIndex:        7.5,
	}
	s1 := Reduce(&State{}, FullNodeAction(base))
	require.NotNil(t, s1.FullNode)

	fluctuating := *base
	fluctuating.ResourceAvailable = model.Resources{CPU: 1, RAM: 1}
	s2 := Reduce(s1, FullNodeAction(&fluctuating))
	assert.Same(t, s1, s2, "available resources alone do not commit")

	trusted := *base
	trusted.TrustIndex = 9
	s3 := Reduce(s2, FullNodeAction(&trusted))
	require.NotSame(t, s2, s3)
	assert.Equal(t, 9.0, s3.FullNode.TrustIndex)
}

func TestReduceUnknownAction(t *testing.T) {
	s := &State{}
	assert.Same(t, s, Reduce(s, Action{}))
}

func TestReduceNilConfigClears(t *testing.T) {
	s := Reduce(&State{}, NodeConfigAction(registered("")))
	cleared := Reduce(s, NodeConfigAction(nil))
	assert.Nil(t, cleared.NodeConfig)
	assert.Same(t, cleared, Reduce(cleared, NodeConfigAction(nil)))
}
