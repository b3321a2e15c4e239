package equality

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"nodeconsole/model"
)

func TestEqualExceptMaps(t *testing.T) {
	a := map[string]any{"a": 1, "b": 2}
	b := map[string]any{"a": 1, "b": 99}

	assert.True(t, EqualExcept(a, b, "b"), "excluded field should be ignored")
	assert.False(t, EqualExcept(a, b), "no exclusions should see the difference")
	assert.False(t, Equal(map[string]any{"a": 1}, map[string]any{"a": 1, "b": 2}))
	assert.False(t, EqualExcept(map[string]any{"a": 1}, map[string]any{"a": 1, "b": 2}, "b"),
		"field count mismatch wins over exclusions")
	assert.True(t, Equal(map[string]any{}, map[string]any{}))
}

func TestEqualStructsTreatAbsentAsZero(t *testing.T) {
	// the same two payloads, once as maps and once as structs
	a := map[string]any{"node_id": "n1"}
	b := map[string]any{"node_id": "n1", "last_task_id": ""}
	assert.False(t, Equal(a, b))

	assert.True(t, Equal(&model.NodeConfig{NodeID: "n1"}, &model.NodeConfig{NodeID: "n1", LastTaskID: ""}))
}

func TestEqualMissingKey(t *testing.T) {
	a := map[string]any{"a": 1, "b": 2}
	b := map[string]any{"a": 1, "c": 2}
	assert.False(t, Equal(a, b))
}

func TestEqualStructs(t *testing.T) {
	usage := &model.ResourceUsage{CPU: 10, RAM: 20}
	a := &model.NodeConfig{NodeID: "n1", Status: model.NodeRegistered, ResourceUsage: usage}
	b := &model.NodeConfig{NodeID: "n1", Status: model.NodeRegistered, ResourceUsage: usage}
	assert.True(t, Equal(a, b))

	b.IsRunning = true
	assert.False(t, Equal(a, b))
	assert.True(t, EqualExcept(a, b, "is_running"))
	assert.True(t, EqualExcept(a, b, "IsRunning"), "go field names are accepted too")
}

func TestEqualIsOneLevel(t *testing.T) {
	a := &model.NodeConfig{NodeID: "n1", ResourceUsage: &model.ResourceUsage{CPU: 1}}
	b := &model.NodeConfig{NodeID: "n1", ResourceUsage: &model.ResourceUsage{CPU: 1}}

	// Distinct pointers with identical contents are different references.
	assert.False(t, Equal(a, b))
	assert.True(t, EqualExcept(a, b, "resource_usage"))
}

func TestEqualNestedValueStruct(t *testing.T) {
	a := model.FullNode{Name: "x", ResourceAvailable: model.Resources{CPU: 1, RAM: 2}}
	b := model.FullNode{Name: "x", ResourceAvailable: model.Resources{CPU: 1, RAM: 2}}
	assert.True(t, Equal(a, b))

	b.ResourceAvailable.CPU = 3
	assert.False(t, Equal(a, b))
	assert.True(t, EqualExcept(a, b, "resourceAvailable"))
}

func TestEqualNil(t *testing.T) {
	var a, b *model.FullNode
	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, &model.FullNode{}))
	assert.False(t, Equal(&model.FullNode{}, nil))
	assert.True(t, Equal(nil, nil))
}

func TestEqualDifferentTypes(t *testing.T) {
	assert.False(t, Equal(&model.FullNode{}, &model.NodeConfig{}))
	assert.False(t, Equal(map[string]any{"a": 1}, map[string]any{"a": int64(1)}))
}

func TestEqualSameReference(t *testing.T) {
	n := &model.FullNode{Name: "x"}
	assert.True(t, Equal(n, n))
}
