package model

import "testing"

func TestTrustLevel(t *testing.T) {
	cases := []struct {
		v    float64
		want string
	}{
		{0, "Low"},
		{4.99, "Low"},
		{5, "Moderate"},
		{7.9, "Moderate"},
		{8, "High"},
		{10, "High"},
	}
	for _, c := range cases {
		if got := TrustLevel(c.v); got != c.want {
			t.Errorf("TrustLevel(%v) = %q, want %q", c.v, got, c.want)
		}
	}
}

func TestTaskStatusLabel(t *testing.T) {
	cases := map[string]string{
		"in_progress": "In Progress",
		"in_queue":    "In Queue",
		"pending":     "Pending",
		"invalid":     "Invalid Docker Image",
	}
	for in, want := range cases {
		if got := TaskStatusLabel(in); got != want {
			t.Errorf("TaskStatusLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAssignmentStatus(t *testing.T) {
	if got := AssignmentStatus(""); got != AssignmentInProgress {
		t.Errorf("empty completed_at = %q, want %q", got, AssignmentInProgress)
	}
	if got := AssignmentStatus("2024-05-01T10:00:00Z"); got != AssignmentCompleted {
		t.Errorf("set completed_at = %q, want %q", got, AssignmentCompleted)
	}
}

func TestNodeConfigRegistered(t *testing.T) {
	var nilCfg *NodeConfig
	if nilCfg.Registered() {
		t.Error("nil config should not be registered")
	}
	if (&NodeConfig{Status: NodeUnregistered}).Registered() {
		t.Error("config without node_id should not be registered")
	}
	if !(&NodeConfig{NodeID: "n1", Status: NodeRegistered}).Registered() {
		t.Error("config with node_id should be registered")
	}
}

func TestUpdatedLabel(t *testing.T) {
	if got := UpdatedLabel(TaskValidated); got != "Result validated at:" {
		t.Errorf("validated label = %q", got)
	}
	if got := UpdatedLabel("in_queue"); got != "Last update at:" {
		t.Errorf("default label = %q", got)
	}
}
