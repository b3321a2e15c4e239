package messaging

import (
	"fmt"

	"nodeconsole/model"
	"nodeconsole/protocol"
)

// Enqueuer accepts encoded messages for later delivery.
type Enqueuer interface {
	EnqueueOutbox(topic string, payload []byte, msgType, clientID string) error
}

// SnapshotReporter envelopes committed snapshots and activity samples and
// queues them in the outbox.
type SnapshotReporter struct {
	outbox        Enqueuer
	stationID     string
	snapshotTopic string
	activityTopic string
	debugFn       func(string, ...any)
}

func NewSnapshotReporter(outbox Enqueuer, stationID, snapshotTopic, activityTopic string) *SnapshotReporter {
	return &SnapshotReporter{
		outbox:        outbox,
		stationID:     stationID,
		snapshotTopic: snapshotTopic,
		activityTopic: activityTopic,
	}
}

func (r *SnapshotReporter) ReportNodeConfig(seq uint64, cfg *model.NodeConfig) error {
	nodeID := ""
	if cfg != nil {
		nodeID = cfg.NodeID
	}
	return r.enqueue(r.snapshotTopic, protocol.TypeNodeConfig, nodeID, seq, cfg)
}

func (r *SnapshotReporter) ReportFullNode(seq uint64, nodeID string, node *model.FullNode) error {
	return r.enqueue(r.snapshotTopic, protocol.TypeFullNode, nodeID, seq, node)
}

func (r *SnapshotReporter) ReportLastTask(seq uint64, cfg *model.NodeConfig) error {
	if cfg == nil || cfg.LastTask == nil {
		return nil
	}
	return r.enqueue(r.snapshotTopic, protocol.TypeLastTask, cfg.NodeID, seq, cfg.LastTask)
}

func (r *SnapshotReporter) ReportNetworkActivity(data model.NetworkActivityData) error {
	return r.enqueue(r.activityTopic, protocol.TypeNetworkActivity, "", 0, data)
}

func (r *SnapshotReporter) enqueue(topic, msgType, nodeID string, seq uint64, payload any) error {
	env, err := protocol.NewEnvelope(msgType, protocol.Source{
		Role:    protocol.RoleConsole,
		Station: r.stationID,
		NodeID:  nodeID,
	}, seq, payload)
	if err != nil {
		return err
	}
	data, err := env.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", msgType, err)
	}
	if err := r.outbox.EnqueueOutbox(topic, data, msgType, r.stationID); err != nil {
		return fmt.Errorf("enqueue %s: %w", msgType, err)
	}
	r.debugf("reporter: queued %s seq=%d on %s", msgType, seq, topic)
	return nil
}

// SetDebugLog sets a debug logging function.
func (r *SnapshotReporter) SetDebugLog(fn func(string, ...any)) {
	r.debugFn = fn
}

func (r *SnapshotReporter) debugf(format string, args ...any) {
	if r.debugFn != nil {
		r.debugFn(format, args...)
	}
}
