package engine

import (
	"nodeconsole/model"
	"nodeconsole/node"
)

// snapshotEmitter adapts the engine's EventBus to the snapshot.Emitter interface.
type snapshotEmitter struct {
	bus *EventBus
}

func (e *snapshotEmitter) EmitNodeConfigChanged(cfg *model.NodeConfig, seq uint64) {
	e.bus.Emit(Event{Type: EventNodeConfigChanged, Payload: NodeConfigEvent{Seq: seq, Config: cfg}})
}

func (e *snapshotEmitter) EmitFullNodeChanged(n *model.FullNode, seq uint64) {
	e.bus.Emit(Event{Type: EventFullNodeChanged, Payload: FullNodeEvent{Seq: seq, Node: n}})
}

func (e *snapshotEmitter) EmitLastTaskChanged(cfg *model.NodeConfig, seq uint64) {
	e.bus.Emit(Event{Type: EventLastTaskChanged, Payload: LastTaskEvent{Seq: seq, Config: cfg}})
}

// nodeEmitter adapts the engine's EventBus to the node.Emitter interface.
type nodeEmitter struct {
	bus *EventBus
}

func (e *nodeEmitter) EmitBusyChanged(flags node.Flags) {
	e.bus.Emit(Event{Type: EventBusyChanged, Payload: BusyEvent{Flags: flags}})
}

func (e *nodeEmitter) EmitRefreshFailed(seq uint64, err error) {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	e.bus.Emit(Event{Type: EventRefreshFailed, Payload: RefreshFailedEvent{Seq: seq, Error: errStr}})
}
