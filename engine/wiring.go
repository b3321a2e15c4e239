package engine

import (
	"context"
	"log"

	"nodeconsole/model"
	"nodeconsole/push"
	"nodeconsole/store"
)

// trimEvery is how many journal appends pass between trims.
const trimEvery = 100

// wireEventHandlers sets up the event chain:
// NodeConfigChanged → task update subscription, journal, outbox
// FullNodeChanged / LastTaskChanged → journal, outbox
// NetworkActivity → activity samples, outbox
func (e *Engine) wireEventHandlers() {
	e.Events.SubscribeTypes(func(evt Event) {
		e.handleNodeConfigChanged(evt.Payload.(NodeConfigEvent))
	}, EventNodeConfigChanged)

	e.Events.SubscribeTypes(func(evt Event) {
		e.handleFullNodeChanged(evt.Payload.(FullNodeEvent))
	}, EventFullNodeChanged)

	e.Events.SubscribeTypes(func(evt Event) {
		e.handleLastTaskChanged(evt.Payload.(LastTaskEvent))
	}, EventLastTaskChanged)

	e.Events.SubscribeTypes(func(evt Event) {
		e.recordNetworkActivity(evt.Payload.(NetworkActivityEvent).Data)
	}, EventNetworkActivity)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(RefreshFailedEvent)
		e.debugFn("engine: cycle %d failed: %s", ev.Seq, ev.Error)
	}, EventRefreshFailed)
}

func (e *Engine) handleNodeConfigChanged(ev NodeConfigEvent) {
	nodeID := ""
	if ev.Config != nil {
		nodeID = ev.Config.NodeID
	}
	e.syncTaskSubscription(nodeID)
	e.journal(ev.Seq, store.KindNodeConfig, nodeID, ev.Config)
	if e.reporter != nil {
		if err := e.reporter.ReportNodeConfig(ev.Seq, ev.Config); err != nil {
			log.Printf("engine: report node config: %v", err)
		}
	}
}

func (e *Engine) handleFullNodeChanged(ev FullNodeEvent) {
	nodeID := ""
	if cfg := e.snap.NodeConfig(); cfg != nil {
		nodeID = cfg.NodeID
	}
	e.journal(ev.Seq, store.KindFullNode, nodeID, ev.Node)
	if e.reporter != nil {
		if err := e.reporter.ReportFullNode(ev.Seq, nodeID, ev.Node); err != nil {
			log.Printf("engine: report full node: %v", err)
		}
	}
}

func (e *Engine) handleLastTaskChanged(ev LastTaskEvent) {
	if ev.Config == nil || ev.Config.LastTask == nil {
		return
	}
	e.journal(ev.Seq, store.KindLastTask, ev.Config.NodeID, ev.Config.LastTask)
	if e.reporter != nil {
		if err := e.reporter.ReportLastTask(ev.Seq, ev.Config); err != nil {
			log.Printf("engine: report last task: %v", err)
		}
	}
}

// syncTaskSubscription keeps exactly one task update subscription, for the
// current node id. A new id replaces the old subscription, which is closed
// outside pushMu since its reader may be waiting on spawn, and triggers a
// first load of the node's submitted tasks.
func (e *Engine) syncTaskSubscription(nodeID string) {
	e.pushMu.Lock()
	if e.stopped || nodeID == e.taskNodeID {
		e.pushMu.Unlock()
		return
	}
	old := e.taskSub
	e.taskSub = nil
	e.taskNodeID = nodeID
	if nodeID != "" {
		e.taskSub = push.SubscribeTaskUpdates(e.source, nodeID, e.handleRefetch, e.pushOptions(push.TaskUpdates(nodeID)))
	}
	e.pushMu.Unlock()

	if old != nil {
		old.Unsubscribe()
		e.debugFn("engine: closed task updates for previous node")
	}
	if nodeID == "" {
		return
	}
	e.logFn("engine: following task updates for node %s", nodeID)
	e.spawn(func(ctx context.Context) {
		if _, err := e.tracker.Load(ctx, nodeID); err != nil {
			log.Printf("engine: load submitted tasks: %v", err)
		}
	})
}

// handleRefetch runs on the push reader; the work goes to the background so
// the reader is never blocked on a refresh.
func (e *Engine) handleRefetch(m push.Message) {
	e.debugFn("engine: refetch signal for %s", m.NodeID)
	e.spawn(func(ctx context.Context) {
		if err := e.nodeMgr.Refresh(ctx); err != nil {
			log.Printf("engine: refetch: %v", err)
		}
		if _, err := e.tracker.Load(ctx, m.NodeID); err != nil {
			log.Printf("engine: refetch submitted tasks: %v", err)
		}
	})
}

func (e *Engine) handleNetworkActivity(data model.NetworkActivityData) {
	e.activityMu.Lock()
	e.activity = data
	e.hasActivity = true
	e.activityMu.Unlock()
	e.Events.Emit(Event{Type: EventNetworkActivity, Payload: NetworkActivityEvent{Data: data}})
}

func (e *Engine) recordNetworkActivity(data model.NetworkActivityData) {
	if e.db != nil {
		if _, err := e.db.InsertNetworkActivity(data); err != nil {
			log.Printf("engine: store network activity: %v", err)
		}
	}
	if e.reporter != nil {
		if err := e.reporter.ReportNetworkActivity(data); err != nil {
			log.Printf("engine: report network activity: %v", err)
		}
	}
}

func (e *Engine) journal(seq uint64, kind, nodeID string, v any) {
	if e.db == nil || !e.cfg.Journal.Enabled {
		return
	}
	if _, err := e.db.AppendSnapshot(seq, kind, nodeID, v); err != nil {
		log.Printf("engine: journal %s: %v", kind, err)
		return
	}
	keep := e.cfg.Journal.MaxEntries
	e.journalMu.Lock()
	e.journalWrites++
	trim := keep > 0 && e.journalWrites%trimEvery == 0
	e.journalMu.Unlock()
	if !trim {
		return
	}
	if n, err := e.db.TrimSnapshots(keep); err != nil {
		log.Printf("engine: trim journal: %v", err)
	} else if n > 0 {
		e.debugFn("engine: trimmed %d journal entries", n)
	}
}
