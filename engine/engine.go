// Package engine wires the node poller, the push subscriptions, the task
// tracker, persistence and messaging into one running console.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"nodeconsole/config"
	"nodeconsole/equality"
	"nodeconsole/messaging"
	"nodeconsole/model"
	"nodeconsole/node"
	"nodeconsole/nodeapi"
	"nodeconsole/push"
	"nodeconsole/report"
	"nodeconsole/snapshot"
	"nodeconsole/store"
	"nodeconsole/tasks"
)

// LogFunc is the logging callback signature.
type LogFunc func(format string, args ...any)

var ErrNotRegistered = errors.New("node is not registered")

// Hub is everything the engine calls on the hub service.
type Hub interface {
	node.HubAPI
	tasks.HubAPI
}

// Config holds the parameters needed to create an Engine.
type Config struct {
	AppConfig  *config.Config
	ConfigPath string
	DB         *store.DB
	LogFunc    LogFunc
	Debug      bool

	// Optional collaborators, built from AppConfig when nil.
	Agent     node.AgentAPI
	Hub       Hub
	Source    push.Source
	Publisher messaging.Publisher
	Clock     clockwork.Clock
}

// Engine owns every subsystem of the console.
type Engine struct {
	cfg     *config.Config
	cfgPath string
	db      *store.DB
	logFn   LogFunc
	debugFn LogFunc
	clock   clockwork.Clock

	agent  node.AgentAPI
	hub    Hub
	source push.Source
	redis  *redis.Client

	snap    *snapshot.Store
	nodeMgr *node.Manager
	tracker *tasks.Tracker

	publisher messaging.Publisher
	msgClient *messaging.Client
	reporter  *messaging.SnapshotReporter
	drainer   *messaging.OutboxDrainer

	pushMu      sync.Mutex
	activitySub *push.Subscription
	taskSub     *push.Subscription
	taskNodeID  string
	stopped     bool

	activityMu  sync.RWMutex
	activity    model.NetworkActivityData
	hasActivity bool

	stableMu sync.Mutex
	stable   *model.NodeConfig

	journalMu     sync.Mutex
	journalWrites int

	Events   *EventBus
	ctx      context.Context
	cancel   context.CancelFunc
	stopChan chan struct{}
	bg       sync.WaitGroup
}

// New creates an Engine. Call Start to wire and run it.
func New(c Config) *Engine {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = func(string, ...any) {}
	}
	debugFn := LogFunc(func(string, ...any) {})
	if c.Debug {
		debugFn = logFn
	}
	clock := c.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	cfg := c.AppConfig

	e := &Engine{
		cfg:       cfg,
		cfgPath:   c.ConfigPath,
		db:        c.DB,
		logFn:     logFn,
		debugFn:   debugFn,
		clock:     clock,
		agent:     c.Agent,
		hub:       c.Hub,
		source:    c.Source,
		publisher: c.Publisher,
		Events:    NewEventBus(clock),
		stopChan:  make(chan struct{}),
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())

	if e.agent == nil {
		e.agent = nodeapi.NewAgentClient(cfg.LocalAgent.URL, cfg.LocalAgent.Timeout)
	}
	if e.hub == nil {
		e.hub = nodeapi.NewHubClient(cfg.Hub.URL, cfg.Hub.Timeout)
	}
	if e.source == nil {
		e.source = e.newSource()
	}

	e.snap = snapshot.New(&snapshotEmitter{bus: e.Events})
	e.nodeMgr = node.NewManager(e.agent, e.hub, e.snap, &nodeEmitter{bus: e.Events}, node.Config{
		PollRate:     cfg.PollRate,
		CycleTimeout: cfg.CycleTimeout,
		Clock:        clock,
	})
	e.nodeMgr.SetDebugLog(debugFn)

	var cache tasks.Cache
	if e.db != nil {
		cache = e.db
	}
	e.tracker = tasks.NewTracker(e.hub, cache, func(nodeID string, list []model.Task) {
		e.Events.Emit(Event{Type: EventTasksUpdated, Payload: TasksUpdatedEvent{NodeID: nodeID, Tasks: list}})
	})
	return e
}

func (e *Engine) newSource() push.Source {
	pc := e.cfg.Push
	switch pc.Backend {
	case "redis":
		e.redis = redis.NewClient(&redis.Options{
			Addr:     pc.Redis.Address,
			Password: pc.Redis.Password,
			DB:       pc.Redis.DB,
		})
		src := push.NewRedisSource(e.redis)
		if pc.Redis.NetworkActivityChannel != "" {
			src.NetworkActivityChannel = pc.Redis.NetworkActivityChannel
		}
		if pc.Redis.TaskUpdatesChannel != "" {
			src.TaskUpdatesChannel = pc.Redis.TaskUpdatesChannel
		}
		return src
	default:
		src := push.NewSSESource(e.cfg.Hub.URL)
		if pc.NetworkActivityPath != "" {
			src.NetworkActivityPath = pc.NetworkActivityPath
		}
		if pc.TaskUpdatesPath != "" {
			src.TaskUpdatesPath = pc.TaskUpdatesPath
		}
		return src
	}
}

// Start wires event handlers, opens the network activity topic and starts
// polling.
func (e *Engine) Start() {
	e.wireEventHandlers()
	e.restore()
	e.startMessaging()

	e.pushMu.Lock()
	e.activitySub = push.SubscribeNetworkActivity(e.source, e.handleNetworkActivity, e.pushOptions(push.NetworkActivity()))
	e.pushMu.Unlock()

	e.nodeMgr.Start()
	e.logFn("engine started: agent=%s hub=%s push=%s poll=%s",
		e.cfg.LocalAgent.URL, e.cfg.Hub.URL, e.cfg.Push.Backend, e.cfg.PollRate)
}

// Stop shuts down all subsystems. Fetches still in flight finish against a
// closed snapshot store and change nothing.
func (e *Engine) Stop() {
	select {
	case <-e.stopChan:
		return
	default:
		close(e.stopChan)
	}

	e.nodeMgr.Stop()
	e.cancel()

	e.pushMu.Lock()
	e.stopped = true
	subs := []*push.Subscription{e.activitySub, e.taskSub}
	e.activitySub, e.taskSub, e.taskNodeID = nil, nil, ""
	e.pushMu.Unlock()
	for _, s := range subs {
		if s != nil {
			s.Unsubscribe()
		}
	}

	e.snap.Close()
	e.nodeMgr.Wait()
	e.bg.Wait()

	if e.drainer != nil {
		e.drainer.Stop()
	}
	if e.msgClient != nil {
		e.msgClient.Close()
	}
	if e.redis != nil {
		e.redis.Close()
	}
	e.logFn("engine stopped")
}

// restore seeds the submitted-task list from the last journaled config.
func (e *Engine) restore() {
	if e.db == nil {
		return
	}
	entry, err := e.db.LatestSnapshot(store.KindNodeConfig)
	if err != nil {
		log.Printf("engine: read last node config: %v", err)
		return
	}
	if entry == nil {
		return
	}
	var cfg model.NodeConfig
	if err := json.Unmarshal(entry.Payload, &cfg); err != nil || cfg.NodeID == "" {
		return
	}
	if err := e.tracker.Restore(cfg.NodeID); err != nil {
		log.Printf("engine: %v", err)
		return
	}
	e.debugFn("engine: restored submitted tasks for %s", cfg.NodeID)
}

func (e *Engine) startMessaging() {
	mc := e.cfg.Messaging
	if !mc.Enabled || e.db == nil {
		return
	}
	if e.publisher == nil {
		e.msgClient = messaging.NewClient(&e.cfg.Messaging)
		if err := e.msgClient.Connect(); err != nil {
			log.Printf("messaging: %v (outbox will hold messages until connected)", err)
		}
		e.publisher = e.msgClient
	}
	stationID := mc.StationID
	if stationID == "" {
		stationID = mc.MQTT.ClientID
	}
	if stationID == "" {
		stationID = "nodeconsole"
	}
	e.reporter = messaging.NewSnapshotReporter(e.db, stationID, mc.SnapshotTopic, mc.ActivityTopic)
	e.reporter.SetDebugLog(e.debugFn)
	e.drainer = messaging.NewOutboxDrainer(e.db, e.publisher, mc.OutboxDrainInterval, e.clock)
	e.drainer.Start()
}

func (e *Engine) pushOptions(topic push.Topic) push.Options {
	name := topic.String()
	return push.Options{
		Reconnect:  e.cfg.Push.Reconnect,
		MaxBackoff: e.cfg.Push.MaxBackoff,
		Clock:      e.clock,
		Quiet:      e.cfg.Push.Debounce,
		OnOpen: func() {
			e.Events.Emit(Event{Type: EventPushStatus, Payload: PushStatusEvent{Topic: name, State: push.Open.String()}})
		},
		OnError: func(err error) {
			e.Events.Emit(Event{Type: EventPushStatus, Payload: PushStatusEvent{Topic: name, State: "error", Error: err.Error()}})
		},
	}
}

// spawn runs fn in the background unless the engine is stopping.
func (e *Engine) spawn(fn func(ctx context.Context)) {
	e.pushMu.Lock()
	defer e.pushMu.Unlock()
	if e.stopped {
		return
	}
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		fn(e.ctx)
	}()
}

// --- Snapshot view ---

// NodeConfig returns the current node config, or nil before the first cycle.
func (e *Engine) NodeConfig() *model.NodeConfig { return e.snap.NodeConfig() }

// FullNode returns the hub's record for the node, or nil if unknown.
func (e *Engine) FullNode() *model.FullNode { return e.snap.FullNode() }

// SnapshotSeq is the cycle number of the newest applied snapshot update.
func (e *Engine) SnapshotSeq() uint64 { return e.snap.HighSeq() }

// StableNodeConfig returns the node config without resource usage. The same
// pointer is returned for as long as the stripped config stays equal, so
// callers can detect real changes by identity.
func (e *Engine) StableNodeConfig() *model.NodeConfig {
	cfg := e.snap.NodeConfig()
	if cfg == nil {
		return nil
	}
	cleaned := *cfg
	cleaned.ResourceUsage = nil

	e.stableMu.Lock()
	defer e.stableMu.Unlock()
	if e.stable == nil || !equality.Equal(e.stable, &cleaned) {
		e.stable = &cleaned
	}
	return e.stable
}

// Flags returns the poller's busy indicators.
func (e *Engine) Flags() node.Flags { return e.nodeMgr.Flags() }

// NetworkActivity returns the last debounced sample. ok is false until the
// first one arrives, and the data is zero-valued until then.
func (e *Engine) NetworkActivity() (data model.NetworkActivityData, ok bool) {
	e.activityMu.RLock()
	defer e.activityMu.RUnlock()
	return e.activity, e.hasActivity
}

func (e *Engine) HasNetworkActivity() bool {
	_, ok := e.NetworkActivity()
	return ok
}

// PushStatus reports the state of every live push subscription.
func (e *Engine) PushStatus() []PushStatusEvent {
	e.pushMu.Lock()
	defer e.pushMu.Unlock()
	var out []PushStatusEvent
	for _, s := range []*push.Subscription{e.activitySub, e.taskSub} {
		if s != nil {
			out = append(out, PushStatusEvent{Topic: s.Topic().String(), State: s.State().String()})
		}
	}
	return out
}

// --- Actions ---

// Refresh runs one out-of-band refresh cycle.
func (e *Engine) Refresh(ctx context.Context) error { return e.nodeMgr.Refresh(ctx) }

func (e *Engine) Register(ctx context.Context, name string) error {
	return e.nodeMgr.Register(ctx, name)
}

func (e *Engine) StartNode(ctx context.Context) error { return e.nodeMgr.StartNode(ctx) }

func (e *Engine) StopNode(ctx context.Context) error { return e.nodeMgr.StopNode(ctx) }

// --- Submitted tasks ---

// TasksView is the submitted-task surface.
type TasksView struct {
	NodeID    string       `json:"node_id"`
	Tasks     []model.Task `json:"tasks"`
	IsLoading bool         `json:"is_loading"`
	Error     string       `json:"error,omitempty"`
}

func (e *Engine) SubmittedTasks() TasksView {
	nodeID, list := e.tracker.Snapshot()
	v := TasksView{NodeID: nodeID, Tasks: list, IsLoading: e.tracker.Loading()}
	if err := e.tracker.Err(); err != nil {
		v.Error = err.Error()
	}
	return v
}

func (e *Engine) currentNodeID() (string, error) {
	cfg := e.snap.NodeConfig()
	if !cfg.Registered() {
		return "", ErrNotRegistered
	}
	return cfg.NodeID, nil
}

// ReloadTasks fetches the submitted-task list of the current node.
func (e *Engine) ReloadTasks(ctx context.Context) ([]model.Task, error) {
	nodeID, err := e.currentNodeID()
	if err != nil {
		return nil, err
	}
	return e.tracker.Load(ctx, nodeID)
}

// SubmitTask submits a task on behalf of the current node.
func (e *Engine) SubmitTask(ctx context.Context, p model.SubmitTaskPayload) (*nodeapi.SubmitResponse, error) {
	nodeID, err := e.currentNodeID()
	if err != nil {
		return nil, err
	}
	return e.tracker.Submit(ctx, nodeID, p)
}

// --- History ---

// History lists journaled snapshots, newest first.
func (e *Engine) History(kind string, limit int) ([]*store.SnapshotEntry, error) {
	if e.db == nil {
		return nil, nil
	}
	return e.db.ListSnapshots(kind, limit)
}

// ExportWorkbook writes the submitted tasks and the journal as XLSX.
func (e *Engine) ExportWorkbook(w io.Writer) error {
	_, list := e.tracker.Snapshot()
	journal, err := e.History("", e.cfg.Journal.MaxEntries)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	return report.WriteWorkbook(w, list, journal)
}

// OutboxStats reports the publication backlog, or nil when messaging is off.
func (e *Engine) OutboxStats() (*store.OutboxStats, error) {
	if e.reporter == nil {
		return nil, nil
	}
	s, err := e.db.OutboxStats()
	if err != nil {
		return nil, fmt.Errorf("outbox stats: %w", err)
	}
	return &s, nil
}

// AppConfig returns the app config.
func (e *Engine) AppConfig() *config.Config { return e.cfg }

// ConfigPath returns the file config changes are saved to. Empty means they
// are kept in memory only.
func (e *Engine) ConfigPath() string { return e.cfgPath }

// endpointClient is an upstream client that can be re-pointed at runtime.
type endpointClient interface {
	Reconfigure(baseURL string, timeout time.Duration)
}

// ReconfigureEndpoints points the agent and hub clients and the SSE push
// source at the endpoints now in the app config, then refreshes. Open push
// streams keep their connection until they next reconnect.
func (e *Engine) ReconfigureEndpoints() {
	agent, hub := e.cfg.Endpoints()
	if c, ok := e.agent.(endpointClient); ok {
		c.Reconfigure(agent.URL, agent.Timeout)
	}
	if c, ok := e.hub.(endpointClient); ok {
		c.Reconfigure(hub.URL, hub.Timeout)
	}
	if s, ok := e.source.(*push.SSESource); ok {
		s.SetBaseURL(hub.URL)
	}
	e.logFn("engine: endpoints reconfigured (agent=%s hub=%s)", agent.URL, hub.URL)
	e.spawn(func(ctx context.Context) {
		if err := e.nodeMgr.Refresh(ctx); err != nil {
			log.Printf("engine: refresh after reconfigure: %v", err)
		}
	})
}

// DB returns the database handle.
func (e *Engine) DB() *store.DB { return e.db }
