// Package node keeps the merged node snapshot in sync with the local agent and
// the hub: a periodic refresh pipeline plus the register/start/stop actions.
package node

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"nodeconsole/model"
	"nodeconsole/snapshot"
)

// DefaultPollRate is the interval between refresh cycles.
const DefaultPollRate = 15 * time.Second

var (
	ErrEmptyName = errors.New("node name is required")
	ErrBusy      = errors.New("node action already in progress")
)

// AgentAPI is the local agent as seen by the manager.
type AgentAPI interface {
	NodeConfig(ctx context.Context) (*model.NodeConfig, error)
	Register(ctx context.Context, name string) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// HubAPI is the hub as seen by the manager.
type HubAPI interface {
	TaskFetcher
	FullNode(ctx context.Context, nodeID string) (*model.FullNode, error)
}

// Emitter receives busy flag changes and refresh failures.
type Emitter interface {
	EmitBusyChanged(flags Flags)
	EmitRefreshFailed(seq uint64, err error)
}

// Flags are the manager's busy indicators.
type Flags struct {
	IsLoading     bool `json:"is_loading"`
	IsRegistering bool `json:"is_registering"`
	IsStarting    bool `json:"is_starting"`
	IsStopping    bool `json:"is_stopping"`
}

// Config tunes the manager.
type Config struct {
	PollRate time.Duration
	// CycleTimeout bounds one refresh cycle. Zero leaves it to the clients'
	// own timeouts.
	CycleTimeout time.Duration
	Clock        clockwork.Clock
}

// Manager runs refresh cycles against the agent and hub and commits their
// results to a snapshot.Store.
//
// Cycles may overlap: the ticker does not wait for a slow cycle to finish.
// Each cycle takes a sequence number and the store drops whatever an older
// cycle delivers after a newer one.
type Manager struct {
	agent   AgentAPI
	hub     HubAPI
	store   *snapshot.Store
	cache   *DetailCache
	emitter Emitter
	cfg     Config

	seq         atomic.Uint64
	loading     atomic.Int32
	registering atomic.Bool
	starting    atomic.Bool
	stopping    atomic.Bool

	debugFn func(string, ...any)

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
	cycles   sync.WaitGroup
}

// NewManager creates a manager. emitter may be nil.
func NewManager(agent AgentAPI, hub HubAPI, store *snapshot.Store, emitter Emitter, cfg Config) *Manager {
	if cfg.PollRate <= 0 {
		cfg.PollRate = DefaultPollRate
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Manager{
		agent:   agent,
		hub:     hub,
		store:   store,
		cache:   NewDetailCache(hub),
		emitter: emitter,
		cfg:     cfg,
	}
}

// SetDebugLog sets a debug logging function.
func (m *Manager) SetDebugLog(fn func(string, ...any)) {
	m.debugFn = fn
}

func (m *Manager) debugf(format string, args ...any) {
	if m.debugFn != nil {
		m.debugFn(format, args...)
	}
}

// Cache returns the task detail cache.
func (m *Manager) Cache() *DetailCache { return m.cache }

// Start runs a refresh cycle immediately and then every PollRate until Stop.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stopChan = make(chan struct{})
	m.wg.Add(1)
	go m.pollLoop(m.stopChan)
}

// Stop ends scheduling. Cycles already in flight run to completion; use Wait
// to block on them.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopChan)
	m.mu.Unlock()
	m.wg.Wait()
}

// Wait blocks until every in-flight refresh cycle has finished.
func (m *Manager) Wait() {
	m.cycles.Wait()
}

func (m *Manager) pollLoop(stop <-chan struct{}) {
	defer m.wg.Done()
	ticker := m.cfg.Clock.NewTicker(m.cfg.PollRate)
	defer ticker.Stop()

	m.spawnCycle()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			m.spawnCycle()
		}
	}
}

func (m *Manager) spawnCycle() {
	m.cycles.Add(1)
	go func() {
		defer m.cycles.Done()
		if err := m.Refresh(context.Background()); err != nil {
			log.Printf("poller: %v", err)
		}
	}()
}

// Refresh runs one refresh cycle: node config from the agent, then the hub
// record once the node id is known, then the last task's detail. The steps
// are sequential and a failure leaves the snapshot as it was.
func (m *Manager) Refresh(ctx context.Context) error {
	seq := m.seq.Add(1)
	m.loading.Add(1)
	m.emitBusy()
	defer func() {
		m.loading.Add(-1)
		m.emitBusy()
	}()

	if m.cfg.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.CycleTimeout)
		defer cancel()
	}

	if err := m.refresh(ctx, seq); err != nil {
		if m.emitter != nil {
			m.emitter.EmitRefreshFailed(seq, err)
		}
		return fmt.Errorf("refresh %d: %w", seq, err)
	}
	return nil
}

func (m *Manager) refresh(ctx context.Context, seq uint64) error {
	cfg, err := m.agent.NodeConfig(ctx)
	if err != nil {
		return fmt.Errorf("fetch node config: %w", err)
	}
	if !m.commit(seq, snapshot.NodeConfigAction(cfg)) {
		return nil
	}
	// An empty agent answer clears the config; there is nothing to follow.
	if cfg == nil || cfg.NodeID == "" {
		return nil
	}

	node, err := m.hub.FullNode(ctx, cfg.NodeID)
	if err != nil {
		return fmt.Errorf("fetch node %s: %w", cfg.NodeID, err)
	}
	if !m.commit(seq, snapshot.FullNodeAction(node)) {
		return nil
	}
	if cfg.LastTaskID == "" {
		return nil
	}

	task, fresh, err := m.cache.Request(ctx, cfg.LastTaskID, cfg.NodeID)
	if err != nil {
		return fmt.Errorf("fetch task %s: %w", cfg.LastTaskID, err)
	}
	if !fresh {
		return nil
	}
	m.commit(seq, snapshot.LastTaskAction(task))
	// A detail that did not make it into the snapshot must be fetched again.
	if cur := m.store.NodeConfig(); cur == nil || cur.LastTask == nil || cur.LastTask.ID != cfg.LastTaskID {
		m.cache.Forget(cfg.LastTaskID)
	}
	return nil
}

// commit dispatches a and reports whether the cycle should go on.
func (m *Manager) commit(seq uint64, a snapshot.Action) bool {
	out := m.store.Dispatch(seq, a)
	m.debugf("poller: cycle %d %s -> %s", seq, a.Type, out)
	return out != snapshot.Stale && out != snapshot.Closed
}

// Register registers this node under name, then refreshes.
func (m *Manager) Register(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	return m.action(ctx, &m.registering, "register", func(ctx context.Context) error {
		return m.agent.Register(ctx, name)
	})
}

// StartNode starts the agent's task runner, then refreshes.
func (m *Manager) StartNode(ctx context.Context) error {
	return m.action(ctx, &m.starting, "start", m.agent.Start)
}

// StopNode stops the agent's task runner, then refreshes.
func (m *Manager) StopNode(ctx context.Context) error {
	return m.action(ctx, &m.stopping, "stop", m.agent.Stop)
}

// action runs fn under a busy flag. A successful action is followed by one
// out-of-band refresh before returning; that refresh's failure is logged but
// not returned, since the action itself succeeded.
func (m *Manager) action(ctx context.Context, flag *atomic.Bool, name string, fn func(context.Context) error) error {
	if !flag.CompareAndSwap(false, true) {
		return ErrBusy
	}
	m.emitBusy()
	defer func() {
		flag.Store(false)
		m.emitBusy()
	}()

	if err := fn(ctx); err != nil {
		return fmt.Errorf("%s node: %w", name, err)
	}
	log.Printf("node: %s succeeded", name)
	if err := m.Refresh(ctx); err != nil {
		log.Printf("poller: refresh after %s: %v", name, err)
	}
	return nil
}

// Flags returns the current busy indicators.
func (m *Manager) Flags() Flags {
	return Flags{
		IsLoading:     m.loading.Load() > 0,
		IsRegistering: m.registering.Load(),
		IsStarting:    m.starting.Load(),
		IsStopping:    m.stopping.Load(),
	}
}

func (m *Manager) emitBusy() {
	if m.emitter != nil {
		m.emitter.EmitBusyChanged(m.Flags())
	}
}
