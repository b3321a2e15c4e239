// Package tasks tracks the tasks a node has submitted to the hub and submits
// new ones on its behalf.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"nodeconsole/model"
	"nodeconsole/nodeapi"
)

var (
	ErrInvalidTask = errors.New("invalid task")
	ErrNoNode      = errors.New("node id is not available; register a node first")
)

// Submission defaults applied to zero-valued payload fields.
const (
	DefaultCPU                = 0.5
	DefaultRAM                = 1
	DefaultTrustIndexRequired = 5
	DefaultOverlapCount       = 1
	MaxTrustIndex             = 10
)

// HubAPI is the hub as seen by the tracker.
type HubAPI interface {
	SubmittedTasks(ctx context.Context, nodeID string) ([]model.Task, error)
	SubmitTask(ctx context.Context, p *model.SubmitTaskPayload) (*nodeapi.SubmitResponse, error)
}

// Cache keeps the last fetched list across restarts.
type Cache interface {
	ReplaceSubmittedTasks(nodeID string, tasks []model.Task) error
	ListSubmittedTasks(nodeID string) ([]model.Task, error)
}

// UpdateFunc is called with every newly loaded list.
type UpdateFunc func(nodeID string, tasks []model.Task)

// Tracker holds the submitted-task list of the current node.
type Tracker struct {
	hub      HubAPI
	cache    Cache
	onUpdate UpdateFunc

	loadMu sync.Mutex

	mu      sync.RWMutex
	nodeID  string
	tasks   []model.Task
	loading bool
	lastErr error
}

// NewTracker creates a tracker. cache and onUpdate may be nil.
func NewTracker(hub HubAPI, cache Cache, onUpdate UpdateFunc) *Tracker {
	return &Tracker{hub: hub, cache: cache, onUpdate: onUpdate, tasks: []model.Task{}}
}

// Restore seeds the list from the cache without calling the hub.
func (t *Tracker) Restore(nodeID string) error {
	if t.cache == nil || nodeID == "" {
		return nil
	}
	tasks, err := t.cache.ListSubmittedTasks(nodeID)
	if err != nil {
		return fmt.Errorf("restore submitted tasks: %w", err)
	}
	t.mu.Lock()
	t.nodeID = nodeID
	t.tasks = tasks
	t.mu.Unlock()
	return nil
}

// Load fetches the submitted-task list for nodeID and replaces the held one.
// Loads are serialized so a slow response cannot overwrite a newer one.
func (t *Tracker) Load(ctx context.Context, nodeID string) ([]model.Task, error) {
	if nodeID == "" {
		t.setErr(ErrNoNode)
		return nil, ErrNoNode
	}
	t.loadMu.Lock()
	defer t.loadMu.Unlock()

	t.mu.Lock()
	t.loading = true
	t.mu.Unlock()

	tasks, err := t.hub.SubmittedTasks(ctx, nodeID)

	t.mu.Lock()
	t.loading = false
	t.lastErr = err
	if err == nil {
		t.nodeID = nodeID
		t.tasks = tasks
	}
	t.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("fetch submitted tasks: %w", err)
	}
	if t.cache != nil {
		if err := t.cache.ReplaceSubmittedTasks(nodeID, tasks); err != nil {
			log.Printf("tasks: cache submitted tasks for %s: %v", nodeID, err)
		}
	}
	if t.onUpdate != nil {
		t.onUpdate(nodeID, tasks)
	}
	return tasks, nil
}

func (t *Tracker) setErr(err error) {
	t.mu.Lock()
	t.lastErr = err
	t.mu.Unlock()
}

// Snapshot returns the node the list belongs to and a copy of the list.
func (t *Tracker) Snapshot() (string, []model.Task) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.Task, len(t.tasks))
	copy(out, t.tasks)
	return t.nodeID, out
}

func (t *Tracker) Loading() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.loading
}

// Err is the outcome of the last load.
func (t *Tracker) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastErr
}

// Prepare applies submission defaults and validates p.
func Prepare(p *model.SubmitTaskPayload) error {
	p.Description = strings.TrimSpace(p.Description)
	p.ContainerSpec.Image = strings.TrimSpace(p.ContainerSpec.Image)
	p.ContainerSpec.Command = strings.TrimSpace(p.ContainerSpec.Command)
	if p.ResourceRequirements.CPU == 0 {
		p.ResourceRequirements.CPU = DefaultCPU
	}
	if p.ResourceRequirements.RAM == 0 {
		p.ResourceRequirements.RAM = DefaultRAM
	}
	if p.TrustIndexRequired == 0 {
		p.TrustIndexRequired = DefaultTrustIndexRequired
	}
	if p.OverlapCount == 0 {
		p.OverlapCount = DefaultOverlapCount
	}

	switch {
	case p.Description == "":
		return fmt.Errorf("%w: description is required", ErrInvalidTask)
	case p.ContainerSpec.Image == "":
		return fmt.Errorf("%w: docker image is required", ErrInvalidTask)
	case p.ContainerSpec.Command == "":
		return fmt.Errorf("%w: command is required", ErrInvalidTask)
	case p.ResourceRequirements.CPU < 0 || p.ResourceRequirements.RAM < 0:
		return fmt.Errorf("%w: resource requirements must be positive", ErrInvalidTask)
	case p.TrustIndexRequired < 0 || p.TrustIndexRequired > MaxTrustIndex:
		return fmt.Errorf("%w: trust index must be between 0 and %d", ErrInvalidTask, MaxTrustIndex)
	case p.OverlapCount < 1:
		return fmt.Errorf("%w: overlap count must be at least 1", ErrInvalidTask)
	}
	return nil
}

// Submit validates p, stamps it with nodeID, posts it to the hub and reloads
// the list. A failed reload is logged; the submission itself succeeded.
func (t *Tracker) Submit(ctx context.Context, nodeID string, p model.SubmitTaskPayload) (*nodeapi.SubmitResponse, error) {
	if nodeID == "" {
		return nil, ErrNoNode
	}
	if err := Prepare(&p); err != nil {
		return nil, err
	}
	p.SubmittedBy = nodeID

	resp, err := t.hub.SubmitTask(ctx, &p)
	if err != nil {
		return nil, fmt.Errorf("submit task: %w", err)
	}
	if _, err := t.Load(ctx, nodeID); err != nil {
		log.Printf("tasks: reload after submit: %v", err)
	}
	return resp, nil
}
