package snapshot

import (
	"sync"

	"nodeconsole/model"
)

// Outcome describes what Dispatch did with an action.
type Outcome int

const (
	Applied   Outcome = iota // state replaced
	Unchanged                // reducer returned the same state
	Stale                    // sequence behind the newest accepted dispatch
	Closed                   // store torn down
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Unchanged:
		return "unchanged"
	case Stale:
		return "stale"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Emitter is notified after a dispatch replaced part of the state.
type Emitter interface {
	EmitNodeConfigChanged(cfg *model.NodeConfig, seq uint64)
	EmitFullNodeChanged(node *model.FullNode, seq uint64)
	EmitLastTaskChanged(cfg *model.NodeConfig, seq uint64)
}

// Store is the single owner of the merged node view.
//
// Every dispatch carries the sequence number of the refresh cycle that
// produced it. Dispatches behind the newest accepted sequence are dropped so
// a slow, older cycle can never overwrite what a newer one already wrote.
type Store struct {
	mu      sync.Mutex
	state   *State
	highSeq uint64
	closed  bool
	emitter Emitter
}

// New creates an empty store. emitter may be nil.
func New(emitter Emitter) *Store {
	return &Store{state: &State{}, emitter: emitter}
}

// State returns the current state. Callers must treat it as read-only.
func (s *Store) State() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) NodeConfig() *model.NodeConfig {
	return s.State().NodeConfig
}

func (s *Store) FullNode() *model.FullNode {
	return s.State().FullNode
}

// HighSeq returns the newest accepted sequence number.
func (s *Store) HighSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highSeq
}

// Dispatch runs a through the reducer on behalf of refresh cycle seq.
func (s *Store) Dispatch(seq uint64, a Action) Outcome {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Closed
	}
	if seq < s.highSeq {
		s.mu.Unlock()
		return Stale
	}
	s.highSeq = seq
	prev := s.state
	next := Reduce(prev, a)
	if next == prev {
		s.mu.Unlock()
		return Unchanged
	}
	s.state = next
	s.mu.Unlock()

	s.emit(prev, next, a.Type, seq)
	return Applied
}

func (s *Store) emit(prev, next *State, t ActionType, seq uint64) {
	if s.emitter == nil {
		return
	}
	switch t {
	case SetNodeConfig:
		if prev.NodeConfig != next.NodeConfig {
			s.emitter.EmitNodeConfigChanged(next.NodeConfig, seq)
		}
	case SetLastTask:
		s.emitter.EmitLastTaskChanged(next.NodeConfig, seq)
	case SetFullNode:
		if prev.FullNode != next.FullNode {
			s.emitter.EmitFullNodeChanged(next.FullNode, seq)
		}
	}
}

// Close tears the store down. Later dispatches are ignored, which lets fetches
// that were already in flight finish harmlessly.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
