package push

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultMaxBackoff caps the delay between reconnect attempts.
const DefaultMaxBackoff = 30 * time.Second

// SupervisorConfig controls how a Supervisor replaces failed channels.
type SupervisorConfig struct {
	// Reconnect opens a fresh channel after a transport error. Without it the
	// supervisor stops after the first failure and leaves recovery to its owner.
	Reconnect  bool
	MaxBackoff time.Duration
	Clock      clockwork.Clock
}

// Supervisor keeps one topic subscribed, creating a new Channel for each
// connection attempt.
type Supervisor struct {
	source   Source
	topic    Topic
	handlers Handlers
	cfg      SupervisorConfig

	mu      sync.Mutex
	current *Channel
	attempt int
	started bool

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

func NewSupervisor(source Source, topic Topic, h Handlers, cfg SupervisorConfig) *Supervisor {
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Supervisor{
		source:   source,
		topic:    topic,
		handlers: h,
		cfg:      cfg,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Supervisor) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	go s.loop()
}

// Stop closes the current channel and waits for the supervisor to exit.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.mu.Lock()
	started := s.started
	s.started = true
	s.mu.Unlock()
	if !started {
		close(s.done)
		return
	}
	<-s.done
}

// Done is closed once the supervisor has exited, either through Stop or
// after a failure with reconnect disabled.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// State reports the state of the current channel.
func (s *Supervisor) State() State {
	s.mu.Lock()
	ch := s.current
	s.mu.Unlock()
	if ch == nil {
		return Idle
	}
	return ch.State()
}

// Attempt returns the number of consecutive failed connection attempts.
func (s *Supervisor) Attempt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt
}

func (s *Supervisor) Topic() Topic {
	return s.topic
}

func (s *Supervisor) loop() {
	defer close(s.done)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		ch := NewChannel(s.source, s.topic, s.handlers)
		s.mu.Lock()
		s.current = ch
		s.mu.Unlock()
		ch.Start(ctx)

		select {
		case <-s.stopChan:
			ch.Close()
			return
		case <-ch.Done():
		}

		if !s.cfg.Reconnect {
			return
		}
		s.mu.Lock()
		if ch.Opened() {
			s.attempt = 0
		}
		s.attempt++
		attempt := s.attempt
		s.mu.Unlock()

		if !s.backoff(attempt, ch.Err()) {
			return
		}
	}
}

// backoff waits before the next attempt. It returns false if Stop was called
// during the wait.
func (s *Supervisor) backoff(attempt int, cause error) bool {
	d := Jitter(Backoff(attempt, s.cfg.MaxBackoff))
	log.Printf("push: %s lost (%v), reconnecting in %v (attempt %d)", s.topic, cause, d.Round(time.Millisecond), attempt)

	timer := s.cfg.Clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.stopChan:
		return false
	case <-timer.Chan():
		return true
	}
}

// Backoff returns 1s * 2^(attempt-1), capped at max.
func Backoff(attempt int, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 16 {
		attempt = 16
	}
	d := time.Duration(1<<uint(attempt-1)) * time.Second
	if d > max {
		d = max
	}
	return d
}

// Jitter spreads d by +/-20%.
func Jitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (0.8 + 0.4*rand.Float64()))
}
