package push

import (
	"log"
	"time"

	"github.com/jonboulle/clockwork"

	"nodeconsole/debounce"
	"nodeconsole/model"
)

// Options configure a topic subscription.
type Options struct {
	Reconnect  bool
	MaxBackoff time.Duration
	Clock      clockwork.Clock
	// Quiet is the debounce window for network activity. Zero means
	// debounce.DefaultQuiet.
	Quiet   time.Duration
	OnError func(error)
	OnOpen  func()
}

func (o Options) supervisorConfig() SupervisorConfig {
	return SupervisorConfig{Reconnect: o.Reconnect, MaxBackoff: o.MaxBackoff, Clock: o.Clock}
}

// Subscription is a live topic subscription.
type Subscription struct {
	sup  *Supervisor
	stop func()
}

// Unsubscribe closes the underlying connection and drops any pending
// debounced delivery. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.sup.Stop()
	if s.stop != nil {
		s.stop()
	}
}

func (s *Subscription) State() State { return s.sup.State() }

func (s *Subscription) Topic() Topic { return s.sup.Topic() }

// Done is closed when the subscription has ended.
func (s *Subscription) Done() <-chan struct{} { return s.sup.Done() }

// SubscribeNetworkActivity delivers network activity samples to onData. Bursts
// are coalesced: onData sees only the last sample of a burst, once the topic
// has been quiet for the debounce window.
func SubscribeNetworkActivity(source Source, onData func(model.NetworkActivityData), opts Options) *Subscription {
	deb := debounce.New(opts.Clock, opts.Quiet, onData)
	h := Handlers{
		Message: func(m Message) {
			if m.Type != TypeNetworkActivity {
				return
			}
			data, err := m.NetworkActivity()
			if err != nil {
				log.Printf("push: %v", err)
				return
			}
			deb.Schedule(data)
		},
		Error: opts.OnError,
		Open:  opts.OnOpen,
	}
	sup := NewSupervisor(source, NetworkActivity(), h, opts.supervisorConfig())
	sup.Start()
	return &Subscription{sup: sup, stop: deb.Stop}
}

// SubscribeTaskUpdates calls onRefetch for every refetch signal addressed to
// nodeID. Signals are not debounced.
func SubscribeTaskUpdates(source Source, nodeID string, onRefetch func(Message), opts Options) *Subscription {
	h := Handlers{
		Message: func(m Message) {
			if m.IsRefetchFor(nodeID) {
				onRefetch(m)
			}
		},
		Error: opts.OnError,
		Open:  opts.OnOpen,
	}
	sup := NewSupervisor(source, TaskUpdates(nodeID), h, opts.supervisorConfig())
	sup.Start()
	return &Subscription{sup: sup}
}
