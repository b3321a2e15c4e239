package push

import (
	"context"
	"errors"
	"log"
	"sync"
)

var (
	ErrAlreadyOpened = errors.New("push: channel already opened")
	ErrClosed        = errors.New("push: channel closed")
	ErrStreamEnded   = errors.New("push: stream ended")
)

// State is a channel's lifecycle position.
type State int

const (
	Idle State = iota
	Connecting
	Open
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stream is an open subscription delivering raw message payloads.
type Stream interface {
	Next() ([]byte, error)
	Close() error
}

// Source opens streams for a topic.
type Source interface {
	Open(ctx context.Context, topic Topic) (Stream, error)
}

// Handlers receive a channel's callbacks. Message and Open run on the
// channel's reader goroutine; Error runs once, after the channel has closed.
// None of them may call Close on the same channel.
type Handlers struct {
	Message func(Message)
	Error   func(error)
	Open    func()
}

// Channel is a single push subscription. It moves idle -> connecting -> open
// -> closed and never leaves closed; reconnecting means creating a new Channel.
type Channel struct {
	source   Source
	topic    Topic
	handlers Handlers

	mu     sync.Mutex
	state  State
	opened bool
	err    error
	stream Stream
	cancel context.CancelFunc
	done   chan struct{}
}

func NewChannel(source Source, topic Topic, h Handlers) *Channel {
	return &Channel{
		source:   source,
		topic:    topic,
		handlers: h,
		done:     make(chan struct{}),
	}
}

// Start connects in the background. It fails if the channel has already been
// started or closed.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case Idle:
	case Closed:
		return ErrClosed
	default:
		return ErrAlreadyOpened
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.state = Connecting
	go c.run(ctx)
	return nil
}

func (c *Channel) run(ctx context.Context) {
	defer close(c.done)

	stream, err := c.source.Open(ctx, c.topic)
	if err != nil {
		c.fail(err)
		return
	}

	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		stream.Close()
		return
	}
	c.state = Open
	c.opened = true
	c.stream = stream
	c.mu.Unlock()

	if c.handlers.Open != nil {
		c.handlers.Open()
	}

	for {
		payload, err := stream.Next()
		if err != nil {
			c.fail(err)
			return
		}
		msg, err := DecodeMessage(payload)
		if err != nil {
			log.Printf("push: %s: %v", c.topic, err)
			continue
		}
		if c.State() != Open {
			return
		}
		if c.handlers.Message != nil {
			c.handlers.Message(msg)
		}
	}
}

// fail closes the channel because of a transport error. Errors that follow a
// manual Close are not reported.
func (c *Channel) fail(err error) {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return
	}
	c.state = Closed
	c.err = err
	stream := c.stream
	c.cancel()
	c.mu.Unlock()

	if stream != nil {
		stream.Close()
	}
	if c.handlers.Error != nil {
		c.handlers.Error(err)
	}
}

// Close tears the channel down and waits for its reader to exit. No handler
// runs after Close returns.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		<-c.done
		return nil
	}
	wasIdle := c.state == Idle
	c.state = Closed
	stream := c.stream
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	if wasIdle {
		close(c.done)
		return nil
	}
	var err error
	if stream != nil {
		err = stream.Close()
	}
	<-c.done
	return err
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Opened reports whether the channel ever reached the open state.
func (c *Channel) Opened() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened
}

// Err returns the transport error that closed the channel, or nil after a
// manual Close.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Done is closed once the channel is closed and its reader has exited.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

func (c *Channel) Topic() Topic {
	return c.topic
}
