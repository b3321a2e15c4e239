package www

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"nodeconsole/engine"
)

// replaySize is how many recent events a reconnecting client can catch up on.
const replaySize = 128

// SSEEvent is one message on the event stream.
type SSEEvent struct {
	ID   uint64
	Type string
	Data any
}

type sseClient struct {
	events chan SSEEvent
}

// EventHub fans engine events out to SSE clients. Every event gets an id, and
// a client reconnecting with Last-Event-ID is first sent what it missed from
// the recent history.
type EventHub struct {
	mu       sync.RWMutex
	clients  map[*sseClient]struct{}
	history  []SSEEvent
	lastID   uint64
	stopChan chan struct{}
	stopOnce sync.Once

	keepalive time.Duration
}

func NewEventHub() *EventHub {
	return &EventHub{
		clients:   make(map[*sseClient]struct{}),
		stopChan:  make(chan struct{}),
		keepalive: 30 * time.Second,
	}
}

// Stop ends every open stream.
func (h *EventHub) Stop() {
	h.stopOnce.Do(func() { close(h.stopChan) })
}

// Broadcast numbers evt, records it for replay and hands it to every client.
// A client whose buffer is full misses the event.
func (h *EventHub) Broadcast(evt SSEEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastID++
	evt.ID = h.lastID
	if len(h.history) == replaySize {
		copy(h.history, h.history[1:])
		h.history = h.history[:replaySize-1]
	}
	h.history = append(h.history, evt)
	for c := range h.clients {
		select {
		case c.events <- evt:
		default:
		}
	}
}

// Clients is the number of connected streams.
func (h *EventHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// register adds c. With replay set it also returns the recorded events newer
// than after.
func (h *EventHub) register(c *sseClient, after uint64, replay bool) []SSEEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if !replay {
		return nil
	}
	var missed []SSEEvent
	for _, evt := range h.history {
		if evt.ID > after {
			missed = append(missed, evt)
		}
	}
	return missed
}

func (h *EventHub) unregister(c *sseClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// HandleSSE is the HTTP handler for SSE connections.
func (h *EventHub) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	after, replay := lastEventID(r.Header.Get("Last-Event-ID"))
	client := &sseClient{events: make(chan SSEEvent, 64)}
	missed := h.register(client, after, replay)
	defer h.unregister(client)

	fmt.Fprintf(w, "event: connected\ndata: {}\n\n")
	for _, evt := range missed {
		writeEvent(w, evt)
	}
	flusher.Flush()

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.stopChan:
			return
		case evt := <-client.events:
			writeEvent(w, evt)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

// lastEventID parses the Last-Event-ID a reconnecting client sends. New
// clients have none and start from live events.
func lastEventID(v string) (uint64, bool) {
	if v == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func writeEvent(w http.ResponseWriter, evt SSEEvent) {
	data, err := json.Marshal(evt.Data)
	if err != nil {
		log.Printf("sse: encode %s: %v", evt.Type, err)
		return
	}
	fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", evt.ID, evt.Type, data)
}

// SetupEngineListeners forwards engine events to the stream under their wire
// names. Busy flags are sent bare.
func (h *EventHub) SetupEngineListeners(eng *engine.Engine) {
	eng.Events.Subscribe(func(evt engine.Event) {
		switch evt.Type {
		case engine.EventBusyChanged:
			p := evt.Payload.(engine.BusyEvent)
			h.Broadcast(SSEEvent{Type: evt.Type.Name(), Data: p.Flags})
		case engine.EventNodeConfigChanged,
			engine.EventFullNodeChanged,
			engine.EventLastTaskChanged,
			engine.EventRefreshFailed,
			engine.EventNetworkActivity,
			engine.EventTasksUpdated,
			engine.EventPushStatus:
			h.Broadcast(SSEEvent{Type: evt.Type.Name(), Data: evt.Payload})
		}
	})
}
