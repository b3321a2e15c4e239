package push

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodeconsole/debounce"
	"nodeconsole/model"
)

func activityPayload(active int) string {
	return fmt.Sprintf(`{"type":"network_activity","timestamp":"2024-05-01T10:00:00Z","data":{"active_nodes":%d}}`, active)
}

// barrier sends a message every subscriber ignores. Once the reader has
// accepted it, everything sent before has been handled.
func barrier(t *testing.T, s *fakeStream) {
	s.send(t, `{"type":"heartbeat"}`)
}

func TestTaskUpdatesIgnoresOtherNodes(t *testing.T) {
	src := newFakeSource()
	calls := make(chan Message, 4)
	sub := SubscribeTaskUpdates(src, "n2", func(m Message) { calls <- m }, Options{})
	defer sub.Unsubscribe()

	stream := src.next(t)
	stream.send(t, `{"type":"task_update","node_id":"n1","action":"refetch"}`)
	stream.send(t, `{"type":"task_update","node_id":"n2","action":"noop"}`)
	barrier(t, stream)
	assert.Len(t, calls, 0, "cross-node traffic must not fire the callback")

	stream.send(t, `{"type":"task_update","node_id":"n2","action":"refetch"}`)
	barrier(t, stream)
	require.Len(t, calls, 1)
	assert.Equal(t, "n2", (<-calls).NodeID)
	assert.Equal(t, TaskUpdates("n2"), src.topics[0])
}

func TestTaskUpdatesAreNotDebounced(t *testing.T) {
	src := newFakeSource()
	var n atomic.Int32
	sub := SubscribeTaskUpdates(src, "n1", func(Message) { n.Add(1) }, Options{})
	defer sub.Unsubscribe()

	stream := src.next(t)
	for i := 0; i < 3; i++ {
		stream.send(t, `{"type":"task_update","node_id":"n1","action":"refetch"}`)
	}
	barrier(t, stream)
	assert.Equal(t, int32(3), n.Load())
}

func TestNetworkActivityBurstCoalesced(t *testing.T) {
	src := newFakeSource()
	clock := clockwork.NewFakeClock()
	got := make(chan model.NetworkActivityData, 8)
	sub := SubscribeNetworkActivity(src, func(d model.NetworkActivityData) { got <- d }, Options{Clock: clock})
	defer sub.Unsubscribe()

	stream := src.next(t)
	for i := 1; i <= 5; i++ {
		stream.send(t, activityPayload(i))
	}
	barrier(t, stream)
	assert.Len(t, got, 0)

	clock.Advance(debounce.DefaultQuiet)
	select {
	case d := <-got:
		assert.Equal(t, 5, d.ActiveNodes)
	case <-time.After(2 * time.Second):
		t.Fatal("debounced delivery never happened")
	}
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, got, 0, "a burst yields exactly one delivery")
}

func TestNetworkActivitySpacedEventsBothDelivered(t *testing.T) {
	src := newFakeSource()
	clock := clockwork.NewFakeClock()
	got := make(chan model.NetworkActivityData, 8)
	sub := SubscribeNetworkActivity(src, func(d model.NetworkActivityData) { got <- d }, Options{Clock: clock})
	defer sub.Unsubscribe()

	stream := src.next(t)
	for i := 1; i <= 2; i++ {
		stream.send(t, activityPayload(i))
		barrier(t, stream)
		clock.Advance(debounce.DefaultQuiet)
		select {
		case d := <-got:
			assert.Equal(t, i, d.ActiveNodes)
		case <-time.After(2 * time.Second):
			t.Fatalf("delivery %d never happened", i)
		}
	}
}

func TestUnsubscribeDropsPendingActivity(t *testing.T) {
	src := newFakeSource()
	clock := clockwork.NewFakeClock()
	got := make(chan model.NetworkActivityData, 1)
	sub := SubscribeNetworkActivity(src, func(d model.NetworkActivityData) { got <- d }, Options{Clock: clock})

	stream := src.next(t)
	stream.send(t, activityPayload(9))
	barrier(t, stream)
	sub.Unsubscribe()
	assert.Equal(t, Closed, sub.State())

	clock.Advance(2 * debounce.DefaultQuiet)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, got, 0)
	sub.Unsubscribe()
}

func TestSubscriptionWithoutReconnectEndsOnError(t *testing.T) {
	src := newFakeSource()
	errs := make(chan error, 2)
	sub := SubscribeTaskUpdates(src, "n1", func(Message) {}, Options{OnError: func(err error) { errs <- err }})

	close(src.next(t).msgs)
	waitDone(t, sub.Done())
	assert.ErrorIs(t, <-errs, ErrStreamEnded)
	assert.Equal(t, 1, src.opens())
	assert.Equal(t, Closed, sub.State())
	sub.Unsubscribe()
}

func TestSupervisorReconnectsWithBackoff(t *testing.T) {
	src := newFakeSource()
	clock := clockwork.NewFakeClock()
	var errCount, openCount atomic.Int32
	sub := SubscribeTaskUpdates(src, "n1", func(Message) {}, Options{
		Reconnect: true,
		Clock:     clock,
		OnError:   func(error) { errCount.Add(1) },
		OnOpen:    func() { openCount.Add(1) },
	})
	defer sub.Unsubscribe()

	close(src.next(t).msgs)
	clock.BlockUntil(1)
	assert.Equal(t, 1, sub.sup.Attempt())
	clock.Advance(2 * time.Second)

	second := src.next(t)
	second.send(t, `{"type":"heartbeat"}`)
	assert.Equal(t, Open, sub.State())
	assert.Equal(t, int32(1), errCount.Load())
	assert.Equal(t, int32(2), openCount.Load())
	assert.Equal(t, 2, src.opens())
}

func TestSupervisorStopDuringBackoff(t *testing.T) {
	src := newFakeSource()
	src.openErr = fmt.Errorf("refused")
	clock := clockwork.NewFakeClock()
	sub := SubscribeNetworkActivity(src, func(model.NetworkActivityData) {}, Options{Reconnect: true, Clock: clock})

	clock.BlockUntil(1)
	sub.Unsubscribe()
	waitDone(t, sub.Done())
	assert.Equal(t, 1, src.opens())
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Second, Backoff(0, DefaultMaxBackoff))
	assert.Equal(t, time.Second, Backoff(1, DefaultMaxBackoff))
	assert.Equal(t, 4*time.Second, Backoff(3, DefaultMaxBackoff))
	assert.Equal(t, 30*time.Second, Backoff(6, DefaultMaxBackoff))
	assert.Equal(t, 30*time.Second, Backoff(100, DefaultMaxBackoff))

	for i := 0; i < 100; i++ {
		d := Jitter(10 * time.Second)
		assert.GreaterOrEqual(t, d, 8*time.Second)
		assert.LessOrEqual(t, d, 12*time.Second)
	}
}

func TestSSESourceEndToEnd(t *testing.T) {
	var query atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DefaultTaskUpdatesPath {
			http.NotFound(w, r)
			return
		}
		query.Store(r.URL.Query().Get("node_id"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": connected\n\n")
		fmt.Fprint(w, "data: {\"type\":\"task_update\",\"node_id\":\"other\",\"action\":\"refetch\"}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"task_update\",\"node_id\":\"n1\",\"action\":\"refetch\"}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	calls := make(chan Message, 4)
	sub := SubscribeTaskUpdates(NewSSESource(srv.URL+"/"), "n1", func(m Message) { calls <- m }, Options{})

	select {
	case m := <-calls:
		assert.Equal(t, "n1", m.NodeID)
	case <-time.After(2 * time.Second):
		t.Fatal("no refetch signal received")
	}
	assert.Equal(t, "n1", query.Load())
	sub.Unsubscribe()
	assert.Len(t, calls, 0)
}

func TestSSESourceStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"node_id is required."}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	errs := make(chan error, 1)
	sub := SubscribeNetworkActivity(NewSSESource(srv.URL), func(model.NetworkActivityData) {}, Options{
		OnError: func(err error) { errs <- err },
	})
	defer sub.Unsubscribe()

	select {
	case err := <-errs:
		assert.True(t, strings.Contains(err.Error(), "status 400"), err.Error())
	case <-time.After(2 * time.Second):
		t.Fatal("expected an error callback")
	}
}

func TestSSESourceURL(t *testing.T) {
	s := NewSSESource("http://hub/api/")
	u, err := s.URL(NetworkActivity())
	require.NoError(t, err)
	assert.Equal(t, "http://hub/api/sse/network_activity/", u)

	u, err = s.URL(TaskUpdates("n1"))
	require.NoError(t, err)
	assert.Equal(t, "http://hub/api/sse/task_updates/?node_id=n1", u)

	_, err = s.URL(TaskUpdates(""))
	assert.Error(t, err)

	s.SetBaseURL("http://other:8000/")
	u, err = s.URL(NetworkActivity())
	require.NoError(t, err)
	assert.Equal(t, "http://other:8000/sse/network_activity/", u)
}
