package debounce

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collector() (func(int), chan int) {
	ch := make(chan int, 16)
	return func(v int) { ch <- v }, ch
}

func expectCall(t *testing.T, ch chan int) int {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced call")
		return 0
	}
}

func expectNoCall(t *testing.T, ch chan int) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected debounced call with %d", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBurstCoalescesToLastValue(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fn, calls := collector()
	d := New(clock, DefaultQuiet, fn)

	for i := 1; i <= 5; i++ {
		d.Schedule(i)
		clock.Advance(500 * time.Millisecond)
	}
	expectNoCall(t, calls)
	require.True(t, d.Pending())

	clock.Advance(DefaultQuiet)
	assert.Equal(t, 5, expectCall(t, calls))
	expectNoCall(t, calls)
	assert.False(t, d.Pending())
}

func TestSeparatedEventsFireTwice(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fn, calls := collector()
	d := New(clock, DefaultQuiet, fn)

	d.Schedule(1)
	clock.Advance(DefaultQuiet)
	assert.Equal(t, 1, expectCall(t, calls))

	d.Schedule(2)
	clock.Advance(DefaultQuiet)
	assert.Equal(t, 2, expectCall(t, calls))
	expectNoCall(t, calls)
}

func TestQuietPeriodBoundary(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fn, calls := collector()
	d := New(clock, DefaultQuiet, fn)

	d.Schedule(7)
	clock.Advance(DefaultQuiet - time.Millisecond)
	expectNoCall(t, calls)
	clock.Advance(time.Millisecond)
	assert.Equal(t, 7, expectCall(t, calls))
}

func TestCancelDropsPending(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fn, calls := collector()
	d := New(clock, DefaultQuiet, fn)

	d.Schedule(1)
	d.Cancel()
	assert.False(t, d.Pending())
	clock.Advance(2 * DefaultQuiet)
	expectNoCall(t, calls)

	d.Schedule(2)
	clock.Advance(DefaultQuiet)
	assert.Equal(t, 2, expectCall(t, calls))
}

func TestStopIgnoresLaterSchedules(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fn, calls := collector()
	d := New(clock, DefaultQuiet, fn)

	d.Schedule(1)
	d.Stop()
	d.Schedule(2)
	clock.Advance(2 * DefaultQuiet)
	expectNoCall(t, calls)
	assert.False(t, d.Pending())
}

func TestStopWaitsForRunningDelivery(t *testing.T) {
	clock := clockwork.NewFakeClock()
	started := make(chan int, 1)
	release := make(chan struct{})
	d := New(clock, DefaultQuiet, func(v int) {
		started <- v
		<-release
	})

	d.Schedule(1)
	clock.Advance(DefaultQuiet)
	require.Equal(t, 1, expectCall(t, started))

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop returned while the callback was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the callback finished")
	}
}

func TestDefaults(t *testing.T) {
	d := New[int](nil, 0, func(int) {})
	assert.Equal(t, DefaultQuiet, d.quiet)
	assert.NotNil(t, d.clock)
}
