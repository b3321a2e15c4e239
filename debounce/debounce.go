// Package debounce coalesces bursts of values into a single trailing call.
package debounce

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultQuiet is the quiet period applied to network activity pushes.
const DefaultQuiet = 3000 * time.Millisecond

// Debouncer delivers the most recent scheduled value once no new value has
// arrived for the quiet period.
type Debouncer[T any] struct {
	clock clockwork.Clock
	quiet time.Duration
	fn    func(T)

	runMu sync.Mutex // held while fn runs

	mu      sync.Mutex
	timer   clockwork.Timer
	gen     uint64
	stopped bool
}

// New creates a debouncer calling fn. A nil clock uses the real clock and a
// non-positive quiet period uses DefaultQuiet.
func New[T any](clock clockwork.Clock, quiet time.Duration, fn func(T)) *Debouncer[T] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	return &Debouncer[T]{clock: clock, quiet: quiet, fn: fn}
}

// Schedule replaces any pending value with v and restarts the quiet period.
func (d *Debouncer[T]) Schedule(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.quiet, func() { d.fire(gen, v) })
}

func (d *Debouncer[T]) fire(gen uint64, v T) {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	d.mu.Lock()
	// A timer that expired while Schedule or Cancel was replacing it must not
	// deliver its outdated value.
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()
	d.fn(v)
}

// Pending reports whether a value is waiting for the quiet period to end.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Cancel drops the pending value, if any.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

// Stop cancels the pending value and ignores every later Schedule. A delivery
// already running finishes before Stop returns, and none starts afterwards,
// so Stop must not be called from fn.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	d.cancelLocked()
	d.stopped = true
	d.mu.Unlock()

	d.runMu.Lock()
	d.runMu.Unlock()
}

func (d *Debouncer[T]) cancelLocked() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
