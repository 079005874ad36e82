package saver

import (
	"sync"
	"time"

	"github.com/power-saver/power-saver/saver/metrics"
)

// RampTarget is the latest ramp request: the desired bounds of a cluster and
// the intermediate bounds applied on the way there.
type RampTarget struct {
	CPU     int
	Cluster Cluster
	Desired Bounds
	Applied Bounds
}

// Debouncer is a single-slot resettable timer. Scheduling while a timer is
// pending replaces it, so a burst of requests leaves exactly one pending
// timer targeting the latest request.
type Debouncer struct {
	mu       sync.Mutex
	delay    time.Duration
	fire     func(RampTarget)
	timer    *time.Timer
	gen      uint64
	pending  bool
	target   RampTarget
	stopped  bool
	inflight sync.WaitGroup
}

// NewDebouncer creates a Debouncer calling fire after delay.
func NewDebouncer(delay time.Duration, fire func(RampTarget)) *Debouncer {
	return &Debouncer{delay: delay, fire: fire}
}

// Schedule arms the timer for target, resetting any pending timer.
// It reports whether a pending timer was coalesced. Schedule never blocks on
// the fire callback and is a no-op after Stop.
func (d *Debouncer) Schedule(target RampTarget) (coalesced bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return false
	}
	coalesced = d.pending
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.target = target
	d.pending = true
	d.timer = time.AfterFunc(d.delay, func() { d.expire(gen) })

	if coalesced {
		metrics.DebounceSchedulesTotal.WithLabelValues("coalesced").Inc()
	} else {
		metrics.DebounceSchedulesTotal.WithLabelValues("armed").Inc()
	}
	return coalesced
}

// Pending returns the target of the pending timer, if any.
func (d *Debouncer) Pending() (RampTarget, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.target, d.pending
}

// Cancel drops the pending timer, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked()
}

// Stop cancels the pending timer, disables further scheduling and waits for a
// fire callback already in progress to return.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.cancelLocked()
	d.mu.Unlock()
	d.inflight.Wait()
}

func (d *Debouncer) cancelLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	// a callback that already started sees the new generation and bails out
	d.gen++
	d.pending = false
}

func (d *Debouncer) expire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.timer = nil
	target := d.target
	d.inflight.Add(1)
	d.mu.Unlock()
	defer d.inflight.Done()

	metrics.DebounceFiresTotal.Inc()
	d.fire(target)
}
