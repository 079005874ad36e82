package saver

import (
	"sync"

	"github.com/power-saver/power-saver/saver/metrics"
)

// PowerState is the aggregated external state driving the policy.
type PowerState struct {
	ScreenOn bool
	Streams  uint
	Dirty    bool
}

// State holds the PowerState shared by the event adapters, the adjust hook
// and the worker. Mutations mark the state dirty and fire the wake signal;
// only TakeAndClearDirty clears the flag.
type State struct {
	mu   sync.Mutex
	cur  PowerState
	wake chan struct{}
}

// NewState creates a State with the screen on and no streams.
func NewState() *State {
	return &State{
		cur:  PowerState{ScreenOn: true},
		wake: make(chan struct{}, 1),
	}
}

// SetScreen records the display power state. Every call marks the state
// dirty, even when the value is unchanged.
func (s *State) SetScreen(on bool) {
	s.mu.Lock()
	s.cur.ScreenOn = on
	s.cur.Dirty = true
	metrics.ScreenOn.Set(boolGauge(on))
	s.mu.Unlock()
	s.signal()
}

// StreamDelta adjusts the active stream count by delta. The count never
// drops below zero.
func (s *State) StreamDelta(delta int) {
	s.mu.Lock()
	switch {
	case delta > 0:
		s.cur.Streams += uint(delta)
	case delta < 0:
		dec := uint(-delta)
		if dec > s.cur.Streams {
			dec = s.cur.Streams
		}
		s.cur.Streams -= dec
	}
	s.cur.Dirty = true
	metrics.ActiveStreams.Set(float64(s.cur.Streams))
	s.mu.Unlock()
	s.signal()
}

// Poke marks the state dirty without changing it, forcing another worker pass.
func (s *State) Poke() {
	s.mu.Lock()
	s.cur.Dirty = true
	s.mu.Unlock()
	s.signal()
}

// Load returns the current state without touching the dirty flag.
func (s *State) Load() PowerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// TakeAndClearDirty returns the current state, including whether it was
// dirty, and clears the flag. Any mutation after this call sets the flag
// again and fires a new wake.
func (s *State) TakeAndClearDirty() PowerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.cur
	s.cur.Dirty = false
	return snap
}

// Wake returns the coalesced wake channel. At most one wake is buffered.
func (s *State) Wake() <-chan struct{} {
	return s.wake
}

func (s *State) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
