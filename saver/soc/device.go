package soc

import (
	"slices"
	"sync"
)

// Device is an in-memory bandwidth device. Its running state is the client
// vote capped by the ceiling.
type Device struct {
	sync.Mutex
	name       string
	table      []uint64 // ascending
	ceiling    uint64
	vote       uint64
	cur        uint64
	recomputes int

	// RecomputeErr, when set, is returned by Recompute.
	RecomputeErr error
}

// NewDevice creates a device with the given supported states, voting for its
// maximum.
func NewDevice(name string, states []uint64) *Device {
	t := slices.Clone(states)
	slices.Sort(t)
	d := &Device{name: name, table: t}
	if len(t) > 0 {
		d.ceiling = t[len(t)-1]
		d.vote = d.ceiling
		d.cur = d.ceiling
	}
	return d
}

// Name returns the device name.
func (d *Device) Name() string { return d.name }

// SetCeiling caps the device. The caller holds the lock.
func (d *Device) SetCeiling(v uint64) { d.ceiling = v }

// MaxSupportedState returns the highest supported state.
func (d *Device) MaxSupportedState() uint64 {
	if len(d.table) == 0 {
		return 0
	}
	return d.table[len(d.table)-1]
}

// Recompute settles the running state. The caller holds the lock.
func (d *Device) Recompute() error {
	d.recomputes++
	if d.RecomputeErr != nil {
		return d.RecomputeErr
	}
	d.cur = min(d.vote, d.ceiling)
	return nil
}

// Vote sets the client demand and recomputes.
func (d *Device) Vote(v uint64) {
	d.Lock()
	defer d.Unlock()
	d.vote = v
	d.cur = min(d.vote, d.ceiling)
}

// Snapshot returns ceiling, running state and recompute count.
func (d *Device) Snapshot() (ceiling, cur uint64, recomputes int) {
	d.Lock()
	defer d.Unlock()
	return d.ceiling, d.cur, d.recomputes
}
