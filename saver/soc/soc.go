// Package soc provides an in-memory system-on-chip: per-cluster frequency
// tables behind a notifier chain, and voting bandwidth devices. It stands in
// for the kernel frequency-scaling and devfreq subsystems in simulations and
// tests.
package soc

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/power-saver/power-saver/saver"
)

// policy is one frequency domain.
type policy struct {
	mu    sync.Mutex // serializes notifier chain runs
	cpus  []int
	table []uint32 // ascending
	min   uint32
	max   uint32
	cur   uint32
}

func (p *policy) hwMin() uint32 { return p.table[0] }
func (p *policy) hwMax() uint32 { return p.table[len(p.table)-1] }

// SoC implements saver.FrequencyScaler over in-memory frequency tables.
type SoC struct {
	mu            sync.RWMutex
	notifiers     []saver.PolicyNotifier
	policies      []*policy
	byCPU         map[int]*policy
	offline       map[int]bool
	reevaluations map[int]int

	// RegisterErr, when set, makes RegisterNotifier fail.
	RegisterErr error
}

// New creates a SoC with no frequency domains.
func New() *SoC {
	return &SoC{
		byCPU:         make(map[int]*policy),
		offline:       make(map[int]bool),
		reevaluations: make(map[int]int),
	}
}

// AddDomain adds a frequency domain shared by cpus with the given table.
// All bounds start fully open and the domain runs at its maximum.
func (s *SoC) AddDomain(cpus []int, table []uint32) error {
	if len(cpus) == 0 || len(table) == 0 {
		return errors.New("domain needs cpus and a frequency table")
	}
	t := slices.Clone(table)
	slices.Sort(t)
	t = slices.Compact(t)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cpu := range cpus {
		if _, dup := s.byCPU[cpu]; dup {
			return fmt.Errorf("cpu %d already belongs to a domain", cpu)
		}
	}
	p := &policy{cpus: slices.Clone(cpus), table: t}
	p.min, p.max, p.cur = p.hwMin(), p.hwMax(), p.hwMax()
	s.policies = append(s.policies, p)
	for _, cpu := range cpus {
		s.byCPU[cpu] = p
	}
	return nil
}

// RegisterNotifier appends n to the notifier chain.
func (s *SoC) RegisterNotifier(n saver.PolicyNotifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RegisterErr != nil {
		return s.RegisterErr
	}
	s.notifiers = append(s.notifiers, n)
	return nil
}

// UnregisterNotifier removes n from the notifier chain.
func (s *SoC) UnregisterNotifier(n saver.PolicyNotifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifiers = slices.DeleteFunc(s.notifiers, func(x saver.PolicyNotifier) bool { return x == n })
}

// Notifiers returns the number of registered notifiers.
func (s *SoC) Notifiers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notifiers)
}

// RequestReevaluation runs the notifier chain for the domain of cpu and
// applies the resulting bounds.
func (s *SoC) RequestReevaluation(cpu int) error {
	s.mu.Lock()
	p, ok := s.byCPU[cpu]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("cpu %d has no frequency domain", cpu)
	}
	if s.offline[cpu] {
		s.mu.Unlock()
		return fmt.Errorf("cpu %d is offline", cpu)
	}
	s.reevaluations[cpu]++
	chain := slices.Clone(s.notifiers)
	s.mu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	req := &saver.PolicyRequest{
		CPU:   cpu,
		HWMin: p.hwMin(),
		HWMax: p.hwMax(),
		HWCur: p.cur,
		Min:   p.min,
		Max:   p.max,
	}
	for _, n := range chain {
		n.AdjustPolicy(req)
	}
	p.min = max(req.Min, p.hwMin())
	p.max = min(req.Max, p.hwMax())
	if p.min > p.max {
		p.min = p.max
	}
	p.cur = max(p.min, min(p.cur, p.max))
	return nil
}

// NextStep returns the neighbouring table entry of freq in direction dir.
func (s *SoC) NextStep(cpu int, freq uint32, dir saver.Direction) uint32 {
	s.mu.RLock()
	p, ok := s.byCPU[cpu]
	s.mu.RUnlock()
	if !ok {
		return freq
	}
	switch dir {
	case saver.DirectionUp:
		for _, f := range p.table {
			if f > freq {
				return f
			}
		}
	case saver.DirectionDown:
		for i := len(p.table) - 1; i >= 0; i-- {
			if p.table[i] < freq {
				return p.table[i]
			}
		}
	}
	return freq
}

// IsOnline reports whether cpu is online.
func (s *SoC) IsOnline(cpu int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, known := s.byCPU[cpu]
	return known && !s.offline[cpu]
}

// SetOnline hot-plugs cpu.
func (s *SoC) SetOnline(cpu int, online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline[cpu] = !online
}

// Bounds returns the applied bounds of the domain owning cpu.
func (s *SoC) Bounds(cpu int) (saver.Bounds, bool) {
	s.mu.RLock()
	p, ok := s.byCPU[cpu]
	s.mu.RUnlock()
	if !ok {
		return saver.Bounds{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return saver.Bounds{Min: p.min, Max: p.max}, true
}

// Reevaluations returns how many times cpu was re-evaluated.
func (s *SoC) Reevaluations(cpu int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reevaluations[cpu]
}

// Table returns the frequency table of the domain owning cpu.
func (s *SoC) Table(cpu int) []uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.byCPU[cpu]; ok {
		return slices.Clone(p.table)
	}
	return nil
}
