package sysfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/power-saver/power-saver/saver"
)

// DefaultCPURoot is the sysfs CPU directory.
const DefaultCPURoot = "/sys/devices/system/cpu"

// CPUFreq implements saver.FrequencyScaler on top of the cpufreq sysfs
// interface. Re-evaluation runs the registered notifiers in userspace and
// writes the resulting bounds to scaling_min_freq/scaling_max_freq.
type CPUFreq struct {
	root string

	mu        sync.RWMutex
	notifiers []saver.PolicyNotifier
	tables    map[int][]uint32
	evalMu    sync.Mutex // one re-evaluation at a time
}

// NewCPUFreq creates a CPUFreq rooted at root (DefaultCPURoot on a device).
func NewCPUFreq(root string) *CPUFreq {
	return &CPUFreq{root: root, tables: make(map[int][]uint32)}
}

func (c *CPUFreq) path(cpu int, resource string) string {
	return filepath.Join(c.root, fmt.Sprintf("cpu%d", cpu), "cpufreq", resource)
}

// RegisterNotifier appends n to the notifier chain.
func (c *CPUFreq) RegisterNotifier(n saver.PolicyNotifier) error {
	if _, err := os.Stat(c.root); err != nil {
		return fmt.Errorf("cpufreq unavailable: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifiers = append(c.notifiers, n)
	return nil
}

// UnregisterNotifier removes n from the notifier chain.
func (c *CPUFreq) UnregisterNotifier(n saver.PolicyNotifier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifiers = slices.DeleteFunc(c.notifiers, func(x saver.PolicyNotifier) bool { return x == n })
}

// RequestReevaluation reads the policy of cpu, runs the notifier chain and
// writes back the adjusted bounds.
func (c *CPUFreq) RequestReevaluation(cpu int) error {
	c.evalMu.Lock()
	defer c.evalMu.Unlock()

	req := &saver.PolicyRequest{CPU: cpu}
	fields := []struct {
		resource string
		dst      *uint32
	}{
		{"cpuinfo_min_freq", &req.HWMin},
		{"cpuinfo_max_freq", &req.HWMax},
		{"scaling_cur_freq", &req.HWCur},
		{"scaling_min_freq", &req.Min},
		{"scaling_max_freq", &req.Max},
	}
	for _, f := range fields {
		v, err := readUint(c.path(cpu, f.resource))
		if err != nil {
			return fmt.Errorf("failed to read %s for cpu %d: %w", f.resource, cpu, err)
		}
		*f.dst = uint32(v)
	}
	oldMin, oldMax := req.Min, req.Max

	c.mu.RLock()
	chain := slices.Clone(c.notifiers)
	c.mu.RUnlock()
	for _, n := range chain {
		n.AdjustPolicy(req)
	}

	if req.Min == oldMin && req.Max == oldMax {
		return nil
	}
	// the kernel rejects min > max, so order the writes around the old bounds
	writeMin := func() error { return writeUint(c.path(cpu, "scaling_min_freq"), uint64(req.Min)) }
	writeMax := func() error { return writeUint(c.path(cpu, "scaling_max_freq"), uint64(req.Max)) }
	var err error
	if req.Min > oldMax {
		err = errors.Join(writeMax(), writeMin())
	} else {
		err = errors.Join(writeMin(), writeMax())
	}
	if err != nil {
		return fmt.Errorf("failed to apply bounds for cpu %d: %w", cpu, err)
	}
	logrus.Debugf("cpufreq: cpu %d bounds [%d, %d] -> [%d, %d]", cpu, oldMin, oldMax, req.Min, req.Max)
	return nil
}

// NextStep walks scaling_available_frequencies. Without a table the
// frequency is returned unchanged and the caller lands on its target.
func (c *CPUFreq) NextStep(cpu int, freq uint32, dir saver.Direction) uint32 {
	table := c.table(cpu)
	switch dir {
	case saver.DirectionUp:
		for _, f := range table {
			if f > freq {
				return f
			}
		}
	case saver.DirectionDown:
		for i := len(table) - 1; i >= 0; i-- {
			if table[i] < freq {
				return table[i]
			}
		}
	}
	return freq
}

func (c *CPUFreq) table(cpu int) []uint32 {
	c.mu.RLock()
	t, ok := c.tables[cpu]
	c.mu.RUnlock()
	if ok {
		return t
	}

	raw, err := readUintList(c.path(cpu, "scaling_available_frequencies"))
	if err != nil {
		logrus.Debugf("cpufreq: no frequency table for cpu %d: %v", cpu, err)
		raw = nil
	}
	t = make([]uint32, 0, len(raw))
	for _, f := range raw {
		t = append(t, uint32(f))
	}
	slices.Sort(t)
	t = slices.Compact(t)

	c.mu.Lock()
	c.tables[cpu] = t
	c.mu.Unlock()
	return t
}

// IsOnline reads cpuN/online. CPUs without the file (usually cpu0) are
// online when their directory exists.
func (c *CPUFreq) IsOnline(cpu int) bool {
	dir := filepath.Join(c.root, fmt.Sprintf("cpu%d", cpu))
	s, err := readString(filepath.Join(dir, "online"))
	if err != nil {
		_, statErr := os.Stat(dir)
		return statErr == nil
	}
	return s == "1"
}
