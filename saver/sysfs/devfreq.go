package sysfs

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/power-saver/power-saver/saver"
)

// DefaultDevfreqRoot is the devfreq class directory.
const DefaultDevfreqRoot = "/sys/class/devfreq"

// Devfreq is a bandwidth device backed by /sys/class/devfreq/<name>.
// The ceiling is written to max_freq on Recompute.
type Devfreq struct {
	sync.Mutex
	name     string
	dir      string
	maxState uint64
	ceiling  uint64
	written  uint64
}

// OpenDevfreq reads the supported states of the device at dir.
func OpenDevfreq(dir string) (*Devfreq, error) {
	states, err := readUintList(filepath.Join(dir, "available_frequencies"))
	if err != nil {
		return nil, fmt.Errorf("failed to read states of %s: %w", dir, err)
	}
	d := &Devfreq{name: filepath.Base(dir), dir: dir}
	if len(states) > 0 {
		d.maxState = slices.Max(states)
	}
	d.ceiling = d.maxState
	return d, nil
}

// Name returns the devfreq device name.
func (d *Devfreq) Name() string { return d.name }

// SetCeiling records the ceiling. The caller holds the lock.
func (d *Devfreq) SetCeiling(v uint64) { d.ceiling = v }

// MaxSupportedState returns the highest available frequency.
func (d *Devfreq) MaxSupportedState() uint64 { return d.maxState }

// Recompute writes the ceiling to max_freq when it changed. The caller holds
// the lock.
func (d *Devfreq) Recompute() error {
	if d.ceiling == d.written {
		return nil
	}
	if err := writeUint(filepath.Join(d.dir, "max_freq"), d.ceiling); err != nil {
		return err
	}
	d.written = d.ceiling
	return nil
}

// RegisterFunc is the engine's device registration entry point.
type RegisterFunc func(dev saver.BandwidthDevice, name string) (saver.Category, error)

// DevfreqScanner attaches devfreq devices to the engine. Devices seen by an
// earlier scan keep their handle, so rescans never register a second handle
// for the same device.
type DevfreqScanner struct {
	root     string
	register RegisterFunc

	mu    sync.Mutex
	known map[string]*Devfreq
}

// NewDevfreqScanner creates a scanner over root (DefaultDevfreqRoot on a device).
func NewDevfreqScanner(root string, register RegisterFunc) *DevfreqScanner {
	return &DevfreqScanner{root: root, register: register, known: make(map[string]*Devfreq)}
}

// Scan registers every device under root and returns how many were newly
// opened. Unreadable devices are skipped.
func (s *DevfreqScanner) Scan() (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("failed to list %s: %w", s.root, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	opened := 0
	for _, entry := range entries {
		name := entry.Name()
		dev, ok := s.known[name]
		if !ok {
			dev, err = OpenDevfreq(filepath.Join(s.root, name))
			if err != nil {
				logrus.Debugf("devfreq: skipping %s: %v", name, err)
				continue
			}
			s.known[name] = dev
			opened++
		}
		if _, err := s.register(dev, name); err != nil {
			logrus.Warnf("devfreq: %s not registered: %v", name, err)
		}
	}
	return opened, nil
}
