package sysfs

import (
	"context"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/power-saver/power-saver/saver"
)

// DefaultBacklightRoot is the backlight class directory.
const DefaultBacklightRoot = "/sys/class/backlight"

// fbdev blank levels reported by bl_power
const (
	fbBlankUnblank   = 0
	fbBlankPowerdown = 4
)

// Publisher receives display events.
type Publisher interface {
	Publish(ev saver.DisplayEvent)
}

// BacklightWatcher polls bl_power of every backlight and publishes a blank
// event pair (early, then post) whenever the panel state changes.
type BacklightWatcher struct {
	root     string
	interval time.Duration
	bus      Publisher
	last     map[string]uint64
}

// NewBacklightWatcher creates a watcher polling root every interval.
func NewBacklightWatcher(root string, interval time.Duration, bus Publisher) *BacklightWatcher {
	return &BacklightWatcher{root: root, interval: interval, bus: bus, last: make(map[string]uint64)}
}

// Run polls until ctx is cancelled.
func (w *BacklightWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		w.Poll()
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll reads every backlight once and publishes changes.
func (w *BacklightWatcher) Poll() {
	paths, err := filepath.Glob(filepath.Join(w.root, "*", "bl_power"))
	if err != nil {
		logrus.Debugf("backlight: %v", err)
		return
	}
	for _, p := range paths {
		v, err := readUint(p)
		if err != nil {
			logrus.Debugf("backlight: %v", err)
			continue
		}
		prev, seen := w.last[p]
		w.last[p] = v
		if seen && prev == v {
			continue
		}
		mode := blankMode(v)
		logrus.Debugf("backlight: %s bl_power=%d", filepath.Base(filepath.Dir(p)), v)
		w.bus.Publish(saver.DisplayEvent{Phase: saver.PhaseEarly, Mode: mode})
		w.bus.Publish(saver.DisplayEvent{Phase: saver.PhasePost, Mode: mode})
	}
}

func blankMode(v uint64) saver.BlankMode {
	switch v {
	case fbBlankUnblank:
		return saver.BlankUnblank
	case fbBlankPowerdown:
		return saver.BlankPowerdown
	default:
		return saver.BlankLowPower
	}
}
