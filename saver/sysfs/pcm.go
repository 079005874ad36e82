package sysfs

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/power-saver/power-saver/saver"
)

// DefaultASoundRoot is the ALSA procfs directory.
const DefaultASoundRoot = "/proc/asound"

// PCMWatcher polls ALSA substream status files and reports the change in
// running streams to a StreamListener as start/stop calls.
type PCMWatcher struct {
	root     string
	interval time.Duration
	listener saver.StreamListener
	running  int
}

// NewPCMWatcher creates a watcher polling root every interval.
func NewPCMWatcher(root string, interval time.Duration, listener saver.StreamListener) *PCMWatcher {
	return &PCMWatcher{root: root, interval: interval, listener: listener}
}

// Run polls until ctx is cancelled.
func (w *PCMWatcher) Run(ctx context.Context) error {
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

// Poll counts running substreams once and reports the difference.
func (w *PCMWatcher) Poll() {
	paths, err := filepath.Glob(filepath.Join(w.root, "card*", "pcm*", "sub*", "status"))
	if err != nil {
		logrus.Debugf("pcm: %v", err)
		return
	}
	running := 0
	for _, p := range paths {
		if substreamRunning(p) {
			running++
		}
	}
	for ; w.running < running; w.running++ {
		w.listener.OnStreamStart()
	}
	for ; w.running > running; w.running-- {
		w.listener.OnStreamStop()
	}
}

// Running returns the stream count seen by the last poll.
func (w *PCMWatcher) Running() int { return w.running }

func substreamRunning(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if state, ok := strings.CutPrefix(line, "state:"); ok {
			return strings.TrimSpace(state) == "RUNNING"
		}
	}
	return false
}
