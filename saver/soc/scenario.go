package soc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/power-saver/power-saver/saver"
)

// DomainSpec describes one frequency domain of a simulated platform.
type DomainSpec struct {
	CPUs        []int    `yaml:"cpus"`
	Frequencies []uint32 `yaml:"frequencies"`
}

// DeviceSpec describes one bandwidth device of a simulated platform.
type DeviceSpec struct {
	Name   string   `yaml:"name"`
	States []uint64 `yaml:"states"`
}

// Platform describes a simulated SoC.
type Platform struct {
	Domains []DomainSpec `yaml:"domains"`
	Devices []DeviceSpec `yaml:"devices"`
}

// Step is one timed event of a scenario. Exactly one action field is set.
type Step struct {
	AtMs    int64  `yaml:"at_ms"`
	Screen  string `yaml:"screen,omitempty"`  // "on" or "off"
	Stream  string `yaml:"stream,omitempty"`  // "start" or "stop"
	Attach  string `yaml:"attach,omitempty"`  // device name from the platform
	Offline *int   `yaml:"offline,omitempty"` // cpu to unplug
	Online  *int   `yaml:"online,omitempty"`  // cpu to replug
}

// Scenario is a platform plus a timeline of display, audio and hot-plug
// events replayed against the engine in real time.
type Scenario struct {
	Platform   Platform `yaml:"platform"`
	Steps      []Step   `yaml:"steps"`
	DurationMs int64    `yaml:"duration_ms"`
}

// LoadScenario reads a YAML scenario with strict field checking.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks step actions and device references.
func (sc *Scenario) Validate() error {
	if len(sc.Platform.Domains) == 0 {
		return errors.New("scenario platform has no frequency domains")
	}
	devices := make(map[string]bool)
	for _, d := range sc.Platform.Devices {
		if d.Name == "" {
			return errors.New("platform device without a name")
		}
		devices[d.Name] = true
	}
	for i, st := range sc.Steps {
		actions := 0
		for _, set := range []bool{st.Screen != "", st.Stream != "", st.Attach != "", st.Offline != nil, st.Online != nil} {
			if set {
				actions++
			}
		}
		if actions != 1 {
			return fmt.Errorf("step %d: exactly one action required, got %d", i, actions)
		}
		if st.AtMs < 0 {
			return fmt.Errorf("step %d: negative at_ms", i)
		}
		if st.Screen != "" && st.Screen != "on" && st.Screen != "off" {
			return fmt.Errorf("step %d: screen must be on or off, got %q", i, st.Screen)
		}
		if st.Stream != "" && st.Stream != "start" && st.Stream != "stop" {
			return fmt.Errorf("step %d: stream must be start or stop, got %q", i, st.Stream)
		}
		if st.Attach != "" && !devices[st.Attach] {
			return fmt.Errorf("step %d: unknown device %q", i, st.Attach)
		}
	}
	if sc.DurationMs < 0 {
		return errors.New("negative duration_ms")
	}
	return nil
}

// Harness is a built platform with its display bus.
type Harness struct {
	SoC     *SoC
	Bus     *saver.DisplayBus
	Devices map[string]*Device
}

// NewHarness builds the SoC and devices described by p.
func NewHarness(p Platform) (*Harness, error) {
	h := &Harness{SoC: New(), Bus: saver.NewDisplayBus(), Devices: make(map[string]*Device)}
	for i, d := range p.Domains {
		if err := h.SoC.AddDomain(d.CPUs, d.Frequencies); err != nil {
			return nil, fmt.Errorf("domain %d: %w", i, err)
		}
	}
	for _, d := range p.Devices {
		h.Devices[d.Name] = NewDevice(d.Name, d.States)
	}
	return h, nil
}

// Blank publishes an early blank event for the given screen state.
func (h *Harness) Blank(on bool) {
	mode := saver.BlankPowerdown
	if on {
		mode = saver.BlankUnblank
	}
	h.Bus.Publish(saver.DisplayEvent{Phase: saver.PhaseEarly, Mode: mode})
	h.Bus.Publish(saver.DisplayEvent{Phase: saver.PhasePost, Mode: mode})
}

// Play replays steps in time order against e, sleeping between them.
// It returns early with ctx's error when ctx is cancelled.
func (h *Harness) Play(ctx context.Context, steps []Step, e *saver.Engine) error {
	ordered := append([]Step(nil), steps...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].AtMs < ordered[j].AtMs })

	start := time.Now()
	audio := e.StreamListener()
	for _, st := range ordered {
		wait := time.Until(start.Add(time.Duration(st.AtMs) * time.Millisecond))
		if wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		switch {
		case st.Screen != "":
			logrus.Infof("[%6dms] screen %s", st.AtMs, st.Screen)
			h.Blank(st.Screen == "on")
		case st.Stream == "start":
			logrus.Infof("[%6dms] stream start", st.AtMs)
			audio.OnStreamStart()
		case st.Stream == "stop":
			logrus.Infof("[%6dms] stream stop", st.AtMs)
			audio.OnStreamStop()
		case st.Attach != "":
			logrus.Infof("[%6dms] attach %s", st.AtMs, st.Attach)
			if _, err := e.RegisterBandwidthDevice(h.Devices[st.Attach], st.Attach); err != nil {
				logrus.Warnf("attach %s: %v", st.Attach, err)
			}
		case st.Offline != nil:
			logrus.Infof("[%6dms] cpu %d offline", st.AtMs, *st.Offline)
			h.SoC.SetOnline(*st.Offline, false)
		case st.Online != nil:
			logrus.Infof("[%6dms] cpu %d online", st.AtMs, *st.Online)
			h.SoC.SetOnline(*st.Online, true)
		}
	}
	return nil
}
