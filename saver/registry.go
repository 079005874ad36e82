package saver

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/power-saver/power-saver/saver/metrics"
	"github.com/power-saver/power-saver/saver/trace"
)

// ErrAllocation is returned when a category group cannot take another device.
var ErrAllocation = errors.New("device group allocation failed")

// ErrInvalidHandle is returned for a nil device handle or one whose dynamic
// type cannot be compared for identity.
var ErrInvalidHandle = errors.New("invalid device handle")

// categoryPatterns are matched as name suffixes, so "soc:qcom,cpu-cpu-llcc-bw"
// and "cpu-cpu-llcc-bw" classify the same way.
var categoryPatterns = [numCategories]string{
	CategoryCPULLCCBandwidth: "cpu-cpu-llcc-bw",
	CategoryLLCCDDRBandwidth: "cpu-llcc-ddr-bw",
	CategoryDDRLatencyFloor:  "cpu-ddr-latfloor",
	CategoryL3Latency:        "cpu-l3-lat",
	CategoryNPUDDRBandwidth:  "npu-npu-ddr-bw",
}

// Classify maps a device name to its category, or CategoryNone.
func Classify(name string) Category {
	for i, p := range categoryPatterns {
		if strings.HasSuffix(name, p) {
			return Category(i)
		}
	}
	return CategoryNone
}

// DeviceGroup is the ordered list of devices of one category.
// It only grows.
type DeviceGroup struct {
	devices  []BandwidthDevice
	capacity int // 0 = unlimited
}

func (g *DeviceGroup) append(dev BandwidthDevice) error {
	if g.capacity > 0 && len(g.devices) >= g.capacity {
		return fmt.Errorf("%w: group full at %d devices", ErrAllocation, g.capacity)
	}
	g.devices = append(g.devices, dev)
	return nil
}

func (g *DeviceGroup) contains(dev BandwidthDevice) bool {
	for _, d := range g.devices {
		if d == dev {
			return true
		}
	}
	return false
}

// Func definitions for unit testing
var (
	newDeviceGroupFunc = func(capacity int) (*DeviceGroup, error) {
		return &DeviceGroup{devices: make([]BandwidthDevice, 0, 4), capacity: capacity}, nil
	}
)

// Registry classifies attaching bandwidth devices into category groups.
// Registration and iteration may run concurrently: ForEachDevice works on a
// snapshot taken under the read lock, so callbacks never hold the registry
// lock.
//
// Handles are compared by identity to drop repeated registrations of the same
// device (probe retries); they must be comparable, typically pointers.
// Other handles are refused with ErrInvalidHandle.
type Registry struct {
	mu       sync.RWMutex
	groups   [numCategories]*DeviceGroup
	capacity int
	recorder Recorder

	unclassifiedLog rate.Sometimes
}

// NewRegistry creates an empty registry limiting each group to capacity
// devices (0 = unlimited).
func NewRegistry(capacity int, recorder Recorder) *Registry {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Registry{
		capacity:        capacity,
		recorder:        recorder,
		unclassifiedLog: rate.Sometimes{First: 8, Interval: time.Minute},
	}
}

// Register classifies name and appends dev to the matching group.
// Unclassified names return CategoryNone and no error. A failed group
// allocation drops this registration and returns an ErrAllocation error;
// the registry keeps serving every other device.
func (r *Registry) Register(dev BandwidthDevice, name string) (Category, error) {
	cat, _, err := r.register(dev, name)
	return cat, err
}

func (r *Registry) register(dev BandwidthDevice, name string) (cat Category, added bool, err error) {
	cat = Classify(name)
	if cat == CategoryNone {
		r.unclassifiedLog.Do(func() {
			logrus.Debugf("registry: ignoring unclassified device %q", name)
		})
		r.recorder.RecordRegistration(trace.RegistrationRecord{Name: name, Category: cat.String(), Reason: "unclassified"})
		return cat, false, nil
	}

	err = r.add(cat, dev)
	switch {
	case errors.Is(err, ErrInvalidHandle):
		logrus.Warnf("registry: dropping %q (%s): %v", name, cat, err)
		metrics.DroppedRegistrationsTotal.WithLabelValues("invalid").Inc()
		r.recorder.RecordRegistration(trace.RegistrationRecord{Name: name, Category: cat.String(), Reason: err.Error()})
		return cat, false, err
	case err == nil:
		logrus.Infof("registry: %q registered as %s", name, cat)
		r.recorder.RecordRegistration(trace.RegistrationRecord{Name: name, Category: cat.String(), Accepted: true})
	case errors.Is(err, errDuplicate):
		logrus.Debugf("registry: %q already registered as %s", name, cat)
		metrics.DroppedRegistrationsTotal.WithLabelValues("duplicate").Inc()
		r.recorder.RecordRegistration(trace.RegistrationRecord{Name: name, Category: cat.String(), Reason: "duplicate"})
		return cat, false, nil
	default:
		logrus.Warnf("registry: dropping %q (%s): %v", name, cat, err)
		metrics.DroppedRegistrationsTotal.WithLabelValues("allocation").Inc()
		r.recorder.RecordRegistration(trace.RegistrationRecord{Name: name, Category: cat.String(), Reason: err.Error()})
		return cat, false, err
	}
	return cat, true, nil
}

var errDuplicate = errors.New("duplicate device handle")

func (r *Registry) add(cat Category, dev BandwidthDevice) error {
	if dev == nil {
		return fmt.Errorf("%w: nil", ErrInvalidHandle)
	}
	if t := reflect.TypeOf(dev); !t.Comparable() {
		return fmt.Errorf("%w: %s is not comparable", ErrInvalidHandle, t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	g := r.groups[cat]
	if g == nil {
		ng, err := newDeviceGroupFunc(r.capacity)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAllocation, err)
		}
		g = ng
		r.groups[cat] = g
	}
	if g.contains(dev) {
		return errDuplicate
	}
	if err := g.append(dev); err != nil {
		return err
	}
	metrics.RegisteredDevices.WithLabelValues(cat.String()).Set(float64(len(g.devices)))
	return nil
}

// ForEachDevice calls fn for every device of cat in registration order.
// Devices registered while iterating are picked up by the next call.
func (r *Registry) ForEachDevice(cat Category, fn func(BandwidthDevice)) {
	for _, dev := range r.snapshot(cat) {
		fn(dev)
	}
}

// Len returns the number of devices registered in cat.
func (r *Registry) Len(cat Category) int {
	return len(r.snapshot(cat))
}

func (r *Registry) snapshot(cat Category) []BandwidthDevice {
	if cat < 0 || int(cat) >= numCategories {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	g := r.groups[cat]
	if g == nil {
		return nil
	}
	// append-only: the prefix up to len never changes, so a slice header copy
	// is a stable snapshot
	return g.devices[:len(g.devices):len(g.devices)]
}
