package saver

import (
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
)

// testTable is the frequency table shared by every fake cluster (kHz).
var testTable = []uint32{300000, 600000, 900000, 1200000, 1500000, 1800000}

var testHW = HardwareLimits{Min: 300000, Max: 1800000}

func testConfig() *Config {
	return &Config{
		RampingStepDelayMs:    5,
		MaxDevicesPerCategory: 4,
		Clusters: map[Cluster]ClusterConfig{
			ClusterLittle: {CPUs: []int{0, 1}, MinFreq: 600000, MaxFreq: 900000, MaxFreqStreaming: 1200000},
			ClusterBig:    {CPUs: []int{2, 3}, MinFreq: 900000, MaxFreq: 600000, MaxFreqStreaming: 1500000},
			ClusterPrime:  {CPUs: []int{4}},
		},
		Bandwidth: map[string]CategoryConfig{
			CategoryCPULLCCBandwidth.String(): {FloorNormal: 100, FloorStreaming: 400},
			CategoryDDRLatencyFloor.String():  {FloorNormal: 50, FloorStreaming: 50},
		},
	}
}

// fakeScaler is a FrequencyScaler over testTable that keeps applied bounds
// per CPU and runs its notifiers synchronously.
type fakeScaler struct {
	mu          sync.Mutex
	notifiers   []PolicyNotifier
	bounds      map[int]Bounds
	reevals     []int
	offline     map[int]bool
	registerErr error
	unregisters int
}

func newFakeScaler() *fakeScaler {
	return &fakeScaler{bounds: make(map[int]Bounds), offline: make(map[int]bool)}
}

func (f *fakeScaler) RegisterNotifier(n PolicyNotifier) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registerErr != nil {
		return f.registerErr
	}
	f.notifiers = append(f.notifiers, n)
	return nil
}

func (f *fakeScaler) UnregisterNotifier(n PolicyNotifier) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unregisters++
	f.notifiers = slices.DeleteFunc(f.notifiers, func(x PolicyNotifier) bool { return x == n })
}

func (f *fakeScaler) RequestReevaluation(cpu int) error {
	f.mu.Lock()
	f.reevals = append(f.reevals, cpu)
	b, ok := f.bounds[cpu]
	if !ok {
		b = Bounds{Min: testHW.Min, Max: testHW.Max}
	}
	chain := slices.Clone(f.notifiers)
	f.mu.Unlock()

	req := &PolicyRequest{CPU: cpu, HWMin: testHW.Min, HWMax: testHW.Max, HWCur: b.Max, Min: b.Min, Max: b.Max}
	for _, n := range chain {
		n.AdjustPolicy(req)
	}

	f.mu.Lock()
	f.bounds[cpu] = Bounds{Min: req.Min, Max: req.Max}
	f.mu.Unlock()
	return nil
}

func (f *fakeScaler) NextStep(_ int, freq uint32, dir Direction) uint32 {
	return tableStep(testTable, freq, dir)
}

func (f *fakeScaler) IsOnline(cpu int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.offline[cpu]
}

func (f *fakeScaler) boundsOf(cpu int) Bounds {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bounds[cpu]
}

func (f *fakeScaler) reevaluated() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.reevals)
}

func tableStep(table []uint32, freq uint32, dir Direction) uint32 {
	switch dir {
	case DirectionUp:
		for _, f := range table {
			if f > freq {
				return f
			}
		}
	case DirectionDown:
		for i := len(table) - 1; i >= 0; i-- {
			if table[i] < freq {
				return table[i]
			}
		}
	}
	return freq
}

// fakeDevice is a BandwidthDevice recording its ceiling.
type fakeDevice struct {
	sync.Mutex
	maxState   uint64
	ceiling    uint64
	recomputes int
	err        error
}

func (d *fakeDevice) SetCeiling(v uint64)       { d.ceiling = v }
func (d *fakeDevice) MaxSupportedState() uint64 { return d.maxState }
func (d *fakeDevice) Recompute() error {
	d.recomputes++
	return d.err
}

func (d *fakeDevice) snapshot() (uint64, int) {
	d.Lock()
	defer d.Unlock()
	return d.ceiling, d.recomputes
}

// fakeDisplay is a DisplayNotifier that can fail subscriptions.
type fakeDisplay struct {
	*DisplayBus
	err error
}

func (f *fakeDisplay) Subscribe(priority int, h DisplayHandler) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.DisplayBus.Subscribe(priority, h)
}

func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp YAML: %v", err)
	}
	return path
}
