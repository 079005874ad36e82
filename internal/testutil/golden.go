// Package testutil provides shared test infrastructure for the power saver.
// It holds the golden scenario dataset types and assertion helpers used by
// the cmd and saver test packages.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// GoldenDataset represents the structure of testdata/goldendataset.json.
type GoldenDataset struct {
	Tests []GoldenTestCase `json:"tests"`
}

// GoldenTestCase is one scenario replay with its expected end state.
// Config and Scenario are relative to the repository root.
type GoldenTestCase struct {
	Name     string         `json:"name"`
	Config   string         `json:"config"`
	Scenario string         `json:"scenario"`
	Expected GoldenExpected `json:"expected"`
}

// GoldenExpected is the platform state after the scenario settles.
type GoldenExpected struct {
	// Exact match: ramps always converge onto table entries or configured
	// targets, so final bounds are deterministic.
	Bounds  []GoldenBounds `json:"bounds"`
	Devices []GoldenDevice `json:"devices"`

	// Lower bounds on trace counters; pass counts depend on timer jitter.
	MinScreenOffPasses int `json:"min_screen_off_passes"`
	MinStreamingPasses int `json:"min_streaming_passes"`
	AcceptedDevices    int `json:"accepted_devices"`
}

// GoldenBounds is the expected frequency range of the domain owning CPU.
type GoldenBounds struct {
	CPU int    `json:"cpu"`
	Min uint32 `json:"min"`
	Max uint32 `json:"max"`
}

// GoldenDevice is the expected ceiling and running state of a device.
type GoldenDevice struct {
	Name    string `json:"name"`
	Ceiling uint64 `json:"ceiling"`
	State   uint64 `json:"state"`
}

// RepoRoot returns the repository root, resolved relative to this source
// file: internal/testutil/ → ../..
func RepoRoot(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	return filepath.Join(filepath.Dir(thisFile), "..", "..")
}

// LoadGoldenDataset loads the golden dataset from the testdata directory.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()
	path := filepath.Join(RepoRoot(t), "testdata", "goldendataset.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}
	return &dataset
}

// AssertAtLeast fails the test when got is below want.
func AssertAtLeast(t *testing.T, name string, want, got int) {
	t.Helper()
	if got < want {
		t.Errorf("%s: got %d, want at least %d", name, got, want)
	}
}
