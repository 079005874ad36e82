package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/power-saver/power-saver/internal/testutil"
	"github.com/power-saver/power-saver/saver"
	"github.com/power-saver/power-saver/saver/soc"
	"github.com/power-saver/power-saver/saver/trace"
)

// TestSimulate_GoldenDataset replays every golden scenario and compares the
// settled platform state.
func TestSimulate_GoldenDataset(t *testing.T) {
	if testing.Short() {
		t.Skip("golden scenarios run in real time")
	}
	dataset := testutil.LoadGoldenDataset(t)
	root := testutil.RepoRoot(t)

	for _, tc := range dataset.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			// GIVEN the case's config and scenario
			cfg, err := saver.LoadConfig(filepath.Join(root, tc.Config))
			require.NoError(t, err)
			sc, err := soc.LoadScenario(filepath.Join(root, tc.Scenario))
			require.NoError(t, err)

			// WHEN simulated
			result, err := Simulate(context.Background(), cfg, sc, trace.TraceLevelDecisions)
			require.NoError(t, err)

			// THEN the settled bounds and device ceilings match exactly
			wantBounds := make(map[int]saver.Bounds)
			for _, b := range tc.Expected.Bounds {
				wantBounds[b.CPU] = saver.Bounds{Min: b.Min, Max: b.Max}
			}
			if diff := cmp.Diff(wantBounds, result.Bounds); diff != "" {
				t.Errorf("bounds mismatch (-want +got):\n%s", diff)
			}
			wantDevices := make(map[string][2]uint64)
			for _, d := range tc.Expected.Devices {
				wantDevices[d.Name] = [2]uint64{d.Ceiling, d.State}
			}
			if diff := cmp.Diff(wantDevices, result.Devices); diff != "" {
				t.Errorf("devices mismatch (-want +got):\n%s", diff)
			}

			// AND the trace counters reach their lower bounds
			s := result.Summary
			testutil.AssertAtLeast(t, "screen-off passes", tc.Expected.MinScreenOffPasses, s.ScreenOffPasses)
			testutil.AssertAtLeast(t, "streaming passes", tc.Expected.MinStreamingPasses, s.StreamingPasses)
			if s.AcceptedDevices != tc.Expected.AcceptedDevices {
				t.Errorf("accepted devices: got %d, want %d", s.AcceptedDevices, tc.Expected.AcceptedDevices)
			}
		})
	}
}
