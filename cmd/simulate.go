package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/power-saver/power-saver/saver"
	"github.com/power-saver/power-saver/saver/soc"
	"github.com/power-saver/power-saver/saver/trace"
)

var (
	scenarioPath string // YAML scenario
	traceLevel   string // decision trace level
)

// simulateCmd replays a scenario against an in-memory SoC
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay a display/audio scenario against a simulated SoC",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		if scenarioPath == "" {
			logrus.Fatalf("Scenario not provided. Exiting simulation.")
		}
		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Invalid trace level: %s", traceLevel)
		}
		cfg := loadConfig()
		sc, err := soc.LoadScenario(scenarioPath)
		if err != nil {
			logrus.Fatalf("unable to load scenario: %v", err)
		}

		result, err := Simulate(cmd.Context(), cfg, sc, trace.TraceLevel(traceLevel))
		if err != nil {
			logrus.Fatalf("simulation failed: %v", err)
		}
		result.Print(os.Stdout)
		logrus.Info("Simulation complete.")
	},
}

// SimulationResult is the outcome of a scenario replay.
type SimulationResult struct {
	Summary *trace.TraceSummary
	Bounds  map[int]saver.Bounds // first CPU of each domain → applied bounds
	Devices map[string][2]uint64 // device → ceiling, running state
	Elapsed time.Duration
}

// Simulate builds a harness for sc, runs the engine through the scenario
// and collects the final platform state.
func Simulate(ctx context.Context, cfg *saver.Config, sc *soc.Scenario, level trace.TraceLevel) (*SimulationResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	h, err := soc.NewHarness(sc.Platform)
	if err != nil {
		return nil, err
	}
	dt := trace.NewDecisionTrace(trace.TraceConfig{Level: level})
	engine, err := saver.NewEngine(cfg, h.SoC, h.Bus, saver.Options{Recorder: dt})
	if err != nil {
		return nil, err
	}
	start := time.Now()
	if err := engine.Start(ctx); err != nil {
		return nil, err
	}
	if err := h.Play(ctx, sc.Steps, engine); err != nil {
		engine.Stop()
		return nil, err
	}
	if remaining := time.Until(start.Add(time.Duration(sc.DurationMs) * time.Millisecond)); remaining > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(remaining):
		}
	}
	engine.Stop()

	result := &SimulationResult{
		Summary: trace.Summarize(dt),
		Bounds:  make(map[int]saver.Bounds),
		Devices: make(map[string][2]uint64),
		Elapsed: time.Since(start),
	}
	for _, d := range sc.Platform.Domains {
		if b, ok := h.SoC.Bounds(d.CPUs[0]); ok {
			result.Bounds[d.CPUs[0]] = b
		}
	}
	for name, dev := range h.Devices {
		ceiling, cur, _ := dev.Snapshot()
		result.Devices[name] = [2]uint64{ceiling, cur}
	}
	return result, nil
}

// Print writes a human-readable report.
func (r *SimulationResult) Print(w io.Writer) {
	s := r.Summary
	fmt.Fprintf(w, "=== Simulation (%s) ===\n", r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Worker passes      : %d (screen-off %d, streaming %d)\n", s.TotalPasses, s.ScreenOffPasses, s.StreamingPasses)
	fmt.Fprintf(w, "Hook evaluations   : %d (converged %d)\n", s.TotalRampSteps, s.ConvergedSteps)
	fmt.Fprintf(w, "Debounce timer     : %d armed, %d coalesced\n", s.TimerArms, s.TimerCoalesces)
	fmt.Fprintf(w, "Devices            : %d accepted, %d not registered\n", s.AcceptedDevices, s.DroppedDevices)

	cpus := make([]int, 0, len(r.Bounds))
	for cpu := range r.Bounds {
		cpus = append(cpus, cpu)
	}
	sort.Ints(cpus)
	for _, cpu := range cpus {
		b := r.Bounds[cpu]
		fmt.Fprintf(w, "  cpu%-3d bounds   : [%d, %d] kHz\n", cpu, b.Min, b.Max)
	}
	names := make([]string, 0, len(r.Devices))
	for name := range r.Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		d := r.Devices[name]
		fmt.Fprintf(w, "  %-32s ceiling=%d state=%d\n", name, d[0], d[1])
	}
}

func init() {
	simulateCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Path to the YAML scenario")
	simulateCmd.Flags().StringVar(&traceLevel, "trace-level", string(trace.TraceLevelDecisions), "Decision trace level (none, decisions)")
}
