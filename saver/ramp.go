package saver

import (
	"github.com/sirupsen/logrus"

	"github.com/power-saver/power-saver/saver/metrics"
	"github.com/power-saver/power-saver/saver/trace"
)

// StepFunc returns the nearest supported frequency from freq in direction dir.
type StepFunc func(freq uint32, dir Direction) uint32

func directionOf(cur, desired uint32) Direction {
	switch {
	case desired > cur:
		return DirectionUp
	case desired < cur:
		return DirectionDown
	default:
		return DirectionNone
	}
}

// stepToward moves cur one table step toward desired. A step that would
// overshoot, or a table with no further entry, lands on desired.
func stepToward(cur, desired uint32, step StepFunc) (uint32, Direction) {
	dir := directionOf(cur, desired)
	if dir == DirectionNone {
		return cur, dir
	}
	next := step(cur, dir)
	switch dir {
	case DirectionUp:
		if next <= cur || next > desired {
			next = desired
		}
	case DirectionDown:
		if next >= cur || next < desired {
			next = desired
		}
	}
	return next, dir
}

// Ramp moves applied one step toward desired, min and max independently.
// Given desired.Min <= desired.Max the result keeps Min <= Max.
func Ramp(desired, applied Bounds, step StepFunc) Bounds {
	next := Bounds{}
	next.Min, _ = stepToward(applied.Min, desired.Min, step)
	next.Max, _ = stepToward(applied.Max, desired.Max, step)
	if next.Min > next.Max {
		next.Min = next.Max
	}
	return next
}

// RampController applies policy bounds to requests from the adjust hook,
// converging toward the target one frequency step per debounce period.
type RampController struct {
	scaler   FrequencyScaler
	debounce *Debouncer
	recorder Recorder
}

// NewRampController creates a RampController stepping through scaler's
// frequency tables and rescheduling through debounce.
func NewRampController(scaler FrequencyScaler, debounce *Debouncer, recorder Recorder) *RampController {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &RampController{scaler: scaler, debounce: debounce, recorder: recorder}
}

// Adjust rewrites req's bounds for cluster cl under state st.
// Screen-on bounds are applied at once; screen-off bounds move a single step
// and arm the debounce timer while the target is not reached.
// It reports whether the applied bounds equal the target.
func (r *RampController) Adjust(req *PolicyRequest, cl Cluster, cfg ClusterConfig, st PowerState) bool {
	hw := req.Limits()
	if hw.Min > hw.Max {
		logrus.Warnf("cpu %d: inverted hardware limits [%d, %d], leaving policy untouched", req.CPU, hw.Min, hw.Max)
		return true
	}
	desired := ComputeCPUBounds(cfg, st, hw)

	if st.ScreenOn {
		req.Min, req.Max = desired.Min, desired.Max
		r.recorder.RecordRamp(trace.RampRecord{
			CPU:        req.CPU,
			Cluster:    string(cl),
			DesiredMin: desired.Min,
			DesiredMax: desired.Max,
			AppliedMin: desired.Min,
			AppliedMax: desired.Max,
			Converged:  true,
		})
		return true
	}

	applied := r.current(req, hw)
	step := func(freq uint32, dir Direction) uint32 {
		return r.scaler.NextStep(req.CPU, freq, dir)
	}
	next := Ramp(desired, applied, step)
	r.countSteps(cl, applied, next)
	req.Min, req.Max = next.Min, next.Max

	converged := next == desired
	rec := trace.RampRecord{
		CPU:        req.CPU,
		Cluster:    string(cl),
		DesiredMin: desired.Min,
		DesiredMax: desired.Max,
		AppliedMin: next.Min,
		AppliedMax: next.Max,
		Converged:  converged,
	}
	if !converged {
		rec.Coalesced = r.debounce.Schedule(RampTarget{CPU: req.CPU, Cluster: cl, Desired: desired, Applied: next})
		rec.Scheduled = true
	}
	r.recorder.RecordRamp(rec)
	logrus.Debugf("cpu %d (%s): ramp [%d, %d] -> [%d, %d], target [%d, %d]",
		req.CPU, cl, applied.Min, applied.Max, next.Min, next.Max, desired.Min, desired.Max)
	return converged
}

// current returns the applied bounds carried by req, clamped to hw.
// A zero max is read as unrestricted.
func (r *RampController) current(req *PolicyRequest, hw HardwareLimits) Bounds {
	cur := Bounds{Min: clampFreq(req.Min, hw), Max: hw.Max}
	if req.Max != 0 {
		cur.Max = clampFreq(req.Max, hw)
	}
	if cur.Min > cur.Max {
		cur.Min = cur.Max
	}
	return cur
}

func (r *RampController) countSteps(cl Cluster, from, to Bounds) {
	if d := directionOf(from.Min, to.Min); d != DirectionNone {
		metrics.RampStepsTotal.WithLabelValues(string(cl), "min", d.String()).Inc()
	}
	if d := directionOf(from.Max, to.Max); d != DirectionNone {
		metrics.RampStepsTotal.WithLabelValues(string(cl), "max", d.String()).Inc()
	}
}
