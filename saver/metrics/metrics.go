// Package metrics holds the Prometheus collectors of the power-saver engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// State store
	ScreenOn = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "power_saver",
		Subsystem: "state",
		Name:      "screen_on",
		Help:      "1 while the display is on",
	})

	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "power_saver",
		Subsystem: "state",
		Name:      "active_streams",
		Help:      "Number of active audio streams",
	})

	// Worker
	WorkerPassesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "power_saver",
		Subsystem: "worker",
		Name:      "passes_total",
		Help:      "Total policy application passes",
	})

	WorkerPassLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "power_saver",
		Subsystem: "worker",
		Name:      "pass_duration_seconds",
		Help:      "Policy application pass duration",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	})

	WorkerReevaluationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "power_saver",
		Subsystem: "worker",
		Name:      "reevaluation_errors_total",
		Help:      "Frequency re-evaluation requests that failed",
	}, []string{"cluster"})

	WorkerRecomputeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "power_saver",
		Subsystem: "worker",
		Name:      "recompute_errors_total",
		Help:      "Bandwidth device recompute calls that failed",
	}, []string{"category"})

	// Ramping
	RampStepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "power_saver",
		Subsystem: "ramp",
		Name:      "steps_total",
		Help:      "Single-step bound moves applied by the ramping controller",
	}, []string{"cluster", "bound", "direction"})

	DebounceSchedulesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "power_saver",
		Subsystem: "ramp",
		Name:      "debounce_schedules_total",
		Help:      "Debounce timer requests by outcome (armed, coalesced)",
	}, []string{"outcome"})

	DebounceFiresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "power_saver",
		Subsystem: "ramp",
		Name:      "debounce_fires_total",
		Help:      "Debounce timer expirations",
	})

	// Registry
	RegisteredDevices = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "power_saver",
		Subsystem: "registry",
		Name:      "devices",
		Help:      "Bandwidth devices registered per category",
	}, []string{"category"})

	DroppedRegistrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "power_saver",
		Subsystem: "registry",
		Name:      "dropped_registrations_total",
		Help:      "Device registrations not added to a group, by reason",
	}, []string{"reason"})
)
