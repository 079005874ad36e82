// Package saver provides the screen-off power policy engine.
//
// # Reading Guide
//
// Start with these files to understand the engine:
//   - state.go: the aggregated display/audio state and its dirty flag
//   - policy.go: pure computation of CPU bounds and bandwidth ceilings
//   - ramp.go: one-step-at-a-time convergence of applied CPU bounds
//   - worker.go: the single goroutine that applies policy
//   - engine.go: wiring of the above plus the event adapters
//
// # Architecture
//
// The saver package defines the collaborator interfaces (interfaces.go);
// implementations live in sub-packages:
//   - saver/sysfs/: cpufreq, devfreq, backlight and ALSA PCM adapters for a
//     running Linux system
//   - saver/soc/: an in-memory SoC used by the simulate command and tests
//   - saver/trace/: decision trace recording
//   - saver/metrics/: Prometheus collectors
//
// # Key Interfaces
//
//   - FrequencyScaler: notifier chain, re-evaluation requests and frequency steps
//   - DisplayNotifier: prioritized blank/unblank subscriptions
//   - StreamListener: audio stream start/stop, implemented by the engine
//   - BandwidthDevice: ceiling, max state and recompute behind the device's lock
package saver
