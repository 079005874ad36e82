// Package trace provides decision-trace recording for policy analysis.
// It has no dependencies on saver/ and only stores plain data types.
package trace

import "time"

// PassRecord captures a single worker pass.
type PassRecord struct {
	PassID      string
	At          time.Time
	ScreenOn    bool
	Streams     uint
	Reevaluated []int          // representative CPUs re-evaluated, one per cluster
	Ceilings    map[string]int // category → devices updated
	Duration    time.Duration
}

// RampRecord captures a single adjust-hook evaluation under screen-off policy.
type RampRecord struct {
	CPU        int
	Cluster    string
	DesiredMin uint32
	DesiredMax uint32
	AppliedMin uint32
	AppliedMax uint32
	Converged  bool
	Scheduled  bool // debounce timer armed or reset
	Coalesced  bool // an already pending timer was replaced
}

// RegistrationRecord captures a bandwidth device registration attempt.
type RegistrationRecord struct {
	Name     string
	Category string // "none" when unclassified
	Accepted bool
	Reason   string
}
