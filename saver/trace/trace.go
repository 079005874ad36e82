package trace

import "sync"

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures worker passes, ramp steps and registrations.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// DecisionTrace collects decision records. Recording is safe from any
// goroutine; the adjust hook and the worker record concurrently.
type DecisionTrace struct {
	Config TraceConfig

	mu            sync.Mutex
	passes        []PassRecord
	ramps         []RampRecord
	registrations []RegistrationRecord
}

// NewDecisionTrace creates a DecisionTrace ready for recording.
func NewDecisionTrace(config TraceConfig) *DecisionTrace {
	return &DecisionTrace{
		Config:        config,
		passes:        make([]PassRecord, 0),
		ramps:         make([]RampRecord, 0),
		registrations: make([]RegistrationRecord, 0),
	}
}

func (dt *DecisionTrace) enabled() bool {
	return dt.Config.Level == TraceLevelDecisions
}

// RecordPass appends a worker pass record.
func (dt *DecisionTrace) RecordPass(record PassRecord) {
	if !dt.enabled() {
		return
	}
	dt.mu.Lock()
	dt.passes = append(dt.passes, record)
	dt.mu.Unlock()
}

// RecordRamp appends a ramp record.
func (dt *DecisionTrace) RecordRamp(record RampRecord) {
	if !dt.enabled() {
		return
	}
	dt.mu.Lock()
	dt.ramps = append(dt.ramps, record)
	dt.mu.Unlock()
}

// RecordRegistration appends a registration record.
func (dt *DecisionTrace) RecordRegistration(record RegistrationRecord) {
	if !dt.enabled() {
		return
	}
	dt.mu.Lock()
	dt.registrations = append(dt.registrations, record)
	dt.mu.Unlock()
}

// Passes returns a copy of the recorded passes.
func (dt *DecisionTrace) Passes() []PassRecord {
	dt.mu.Lock()
	defer dt.mu.Unlock()
	return append([]PassRecord(nil), dt.passes...)
}

// Ramps returns a copy of the recorded ramp evaluations.
func (dt *DecisionTrace) Ramps() []RampRecord {
	dt.mu.Lock()
	defer dt.mu.Unlock()
	return append([]RampRecord(nil), dt.ramps...)
}

// Registrations returns a copy of the recorded registrations.
func (dt *DecisionTrace) Registrations() []RegistrationRecord {
	dt.mu.Lock()
	defer dt.mu.Unlock()
	return append([]RegistrationRecord(nil), dt.registrations...)
}
