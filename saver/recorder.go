package saver

import "github.com/power-saver/power-saver/saver/trace"

// Recorder receives decision records from the engine.
// *trace.DecisionTrace satisfies it.
type Recorder interface {
	RecordPass(trace.PassRecord)
	RecordRamp(trace.RampRecord)
	RecordRegistration(trace.RegistrationRecord)
}

type nopRecorder struct{}

func (nopRecorder) RecordPass(trace.PassRecord)                 {}
func (nopRecorder) RecordRamp(trace.RampRecord)                 {}
func (nopRecorder) RecordRegistration(trace.RegistrationRecord) {}
