package trace

import (
	"sync"
	"testing"
)

func TestDecisionTrace_RecordPass_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for decisions
	dt := NewDecisionTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN a pass record is recorded
	dt.RecordPass(PassRecord{PassID: "p1", ScreenOn: false, Streams: 1, Reevaluated: []int{0, 4}})

	// THEN the trace contains one pass with correct data
	passes := dt.Passes()
	if len(passes) != 1 {
		t.Fatalf("expected 1 pass, got %d", len(passes))
	}
	if passes[0].PassID != "p1" {
		t.Errorf("expected pass ID p1, got %s", passes[0].PassID)
	}
	if len(passes[0].Reevaluated) != 2 {
		t.Errorf("expected 2 re-evaluated cpus, got %d", len(passes[0].Reevaluated))
	}
}

func TestDecisionTrace_MultipleRecords_PreservesOrder(t *testing.T) {
	// GIVEN a trace
	dt := NewDecisionTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN multiple records are added
	dt.RecordRamp(RampRecord{CPU: 0, AppliedMax: 1500})
	dt.RecordRamp(RampRecord{CPU: 0, AppliedMax: 1200})
	dt.RecordRegistration(RegistrationRecord{Name: "a", Accepted: true})
	dt.RecordRegistration(RegistrationRecord{Name: "b", Reason: "duplicate"})

	// THEN order is preserved per record type
	ramps := dt.Ramps()
	if len(ramps) != 2 || ramps[0].AppliedMax != 1500 || ramps[1].AppliedMax != 1200 {
		t.Errorf("unexpected ramp order: %+v", ramps)
	}
	regs := dt.Registrations()
	if len(regs) != 2 || regs[0].Name != "a" || regs[1].Name != "b" {
		t.Errorf("unexpected registration order: %+v", regs)
	}
}

func TestDecisionTrace_LevelNone_RecordsNothing(t *testing.T) {
	dt := NewDecisionTrace(TraceConfig{Level: TraceLevelNone})

	dt.RecordPass(PassRecord{PassID: "p"})
	dt.RecordRamp(RampRecord{})
	dt.RecordRegistration(RegistrationRecord{})

	if len(dt.Passes())+len(dt.Ramps())+len(dt.Registrations()) != 0 {
		t.Error("expected no records at level none")
	}
}

func TestDecisionTrace_AccessorsReturnCopies(t *testing.T) {
	dt := NewDecisionTrace(TraceConfig{Level: TraceLevelDecisions})
	dt.RecordRamp(RampRecord{CPU: 1})

	ramps := dt.Ramps()
	ramps[0].CPU = 99

	if dt.Ramps()[0].CPU != 1 {
		t.Error("mutating the returned slice changed the trace")
	}
}

func TestDecisionTrace_ConcurrentRecording(t *testing.T) {
	dt := NewDecisionTrace(TraceConfig{Level: TraceLevelDecisions})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				dt.RecordRamp(RampRecord{CPU: j})
				dt.RecordPass(PassRecord{})
			}
		}()
	}
	wg.Wait()

	if got := len(dt.Ramps()); got != 800 {
		t.Errorf("expected 800 ramps, got %d", got)
	}
	if got := len(dt.Passes()); got != 800 {
		t.Errorf("expected 800 passes, got %d", got)
	}
}

func TestIsValidTraceLevel(t *testing.T) {
	tests := []struct {
		level string
		want  bool
	}{
		{"none", true},
		{"decisions", true},
		{"", true},
		{"verbose", false},
	}
	for _, tt := range tests {
		if got := IsValidTraceLevel(tt.level); got != tt.want {
			t.Errorf("IsValidTraceLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
