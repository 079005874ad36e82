package trace

// TraceSummary aggregates statistics from a DecisionTrace.
type TraceSummary struct {
	TotalPasses        int
	ScreenOffPasses    int
	StreamingPasses    int
	TotalRampSteps     int
	ConvergedSteps     int
	TimerArms          int
	TimerCoalesces     int
	AcceptedDevices    int
	DroppedDevices     int
	CategoryPopulation map[string]int // category → accepted devices
	FinalBounds        map[string][2]uint32
}

// Summarize computes aggregate statistics from a DecisionTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(dt *DecisionTrace) *TraceSummary {
	summary := &TraceSummary{
		CategoryPopulation: make(map[string]int),
		FinalBounds:        make(map[string][2]uint32),
	}
	if dt == nil {
		return summary
	}

	passes := dt.Passes()
	summary.TotalPasses = len(passes)
	for _, p := range passes {
		if !p.ScreenOn {
			summary.ScreenOffPasses++
			if p.Streams > 0 {
				summary.StreamingPasses++
			}
		}
	}

	for _, r := range dt.Ramps() {
		summary.TotalRampSteps++
		if r.Converged {
			summary.ConvergedSteps++
		}
		if r.Scheduled {
			if r.Coalesced {
				summary.TimerCoalesces++
			} else {
				summary.TimerArms++
			}
		}
		// later records overwrite earlier ones
		summary.FinalBounds[r.Cluster] = [2]uint32{r.AppliedMin, r.AppliedMax}
	}

	for _, reg := range dt.Registrations() {
		if reg.Accepted {
			summary.AcceptedDevices++
			summary.CategoryPopulation[reg.Category]++
		} else {
			summary.DroppedDevices++
		}
	}

	return summary
}
