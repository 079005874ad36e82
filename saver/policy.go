package saver

// HardwareLimits are the cpuinfo frequency limits of a cluster.
type HardwareLimits struct {
	Min uint32
	Max uint32
}

// Bounds is a (min, max) frequency pair in kHz.
type Bounds struct {
	Min uint32
	Max uint32
}

func clampFreq(freq uint32, hw HardwareLimits) uint32 {
	return max(hw.Min, min(freq, hw.Max))
}

// ComputeMax returns the screen-off ceiling for a cluster: MaxFreqStreaming
// while audio plays, MaxFreq otherwise, clamped into the hardware range.
// A zero ceiling therefore pins the cluster to the hardware minimum.
func ComputeMax(cfg ClusterConfig, st PowerState, hw HardwareLimits) uint32 {
	freq := cfg.MaxFreq
	if st.Streams > 0 {
		freq = cfg.MaxFreqStreaming
	}
	return clampFreq(freq, hw)
}

// ComputeMin returns the screen-on floor for a cluster.
func ComputeMin(cfg ClusterConfig, hw HardwareLimits) uint32 {
	return clampFreq(cfg.MinFreq, hw)
}

// ComputeCPUBounds returns the target bounds for a cluster.
// With the screen on the cluster keeps full headroom above its floor; with
// the screen off the floor drops to the hardware minimum and the ceiling is
// capped for power saving. The result always satisfies
// hw.Min <= Min <= Max <= hw.Max.
func ComputeCPUBounds(cfg ClusterConfig, st PowerState, hw HardwareLimits) Bounds {
	if st.ScreenOn {
		return Bounds{Min: ComputeMin(cfg, hw), Max: hw.Max}
	}
	return Bounds{Min: hw.Min, Max: ComputeMax(cfg, st, hw)}
}

// ComputeBandwidthCeiling returns the ceiling for a device of the given
// category. deviceMax is the device's own maximum supported state.
func ComputeBandwidthCeiling(cfg CategoryConfig, st PowerState, deviceMax uint64) uint64 {
	if st.ScreenOn {
		return deviceMax
	}
	floor := cfg.FloorNormal
	if st.Streams > 0 {
		floor = cfg.FloorStreaming
	}
	switch {
	case floor == 0:
		return deviceMax
	case deviceMax == 0:
		return floor
	}
	return min(floor, deviceMax)
}
