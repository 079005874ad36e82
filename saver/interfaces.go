package saver

import "sync"

// Direction is the way a frequency moves through the frequency table.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionUp
	DirectionDown
)

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	default:
		return "none"
	}
}

// PolicyRequest is the policy under evaluation by the frequency-scaling
// subsystem. Min and Max carry the currently applied bounds on entry and are
// rewritten in place by notifiers.
type PolicyRequest struct {
	CPU   int
	HWMin uint32 // cpuinfo minimum (kHz)
	HWMax uint32 // cpuinfo maximum (kHz)
	HWCur uint32 // current running frequency (kHz)
	Min   uint32
	Max   uint32
}

// Limits returns the hardware limits of the request.
func (r *PolicyRequest) Limits() HardwareLimits {
	return HardwareLimits{Min: r.HWMin, Max: r.HWMax}
}

// PolicyNotifier is called synchronously from the frequency-scaling
// subsystem's decision path. Implementations must not block.
type PolicyNotifier interface {
	AdjustPolicy(req *PolicyRequest)
}

// FrequencyScaler is the frequency-scaling subsystem consumed by the engine.
type FrequencyScaler interface {
	RegisterNotifier(n PolicyNotifier) error
	UnregisterNotifier(n PolicyNotifier)
	// RequestReevaluation re-runs the notifier chain for the policy owning cpu
	// and applies the resulting bounds.
	RequestReevaluation(cpu int) error
	// NextStep returns the nearest supported frequency from freq in direction
	// dir, or freq itself when the table has no further entry.
	NextStep(cpu int, freq uint32, dir Direction) uint32
	IsOnline(cpu int) bool
}

// BlankMode is the display power mode carried by a blank event.
type BlankMode int

const (
	BlankUnblank BlankMode = iota
	BlankLowPower
	BlankPowerdown
)

// BlankPhase tells whether an event is delivered before or after the panel
// changes state.
type BlankPhase int

const (
	PhaseEarly BlankPhase = iota
	PhasePost
)

// DisplayEvent is a display blank/unblank notification.
type DisplayEvent struct {
	Phase BlankPhase
	Mode  BlankMode
}

// DisplayHandler consumes display events.
type DisplayHandler func(ev DisplayEvent)

// DisplayNotifier delivers display events to subscribers in descending
// priority order.
type DisplayNotifier interface {
	Subscribe(priority int, h DisplayHandler) (unsubscribe func(), err error)
}

// StreamListener is the capability handed to the audio subsystem.
type StreamListener interface {
	OnStreamStart()
	OnStreamStop()
}

// BandwidthDevice is an interconnect or memory-path endpoint whose ceiling
// can be voted on. Callers hold the device's lock around SetCeiling and
// Recompute.
type BandwidthDevice interface {
	sync.Locker
	SetCeiling(value uint64)
	MaxSupportedState() uint64
	Recompute() error
}
