package saver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrInitialization is wrapped by Start when a notification subscription fails.
var ErrInitialization = errors.New("power saver initialization failed")

// ErrStopped is returned by Start once the engine has been stopped. A stopped
// engine cannot be restarted; build a new one instead.
var ErrStopped = errors.New("power saver stopped")

// Options tunes an Engine.
type Options struct {
	Recorder Recorder // decision records; nil discards them
	Realtime bool     // run the worker at SCHED_FIFO priority
}

// Engine owns the policy state and wires the event adapters, the ramping
// controller and the update worker together.
type Engine struct {
	cfg      *Config
	state    *State
	registry *Registry
	debounce *Debouncer
	ramp     *RampController
	worker   *Worker
	scaler   FrequencyScaler
	display  DisplayNotifier
	policy   *policyAdapter
	audio    *audioAdapter

	mu                 sync.Mutex
	started            bool
	stopped            bool
	unsubscribeDisplay func()
}

// NewEngine builds an engine over the given collaborators. cfg must not be
// modified afterwards.
func NewEngine(cfg *Config, scaler FrequencyScaler, display DisplayNotifier, opts Options) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if scaler == nil || display == nil {
		return nil, errors.New("frequency scaler and display notifier are required")
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	e := &Engine{
		cfg:      cfg,
		state:    NewState(),
		registry: NewRegistry(cfg.MaxDevicesPerCategory, recorder),
		scaler:   scaler,
		display:  display,
	}
	// a timer expiry only asks the worker for another pass
	e.debounce = NewDebouncer(cfg.RampingStepDelay(), func(RampTarget) { e.state.Poke() })
	e.ramp = NewRampController(scaler, e.debounce, recorder)
	e.worker = NewWorker(cfg, e.state, scaler, e.registry, recorder, opts.Realtime)
	e.policy = &policyAdapter{e: e}
	e.audio = &audioAdapter{state: e.state}
	return e, nil
}

// Start subscribes to frequency-scaling and display notifications and
// launches the worker. A failed subscription unwinds the earlier ones and
// returns an error wrapping ErrInitialization.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrStopped
	}
	if e.started {
		return errors.New("engine already started")
	}

	if err := e.scaler.RegisterNotifier(e.policy); err != nil {
		logrus.Errorf("failed to register frequency notifier: %v", err)
		return fmt.Errorf("%w: frequency notifier: %w", ErrInitialization, err)
	}
	unsubscribe, err := e.display.Subscribe(PriorityHighest, e.onDisplay)
	if err != nil {
		logrus.Errorf("failed to register display notifier: %v", err)
		e.scaler.UnregisterNotifier(e.policy)
		return fmt.Errorf("%w: display notifier: %w", ErrInitialization, err)
	}
	e.unsubscribeDisplay = unsubscribe

	e.worker.Start(ctx)
	e.started = true
	logrus.Infof("power saver started (ramping step %s)", e.cfg.RampingStepDelay())
	return nil
}

// Stop tears the engine down: no more display events, the debounce timer is
// cancelled and any expiry in flight joined, then the worker is joined and
// the frequency notifier removed. Stop is final.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return
	}
	e.unsubscribeDisplay()
	e.debounce.Stop()
	e.worker.Stop()
	e.scaler.UnregisterNotifier(e.policy)
	e.started = false
	e.stopped = true
	logrus.Info("power saver stopped")
}

// RegisterBandwidthDevice classifies and records a bandwidth device. It may
// be called any number of times from any goroutine. An accepted device gets
// its ceiling on the next worker pass, which this call requests.
func (e *Engine) RegisterBandwidthDevice(dev BandwidthDevice, name string) (Category, error) {
	cat, added, err := e.registry.register(dev, name)
	if added {
		e.state.Poke()
	}
	return cat, err
}

// StreamListener returns the capability handed to the audio subsystem.
func (e *Engine) StreamListener() StreamListener {
	return e.audio
}

// PolicyNotifier returns the adjust hook registered with the frequency scaler.
func (e *Engine) PolicyNotifier() PolicyNotifier {
	return e.policy
}

// SetScreen feeds a display state directly, bypassing the display notifier.
func (e *Engine) SetScreen(on bool) {
	e.state.SetScreen(on)
}

// State returns the engine's state store.
func (e *Engine) State() *State { return e.state }

// Registry returns the engine's device registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Debouncer returns the engine's ramp debounce timer.
func (e *Engine) Debouncer() *Debouncer { return e.debounce }

// WorkerStatus returns the state of the update worker.
func (e *Engine) WorkerStatus() WorkerStatus { return e.worker.Status() }

func (e *Engine) onDisplay(ev DisplayEvent) {
	// act before the panel changes state
	if ev.Phase != PhaseEarly {
		return
	}
	switch ev.Mode {
	case BlankUnblank:
		e.state.SetScreen(true)
	case BlankPowerdown:
		e.state.SetScreen(false)
	default:
		logrus.Debugf("display: ignoring blank mode %d", ev.Mode)
	}
}

// policyAdapter is the adjust hook. It runs inline in the frequency scaler's
// decision path: arithmetic plus at most one timer reset.
type policyAdapter struct {
	e *Engine
}

func (p *policyAdapter) AdjustPolicy(req *PolicyRequest) {
	cl, ok := p.e.cfg.ClusterOf(req.CPU)
	if !ok {
		return
	}
	p.e.ramp.Adjust(req, cl, p.e.cfg.Cluster(cl), p.e.state.Load())
}

type audioAdapter struct {
	state *State
}

func (a *audioAdapter) OnStreamStart() { a.state.StreamDelta(+1) }

func (a *audioAdapter) OnStreamStop() { a.state.StreamDelta(-1) }
