package saver

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"

	"github.com/power-saver/power-saver/saver/metrics"
	"github.com/power-saver/power-saver/saver/trace"
)

// WorkerStatus is the state of the update worker.
type WorkerStatus int32

const (
	WorkerIdle WorkerStatus = iota
	WorkerProcessing
	WorkerStopped
)

func (s WorkerStatus) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerProcessing:
		return "processing"
	default:
		return "stopped"
	}
}

var (
	testHookAfterPass func(PowerState)
)

// Worker is the single goroutine applying policy. It sleeps until the state
// is dirty, then requests frequency re-evaluation of one online CPU per
// configured cluster and pushes bandwidth ceilings to every registered device.
type Worker struct {
	cfg      *Config
	state    *State
	scaler   FrequencyScaler
	registry *Registry
	recorder Recorder
	tracer   otelTrace.Tracer
	realtime bool

	status     atomic.Int32
	cancelFunc func()
	waitGroup  sync.WaitGroup
	startOnce  sync.Once
}

// NewWorker creates an idle worker. Call Start to run it.
func NewWorker(cfg *Config, state *State, scaler FrequencyScaler, registry *Registry, recorder Recorder, realtime bool) *Worker {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	w := &Worker{
		cfg:        cfg,
		state:      state,
		scaler:     scaler,
		registry:   registry,
		recorder:   recorder,
		tracer:     otel.Tracer("github.com/power-saver/power-saver/saver"),
		realtime:   realtime,
		cancelFunc: func() {},
	}
	w.status.Store(int32(WorkerIdle))
	return w
}

// Start launches the worker goroutine. Only the first call has an effect.
func (w *Worker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		w.cancelFunc = cancel
		w.waitGroup.Add(1)
		go w.runLoop(ctx)
	})
}

// Stop asks the worker to exit and waits for it. A pass in progress
// completes; no new pass starts.
func (w *Worker) Stop() {
	w.cancelFunc()
	w.waitGroup.Wait()
	w.status.Store(int32(WorkerStopped))
}

// Status returns the current worker state.
func (w *Worker) Status() WorkerStatus {
	return WorkerStatus(w.status.Load())
}

func (w *Worker) runLoop(ctx context.Context) {
	defer w.waitGroup.Done()
	defer w.status.Store(int32(WorkerStopped))

	if w.realtime {
		// the thread is discarded when the goroutine exits while locked
		runtime.LockOSThread()
		if err := setRealtimePriority(); err != nil {
			logrus.Warnf("worker: running without real-time priority: %v", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.state.Wake():
		}
		if ctx.Err() != nil {
			return
		}

		snap := w.state.TakeAndClearDirty()
		if !snap.Dirty {
			continue
		}
		w.status.Store(int32(WorkerProcessing))
		w.process(ctx, snap)
		w.status.Store(int32(WorkerIdle))

		if testHookAfterPass != nil {
			testHookAfterPass(snap)
		}
	}
}

func (w *Worker) process(ctx context.Context, st PowerState) {
	start := time.Now()
	rec := trace.PassRecord{
		PassID:   uuid.NewString(),
		At:       start,
		ScreenOn: st.ScreenOn,
		Streams:  st.Streams,
		Ceilings: make(map[string]int),
	}
	_, span := w.tracer.Start(ctx, "worker.pass", otelTrace.WithAttributes(
		attribute.String("pass.id", rec.PassID),
		attribute.Bool("screen.on", st.ScreenOn),
		attribute.Int("audio.streams", int(st.Streams)),
	))
	defer span.End()

	logrus.Debugf("worker: pass %s screen_on=%t streams=%d", rec.PassID, st.ScreenOn, st.Streams)

	for _, cl := range Clusters {
		cc := w.cfg.Cluster(cl)
		if cc.Trivial() {
			continue
		}
		cpu, ok := w.firstOnline(cc.CPUs)
		if !ok {
			logrus.Debugf("worker: no online cpu in cluster %s", cl)
			continue
		}
		// every CPU of a cluster shares the frequency domain
		if err := w.scaler.RequestReevaluation(cpu); err != nil {
			logrus.Warnf("worker: re-evaluating cpu %d (%s): %v", cpu, cl, err)
			metrics.WorkerReevaluationErrors.WithLabelValues(string(cl)).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "re-evaluation failed")
			continue
		}
		rec.Reevaluated = append(rec.Reevaluated, cpu)
	}

	for _, cat := range Categories {
		cc := w.cfg.Category(cat)
		w.registry.ForEachDevice(cat, func(dev BandwidthDevice) {
			dev.Lock()
			dev.SetCeiling(ComputeBandwidthCeiling(cc, st, dev.MaxSupportedState()))
			err := dev.Recompute()
			dev.Unlock()
			if err != nil {
				logrus.Warnf("worker: recompute on %s device: %v", cat, err)
				metrics.WorkerRecomputeErrors.WithLabelValues(cat.String()).Inc()
				span.RecordError(err)
				return
			}
			rec.Ceilings[cat.String()]++
		})
	}

	rec.Duration = time.Since(start)
	metrics.WorkerPassesTotal.Inc()
	metrics.WorkerPassLatency.Observe(rec.Duration.Seconds())
	w.recorder.RecordPass(rec)
}

func (w *Worker) firstOnline(cpus []int) (int, bool) {
	for _, cpu := range cpus {
		if w.scaler.IsOnline(cpu) {
			return cpu, true
		}
	}
	return 0, false
}
