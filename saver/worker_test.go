package saver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/power-saver/power-saver/saver/trace"
)

type scalerMock struct {
	mock.Mock
}

func (s *scalerMock) RegisterNotifier(n PolicyNotifier) error {
	return s.Called(n).Error(0)
}

func (s *scalerMock) UnregisterNotifier(n PolicyNotifier) {
	s.Called(n)
}

func (s *scalerMock) RequestReevaluation(cpu int) error {
	return s.Called(cpu).Error(0)
}

func (s *scalerMock) NextStep(cpu int, freq uint32, dir Direction) uint32 {
	return uint32(s.Called(cpu, freq, dir).Int(0))
}

func (s *scalerMock) IsOnline(cpu int) bool {
	return s.Called(cpu).Bool(0)
}

// hookPasses routes completed worker passes to a channel for the test's
// duration.
func hookPasses(t *testing.T) <-chan PowerState {
	t.Helper()
	ch := make(chan PowerState, 16)
	testHookAfterPass = func(st PowerState) { ch <- st }
	t.Cleanup(func() { testHookAfterPass = nil })
	return ch
}

func waitPass(t *testing.T, ch <-chan PowerState) PowerState {
	t.Helper()
	select {
	case st := <-ch:
		return st
	case <-time.After(2 * time.Second):
		t.Fatal("worker pass did not complete")
		return PowerState{}
	}
}

func TestWorker_PassReevaluatesOneOnlineCPUPerCluster(t *testing.T) {
	passes := hookPasses(t)

	// GIVEN cpu 0 offline and the prime cluster left unconfigured
	scaler := &scalerMock{}
	scaler.On("IsOnline", 0).Return(false)
	scaler.On("IsOnline", 1).Return(true)
	scaler.On("IsOnline", 2).Return(true)
	scaler.On("RequestReevaluation", 1).Return(nil)
	scaler.On("RequestReevaluation", 2).Return(nil)

	state := NewState()
	dt := trace.NewDecisionTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})
	w := NewWorker(testConfig(), state, scaler, NewRegistry(0, nil), dt, false)
	w.Start(context.Background())
	defer w.Stop()

	// WHEN the screen turns off
	state.SetScreen(false)
	st := waitPass(t, passes)

	// THEN one CPU of each configured cluster is re-evaluated
	assert.False(t, st.ScreenOn)
	scaler.AssertExpectations(t)
	scaler.AssertNotCalled(t, "RequestReevaluation", 0)
	scaler.AssertNotCalled(t, "IsOnline", 4)
	scaler.AssertNumberOfCalls(t, "RequestReevaluation", 2)

	passRecs := dt.Passes()
	require.Len(t, passRecs, 1)
	assert.Equal(t, []int{1, 2}, passRecs[0].Reevaluated)
	assert.NotEmpty(t, passRecs[0].PassID)
}

func TestWorker_ReevaluationErrorDoesNotStopPass(t *testing.T) {
	passes := hookPasses(t)

	scaler := &scalerMock{}
	scaler.On("IsOnline", mock.Anything).Return(true)
	scaler.On("RequestReevaluation", 0).Return(errors.New("policy busy"))
	scaler.On("RequestReevaluation", 2).Return(nil)

	state := NewState()
	reg := NewRegistry(0, nil)
	dev := &fakeDevice{maxState: 1000}
	_, err := reg.Register(dev, "cpu-cpu-llcc-bw")
	require.NoError(t, err)

	w := NewWorker(testConfig(), state, scaler, reg, nil, false)
	w.Start(context.Background())
	defer w.Stop()

	state.SetScreen(false)
	waitPass(t, passes)

	scaler.AssertCalled(t, "RequestReevaluation", 2)
	ceiling, recomputes := dev.snapshot()
	assert.Equal(t, uint64(100), ceiling)
	assert.Equal(t, 1, recomputes)
}

func TestWorker_BandwidthCeilingsFollowState(t *testing.T) {
	passes := hookPasses(t)
	scaler := newFakeScaler()
	state := NewState()
	reg := NewRegistry(0, nil)

	llcc := &fakeDevice{maxState: 1000}
	l3 := &fakeDevice{maxState: 500}
	broken := &fakeDevice{maxState: 1000, err: errors.New("recompute failed")}
	for dev, name := range map[*fakeDevice]string{llcc: "cpu-cpu-llcc-bw", l3: "cpu-l3-lat", broken: "x-cpu-cpu-llcc-bw"} {
		_, err := reg.Register(dev, name)
		require.NoError(t, err)
	}

	w := NewWorker(testConfig(), state, scaler, reg, nil, false)
	w.Start(context.Background())
	defer w.Stop()

	tests := []struct {
		name      string
		mutate    func()
		wantLLCC  uint64
		wantL3    uint64
		wantCount int
	}{
		{"screen off", func() { state.SetScreen(false) }, 100, 500, 1},
		{"screen off streaming", func() { state.StreamDelta(+1) }, 400, 500, 2},
		{"screen on", func() { state.SetScreen(true) }, 1000, 500, 3},
	}
	for _, tt := range tests {
		tt.mutate()
		waitPass(t, passes)
		c, n := llcc.snapshot()
		assert.Equal(t, tt.wantLLCC, c, tt.name)
		assert.Equal(t, tt.wantCount, n, tt.name)
		c, _ = l3.snapshot()
		// no configured floor: unrestricted
		assert.Equal(t, tt.wantL3, c, tt.name)
		c, _ = broken.snapshot()
		assert.Equal(t, tt.wantLLCC, c, tt.name)
	}
}

func TestWorker_CleanWakeSkipsPass(t *testing.T) {
	passes := hookPasses(t)
	scaler := newFakeScaler()
	state := NewState()
	w := NewWorker(testConfig(), state, scaler, NewRegistry(0, nil), nil, false)
	w.Start(context.Background())
	defer w.Stop()

	// a wake with nothing dirty
	state.Poke()
	waitPass(t, passes)
	state.TakeAndClearDirty()
	state.signal()

	select {
	case <-passes:
		t.Fatal("pass ran without a dirty state")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWorker_Stop(t *testing.T) {
	// GIVEN a running worker
	w := NewWorker(testConfig(), NewState(), newFakeScaler(), NewRegistry(0, nil), nil, false)
	w.Start(context.Background())
	w.Start(context.Background())
	assert.Equal(t, WorkerIdle, w.Status())

	// WHEN stopping it
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	// THEN Stop returns once the loop exits
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Stop did not return")
	}
	assert.Equal(t, WorkerStopped, w.Status())
}

func TestWorker_StopBlocksUntilLoopExits(t *testing.T) {
	cancelFuncCalled := false
	w := &Worker{cancelFunc: func() { cancelFuncCalled = true }}
	w.waitGroup.Add(1)

	doneCh := make(chan struct{})
	go func() {
		w.Stop()
		close(doneCh)
	}()

	time.Sleep(50 * time.Millisecond)
	select {
	case <-doneCh:
		t.Fatal("Stop returned early - expected to be blocking")
	default:
	}

	w.waitGroup.Done()
	select {
	case <-doneCh:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Stop did not unblock")
	}
	assert.True(t, cancelFuncCalled)
}

func TestWorker_ContextCancelExitsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(testConfig(), NewState(), newFakeScaler(), NewRegistry(0, nil), nil, false)
	w.Start(ctx)

	cancel()
	assert.Eventually(t, func() bool { return w.Status() == WorkerStopped }, time.Second, 5*time.Millisecond)
	w.Stop()
}

func TestWorker_ConcurrentMutationsConvergeOnLastState(t *testing.T) {
	passes := hookPasses(t)
	state := NewState()
	w := NewWorker(testConfig(), state, newFakeScaler(), NewRegistry(0, nil), nil, false)
	w.Start(context.Background())
	defer w.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				state.StreamDelta(+1)
			}
		}()
	}
	wg.Wait()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case st := <-passes:
			if st.Streams == 200 {
				return
			}
		case <-deadline:
			t.Fatal("worker never processed the final state")
		}
	}
}
