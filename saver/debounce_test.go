package saver

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_FiresOnceAfterDelay(t *testing.T) {
	fired := make(chan RampTarget, 1)
	d := NewDebouncer(10*time.Millisecond, func(tg RampTarget) { fired <- tg })
	defer d.Stop()

	coalesced := d.Schedule(RampTarget{CPU: 3})

	assert.False(t, coalesced)
	select {
	case tg := <-fired:
		assert.Equal(t, 3, tg.CPU)
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	_, pending := d.Pending()
	assert.False(t, pending)
}

func TestDebouncer_RescheduleReplacesPendingTimer(t *testing.T) {
	// GIVEN a long delay so nothing fires during the burst
	var fires atomic.Int32
	d := NewDebouncer(time.Hour, func(RampTarget) { fires.Add(1) })
	defer d.Stop()

	// WHEN scheduling three times
	assert.False(t, d.Schedule(RampTarget{CPU: 0}))
	assert.True(t, d.Schedule(RampTarget{CPU: 1}))
	assert.True(t, d.Schedule(RampTarget{CPU: 2}))

	// THEN one timer is pending, holding the latest target
	tg, pending := d.Pending()
	require.True(t, pending)
	assert.Equal(t, 2, tg.CPU)
	assert.Equal(t, int32(0), fires.Load())
}

func TestDebouncer_Cancel(t *testing.T) {
	var fires atomic.Int32
	d := NewDebouncer(5*time.Millisecond, func(RampTarget) { fires.Add(1) })
	defer d.Stop()

	d.Schedule(RampTarget{})
	d.Cancel()
	time.Sleep(30 * time.Millisecond)

	_, pending := d.Pending()
	assert.False(t, pending)
	assert.Equal(t, int32(0), fires.Load())

	// scheduling still works after a cancel
	d.Schedule(RampTarget{})
	assert.Eventually(t, func() bool { return fires.Load() == 1 }, time.Second, time.Millisecond)
}

func TestDebouncer_StopJoinsInflightCallback(t *testing.T) {
	// GIVEN a callback that is running when Stop is called
	entered := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	d := NewDebouncer(time.Millisecond, func(RampTarget) {
		close(entered)
		<-release
		finished.Store(true)
	})
	d.Schedule(RampTarget{})
	<-entered

	// WHEN stopping
	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()

	// THEN Stop waits for the callback to return
	select {
	case <-stopped:
		t.Fatal("Stop returned while the callback was running")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	assert.True(t, finished.Load())
}

func TestDebouncer_NoFireOrScheduleAfterStop(t *testing.T) {
	var fires atomic.Int32
	d := NewDebouncer(5*time.Millisecond, func(RampTarget) { fires.Add(1) })

	d.Schedule(RampTarget{})
	d.Stop()
	assert.False(t, d.Schedule(RampTarget{}))
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, int32(0), fires.Load())
	_, pending := d.Pending()
	assert.False(t, pending)
	// a second Stop is harmless
	d.Stop()
}
